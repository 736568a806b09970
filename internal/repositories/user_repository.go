package repositories

import (
	"github.com/timeegg/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(user *models.User) error
	GetUserByFirebaseUID(firebaseUID string) (*models.User, error)
	UpdateUser(user *models.User) error
	SearchUsers(query string) ([]models.User, error)
	FindUIDsByEmails(emails []string) ([]string, error)
	DeviceToken(firebaseUID string) (string, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL.
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser creates a new user row.
func (r *PostgresUserRepository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

// GetUserByFirebaseUID retrieves a user by Firebase UID.
func (r *PostgresUserRepository) GetUserByFirebaseUID(firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser saves an existing user row.
func (r *PostgresUserRepository) UpdateUser(user *models.User) error {
	return r.db.Save(user).Error
}

// SearchUsers searches for users by name or email (case-insensitive).
func (r *PostgresUserRepository) SearchUsers(query string) ([]models.User, error) {
	var users []models.User
	if err := r.db.Where("LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)",
		"%"+query+"%", "%"+query+"%").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindUIDsByEmails resolves registered emails to Firebase UIDs. Unmatched
// emails are silently dropped; the result may be shorter than the input.
func (r *PostgresUserRepository) FindUIDsByEmails(emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	var uids []string
	if err := r.db.Model(&models.User{}).
		Where("email IN ?", emails).
		Pluck("firebase_uid", &uids).Error; err != nil {
		return nil, err
	}
	return uids, nil
}

// DeviceToken returns the FCM registration token for a user, or empty when
// the user has none registered.
func (r *PostgresUserRepository) DeviceToken(firebaseUID string) (string, error) {
	var user models.User
	err := r.db.Select("device_token").Where("firebase_uid = ?", firebaseUID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return user.DeviceToken, nil
}
