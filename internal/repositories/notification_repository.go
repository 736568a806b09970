package repositories

import (
	"github.com/timeegg/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations.
// Receivers are identified by Firebase UID.
type NotificationRepository interface {
	CreateNotification(notification *models.Notification) error
	GetByReceiver(receiverID string, page, limit int) ([]models.Notification, int64, error)
	GetUnreadCount(receiverID string) (int64, error)
	MarkAsRead(receiverID string, notificationID uint) error
	Delete(receiverID string, notificationID uint) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

// NewPostgresNotificationRepository creates a NotificationRepository backed
// by PostgreSQL.
func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

func (r *postgresNotificationRepository) GetByReceiver(receiverID string, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	r.db.Model(&models.Notification{}).Where("receiver_id = ?", receiverID).Count(&total)

	offset := (page - 1) * limit
	err := r.db.Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GetUnreadCount(receiverID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = false", receiverID).
		Count(&count).Error
	return count, err
}

// MarkAsRead scopes the update to the receiver so a user cannot mark another
// user's notification.
func (r *postgresNotificationRepository) MarkAsRead(receiverID string, notificationID uint) error {
	return r.db.Model(&models.Notification{}).
		Where("id = ? AND receiver_id = ?", notificationID, receiverID).
		Update("is_read", true).Error
}

func (r *postgresNotificationRepository) Delete(receiverID string, notificationID uint) error {
	return r.db.Where("id = ? AND receiver_id = ?", notificationID, receiverID).
		Delete(&models.Notification{}).Error
}
