package models

import "time"

// User is the relational profile row for a Firebase-authenticated user.
// Capsules and notifications reference users by FirebaseUID.
type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name"`
	Email       string    `json:"email" gorm:"uniqueIndex"`
	FirebaseUID string    `json:"firebase_uid" gorm:"uniqueIndex"`
	DeviceToken string    `json:"-"` // FCM registration token, never serialized
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RegisterUserRequest creates the profile row after Firebase sign-in. The
// Firebase UID comes from the verified ID token, not the body.
type RegisterUserRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Email       string `json:"email" validate:"required,email"`
	DeviceToken string `json:"device_token,omitempty"`
}

// UpdateUserRequest updates the mutable profile fields.
type UpdateUserRequest struct {
	Name        string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	DeviceToken string `json:"device_token,omitempty"`
}
