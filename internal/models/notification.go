package models

import "time"

// NotificationKind classifies a notification record.
type NotificationKind string

const (
	KindTagged           NotificationKind = "tagged"
	KindUnlocked         NotificationKind = "unlocked"
	KindNewPublicCapsule NotificationKind = "new_public_capsule"
	KindFriendRequest    NotificationKind = "friend_request"
	KindSystem           NotificationKind = "system"
)

// Notification is a per-user notification record (PostgreSQL). Sender and
// receiver are Firebase UIDs.
type Notification struct {
	ID         uint             `json:"id" gorm:"primaryKey"`
	Kind       NotificationKind `json:"kind" gorm:"size:30;index"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	CapsuleID  string           `json:"capsule_id,omitempty" gorm:"size:64;index"`
	SenderID   string           `json:"sender_id" gorm:"size:128;index"`
	ReceiverID string           `json:"receiver_id" gorm:"size:128;index"`
	IsRead     bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt  time.Time        `json:"created_at" gorm:"index"`
}
