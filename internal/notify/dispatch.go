// Package notify builds notification records for capsule lifecycle events
// and hands them to the persistence and push collaborators.
package notify

import (
	"github.com/timeegg/backend/internal/models"
)

// Tagged builds one record per tagged user for a freshly shared capsule.
func Tagged(capsuleID string, taggedUserIDs []string, senderID string) []models.Notification {
	records := make([]models.Notification, 0, len(taggedUserIDs))
	for _, userID := range taggedUserIDs {
		records = append(records, models.Notification{
			Kind:       models.KindTagged,
			Title:      "Tagged in a time capsule",
			Message:    "You were tagged in a new time capsule.",
			CapsuleID:  capsuleID,
			SenderID:   senderID,
			ReceiverID: userID,
		})
	}
	return records
}

// Unlocked builds the record telling the creator their capsule was opened.
// Returns nil when the unlocker is the creator; nobody notifies themselves.
func Unlocked(capsuleID, unlockerID, creatorID string) *models.Notification {
	if unlockerID == creatorID {
		return nil
	}
	return &models.Notification{
		Kind:       models.KindUnlocked,
		Title:      "Time capsule unlocked",
		Message:    "Someone unlocked your time capsule.",
		CapsuleID:  capsuleID,
		SenderID:   unlockerID,
		ReceiverID: creatorID,
	}
}

// PublicNearby builds one record per nearby user for a new public capsule,
// excluding the creator. The candidate set is supplied by the caller.
func PublicNearby(capsuleID, creatorID string, nearbyUserIDs []string) []models.Notification {
	records := make([]models.Notification, 0, len(nearbyUserIDs))
	for _, userID := range nearbyUserIDs {
		if userID == creatorID {
			continue
		}
		records = append(records, models.Notification{
			Kind:       models.KindNewPublicCapsule,
			Title:      "New public time capsule",
			Message:    "A new public time capsule appeared near you.",
			CapsuleID:  capsuleID,
			SenderID:   creatorID,
			ReceiverID: userID,
		})
	}
	return records
}
