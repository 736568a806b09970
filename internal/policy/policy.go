// Package policy decides who may read, attempt to unlock, or modify a
// capsule. The functions return plain booleans; callers translate a denial
// into the appropriate error (a denied fetch becomes a not-found, so that
// existence is never confirmed to non-members).
package policy

import (
	"slices"

	"github.com/timeegg/backend/internal/models"
)

// CanView reports whether userID may see that the capsule exists and attempt
// to read it. The creator always has access regardless of the share list.
func CanView(c *models.Capsule, userID string) bool {
	if userID == "" {
		return false
	}
	if c.CreatorID == userID {
		return true
	}
	if c.Privacy == models.PrivacyPublic {
		return true
	}
	return slices.Contains(c.SharedUserIDs, userID)
}

// CanAttemptUnlock reports whether userID may attempt an unlock. Sharing a
// capsule implicitly grants unlock rights, so this is the same rule as
// CanView.
func CanAttemptUnlock(c *models.Capsule, userID string) bool {
	return CanView(c, userID)
}

// CanModify reports whether userID may edit or delete the capsule. Only the
// creator may.
func CanModify(c *models.Capsule, userID string) bool {
	return userID != "" && c.CreatorID == userID
}
