package capsule

import (
	"fmt"
	"strings"

	"github.com/timeegg/backend/internal/geo"
	"github.com/timeegg/backend/internal/models"
	"github.com/timeegg/backend/internal/unlock"
)

// validateCreate rejects malformed input before any I/O happens, so a bad
// request never leaves partial uploads behind.
func validateCreate(in *CreateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return models.NewValidationError("title", "must not be empty")
	}
	if len([]rune(in.Title)) > models.MaxTitleLength {
		return models.NewValidationError("title",
			fmt.Sprintf("must be at most %d characters", models.MaxTitleLength))
	}
	if len([]rune(in.Memo)) > models.MaxMemoLength {
		return models.NewValidationError("memo",
			fmt.Sprintf("must be at most %d characters", models.MaxMemoLength))
	}
	if len(in.Photos) > models.MaxPhotosPerCapsule {
		return models.NewValidationError("photos",
			fmt.Sprintf("at most %d photos per capsule", models.MaxPhotosPerCapsule))
	}
	if len(in.SharedUserIDs)+len(in.SharedUserEmails) > models.MaxSharedUsers {
		return models.NewValidationError("shared_users",
			fmt.Sprintf("at most %d shared users", models.MaxSharedUsers))
	}
	switch in.Privacy {
	case models.PrivacyPublic, models.PrivacyFriends, models.PrivacyPrivate:
	default:
		return models.NewValidationError("privacy", "must be public, friends, or private")
	}
	return validateCondition(in.Condition)
}

func validateCondition(cond *models.UnlockCondition) error {
	if cond == nil {
		return nil
	}
	if loc := cond.Location; loc != nil {
		if !geo.ValidCoordinates(loc.Latitude, loc.Longitude) {
			return models.NewValidationError("condition.location", "coordinates out of range")
		}
		if loc.RadiusMeters < 0 || loc.RadiusMeters > models.MaxRadiusMeters {
			return models.NewValidationError("condition.location.radius_meters",
				fmt.Sprintf("must be positive and at most %.0f", models.MaxRadiusMeters))
		}
	}
	if tc := cond.Time; tc != nil && tc.Range != nil {
		start, err := unlock.ParseClock(tc.Range.Start)
		if err != nil {
			return models.NewValidationError("condition.time.range.start", "must be in HH:mm format")
		}
		end, err := unlock.ParseClock(tc.Range.End)
		if err != nil {
			return models.NewValidationError("condition.time.range.end", "must be in HH:mm format")
		}
		if start == end {
			return models.NewValidationError("condition.time.range", "start and end must differ")
		}
	}
	return nil
}
