package models

import "time"

// Privacy is the canonical visibility level of a capsule.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyFriends Privacy = "friends"
	PrivacyPrivate Privacy = "private"
)

// Capsule limits, matching the mobile client's constants.
const (
	MaxTitleLength      = 100
	MaxMemoLength       = 1000
	MaxPhotosPerCapsule = 10
	MaxSharedUsers      = 20

	DefaultRadiusMeters = 50.0
	MaxRadiusMeters     = 1000.0
	NearbyRadiusMeters  = 1000.0
)

// LocationCondition is the geofence sub-condition: the capsule unlocks only
// within RadiusMeters of the stored center.
type LocationCondition struct {
	Latitude     float64 `json:"latitude" bson:"latitude"`
	Longitude    float64 `json:"longitude" bson:"longitude"`
	Address      string  `json:"address,omitempty" bson:"address,omitempty"`
	RadiusMeters float64 `json:"radius_meters" bson:"radius_meters"`
}

// TimeRange is a daily wall-clock window in "HH:mm" format. A range whose
// start is later than its end wraps past midnight.
type TimeRange struct {
	Start string `json:"start" bson:"start"`
	End   string `json:"end" bson:"end"`
}

// TimeCondition gates a capsule on an absolute instant and/or a daily window.
type TimeCondition struct {
	TargetDate *time.Time `json:"target_date,omitempty" bson:"target_date,omitempty"`
	Range      *TimeRange `json:"range,omitempty" bson:"range,omitempty"`
}

// UnlockCondition is the conjunctive rule set gating a capsule's content.
// Every sub-condition is optional; an absent sub-condition is unconstrained,
// and a condition with no sub-conditions at all is always unlocked. Weather
// is kept as stored metadata only and never evaluated.
type UnlockCondition struct {
	Weather  string             `json:"weather,omitempty" bson:"weather,omitempty"`
	Location *LocationCondition `json:"location,omitempty" bson:"location,omitempty"`
	Time     *TimeCondition     `json:"time,omitempty" bson:"time,omitempty"`
}

// Empty reports whether no sub-condition is present.
func (c *UnlockCondition) Empty() bool {
	if c == nil {
		return true
	}
	if c.Location != nil {
		return false
	}
	if c.Time != nil && (c.Time.TargetDate != nil || c.Time.Range != nil) {
		return false
	}
	return true
}

// Capsule is a time capsule record stored in MongoDB. The document ID is the
// UUID assigned at creation. IsUnlocked is a ratchet written by a successful
// unlock attempt; it is display metadata only. Visibility of the content is
// always re-derived from Condition at read time.
type Capsule struct {
	ID            string           `json:"id" bson:"_id"`
	Title         string           `json:"title" bson:"title"`
	Memo          string           `json:"memo" bson:"memo"`
	Privacy       Privacy          `json:"privacy" bson:"privacy"`
	PhotoURLs     []string         `json:"photo_urls,omitempty" bson:"photo_urls,omitempty"`
	CreatorID     string           `json:"creator_id" bson:"creator_id"`
	SharedUserIDs []string         `json:"shared_user_ids,omitempty" bson:"shared_user_ids,omitempty"`
	Condition     *UnlockCondition `json:"condition,omitempty" bson:"condition,omitempty"`
	IsUnlocked    bool             `json:"is_unlocked" bson:"is_unlocked"`
	CreatedAt     time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" bson:"updated_at"`
}

// CreateCapsuleRequest is the request body for creating a capsule. Photos are
// base64-encoded image payloads. ClientLatitude/ClientLongitude carry the
// device's current fix; when no location condition is given they become the
// implicit geofence center.
type CreateCapsuleRequest struct {
	Title            string            `json:"title" validate:"required,max=100"`
	Memo             string            `json:"memo" validate:"max=1000"`
	Privacy          Privacy           `json:"privacy" validate:"required,oneof=public friends private"`
	SharedUserEmails []string          `json:"shared_user_emails,omitempty" validate:"max=20,dive,email"`
	SharedUserIDs    []string          `json:"shared_user_ids,omitempty" validate:"max=20"`
	Photos           []string          `json:"photos,omitempty" validate:"max=10"`
	Condition        *ConditionRequest `json:"condition,omitempty"`
	ClientLatitude   *float64          `json:"client_latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	ClientLongitude  *float64          `json:"client_longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	NearbyUserIDs    []string          `json:"nearby_user_ids,omitempty"`
}

// ConditionRequest mirrors UnlockCondition for request binding.
type ConditionRequest struct {
	Weather   string                    `json:"weather,omitempty"`
	Location  *LocationConditionRequest `json:"location,omitempty"`
	TargetAt  *time.Time                `json:"target_at,omitempty"`
	TimeRange *TimeRangeRequest         `json:"time_range,omitempty"`
}

// LocationConditionRequest is the geofence part of a create request. A zero
// radius selects the 50m default.
type LocationConditionRequest struct {
	Latitude     float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude    float64 `json:"longitude" validate:"min=-180,max=180"`
	Address      string  `json:"address,omitempty"`
	RadiusMeters float64 `json:"radius_meters,omitempty" validate:"omitempty,gt=0,lte=1000"`
}

// TimeRangeRequest is the daily window part of a create request.
type TimeRangeRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// UpdateCapsuleRequest is the request body for editing a capsule's mutable
// fields. Unlock conditions are frozen at creation and cannot be edited.
type UpdateCapsuleRequest struct {
	Title   string  `json:"title,omitempty" validate:"omitempty,max=100"`
	Memo    *string `json:"memo,omitempty" validate:"omitempty,max=1000"`
	Privacy Privacy `json:"privacy,omitempty" validate:"omitempty,oneof=public friends private"`
}

// AddPhotosRequest carries additional base64-encoded photos.
type AddPhotosRequest struct {
	Photos []string `json:"photos" validate:"required,min=1,max=10"`
}

// RemovePhotosRequest names photo URLs to detach and delete.
type RemovePhotosRequest struct {
	PhotoURLs []string `json:"photo_urls" validate:"required,min=1"`
}
