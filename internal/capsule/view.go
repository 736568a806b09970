package capsule

import (
	"time"

	"github.com/timeegg/backend/internal/models"
	"github.com/timeegg/backend/internal/unlock"
)

// View is a capsule as presented to a requester. When the live verdict is
// locked, the content fields (memo, photos, condition detail, share list)
// are withheld and only the lock metadata remains.
type View struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Privacy   models.Privacy `json:"privacy"`
	CreatorID string         `json:"creator_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Unlocked bool           `json:"unlocked"`
	Verdict  unlock.Verdict `json:"verdict"`

	Memo          string                  `json:"memo,omitempty"`
	PhotoURLs     []string                `json:"photo_urls,omitempty"`
	SharedUserIDs []string                `json:"shared_user_ids,omitempty"`
	Condition     *models.UnlockCondition `json:"condition,omitempty"`
}

// NewView builds the possibly redacted representation of a capsule for the
// given live verdict.
func NewView(c *models.Capsule, verdict unlock.Verdict) View {
	view := View{
		ID:        c.ID,
		Title:     c.Title,
		Privacy:   c.Privacy,
		CreatorID: c.CreatorID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Unlocked:  verdict.Unlocked,
		Verdict:   verdict,
	}
	if verdict.Unlocked {
		view.Memo = c.Memo
		view.PhotoURLs = c.PhotoURLs
		view.SharedUserIDs = c.SharedUserIDs
		view.Condition = c.Condition
	}
	return view
}
