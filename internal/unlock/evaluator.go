// Package unlock evaluates a capsule's unlock condition set against the
// requester's current location and clock time.
package unlock

import (
	"time"

	"github.com/timeegg/backend/internal/geo"
	"github.com/timeegg/backend/internal/models"
)

// Reason explains a verdict. Failure reasons carry enough context for the
// client to tell the user why the capsule stayed locked.
type Reason string

const (
	ReasonUnconditional       Reason = "unconditional"
	ReasonSatisfied           Reason = "satisfied"
	ReasonLocationTooFar      Reason = "location_too_far"
	ReasonLocationUnavailable Reason = "location_unavailable"
	ReasonDateNotReached      Reason = "date_not_reached"
	ReasonOutsideTimeWindow   Reason = "outside_time_window"
)

// Context is the point-in-time input to an evaluation. A nil Location means
// the device fix is unknown; that is a valid input, not an error. Now must
// already be expressed in the requester's wall-clock zone.
type Context struct {
	Location *geo.Point
	Now      time.Time
}

// Verdict is the result of evaluating a condition set. DistanceMeters is
// populated when the reason is ReasonLocationTooFar.
type Verdict struct {
	Unlocked       bool    `json:"unlocked"`
	Reason         Reason  `json:"reason"`
	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

// Evaluate checks every present sub-condition and combines them with AND.
// A capsule with no sub-conditions is always unlocked. A location condition
// fails closed when the context has no fix. Sub-conditions are checked in
// order (location, target date, time-of-day window) and the first failure
// determines the surfaced reason.
func Evaluate(cond *models.UnlockCondition, evalCtx Context) Verdict {
	if cond.Empty() {
		return Verdict{Unlocked: true, Reason: ReasonUnconditional}
	}

	verdict := Verdict{Unlocked: true, Reason: ReasonSatisfied}
	fail := func(reason Reason, distance float64) {
		if verdict.Unlocked {
			verdict = Verdict{Unlocked: false, Reason: reason, DistanceMeters: distance}
		}
	}

	if loc := cond.Location; loc != nil {
		if evalCtx.Location == nil {
			fail(ReasonLocationUnavailable, 0)
		} else {
			center := geo.Point{Latitude: loc.Latitude, Longitude: loc.Longitude}
			d := geo.DistanceMeters(*evalCtx.Location, center)
			if d > loc.RadiusMeters {
				fail(ReasonLocationTooFar, d)
			}
		}
	}

	if tc := cond.Time; tc != nil {
		if tc.TargetDate != nil && evalCtx.Now.Before(*tc.TargetDate) {
			fail(ReasonDateNotReached, 0)
		}
		if tc.Range != nil && !inWindow(evalCtx.Now, tc.Range) {
			fail(ReasonOutsideTimeWindow, 0)
		}
	}

	return verdict
}

// ParseClock parses an "HH:mm" wall-clock string into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// inWindow reports whether now's wall-clock time falls in [start, end).
// A range whose start is later than its end wraps past midnight, e.g.
// 22:00–06:00 matches 23:30 and 05:59 but not 12:00. Unparseable bounds fail
// closed; validation rejects them at creation.
func inWindow(now time.Time, r *models.TimeRange) bool {
	start, err := ParseClock(r.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()

	switch {
	case start < end:
		return cur >= start && cur < end
	case start > end:
		return cur >= start || cur < end
	default:
		// Degenerate equal-bounds window; rejected at validation.
		return false
	}
}
