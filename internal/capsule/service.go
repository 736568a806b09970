// Package capsule implements the capsule lifecycle: creation, retrieval with
// live redaction, unlock attempts, photo management, and deletion.
package capsule

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/timeegg/backend/internal/geo"
	"github.com/timeegg/backend/internal/location"
	"github.com/timeegg/backend/internal/logger"
	"github.com/timeegg/backend/internal/metrics"
	"github.com/timeegg/backend/internal/models"
	"github.com/timeegg/backend/internal/notify"
	"github.com/timeegg/backend/internal/policy"
	"github.com/timeegg/backend/internal/repositories"
	"github.com/timeegg/backend/internal/storage"
	"github.com/timeegg/backend/internal/unlock"
	"golang.org/x/sync/errgroup"
)

// Dispatcher receives lifecycle notification records. *notify.Dispatcher
// satisfies this.
type Dispatcher interface {
	Dispatch(ctx context.Context, records ...models.Notification)
}

// Service orchestrates capsule operations. It consults the access policy for
// authorization and the unlock evaluator for content gating; storage I/O goes
// through the injected collaborators.
type Service struct {
	capsules   repositories.CapsuleRepository
	users      repositories.UserRepository
	blobs      storage.BlobStore
	geocoder   location.Geocoder
	dispatcher Dispatcher
	log        *logger.Logger
}

// NewService creates a capsule Service.
func NewService(
	capsules repositories.CapsuleRepository,
	users repositories.UserRepository,
	blobs storage.BlobStore,
	geocoder location.Geocoder,
	dispatcher Dispatcher,
	log *logger.Logger,
) *Service {
	return &Service{
		capsules:   capsules,
		users:      users,
		blobs:      blobs,
		geocoder:   geocoder,
		dispatcher: dispatcher,
		log:        log,
	}
}

// CreateInput carries a validated-at-the-edge create request into the
// service. Photos are raw image bytes; CreatorLocation is the device's
// current fix, used as the implicit geofence center when the request names
// no location condition.
type CreateInput struct {
	CreatorID        string
	Title            string
	Memo             string
	Privacy          models.Privacy
	SharedUserEmails []string
	SharedUserIDs    []string
	Photos           [][]byte
	Condition        *models.UnlockCondition
	CreatorLocation  *geo.Point
	NearbyUserIDs    []string
}

// Create validates the input, resolves shared emails to user IDs, uploads
// photos, and persists the capsule record. Photos upload before the record
// insert; if the insert fails the uploaded blobs are deleted again so no
// orphans remain. Tagged and public-nearby notifications are emitted after
// a successful insert.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Capsule, error) {
	if in.CreatorID == "" {
		return nil, models.ErrUnauthenticated
	}
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	sharedIDs, err := s.resolveSharedUsers(in.CreatorID, in.SharedUserIDs, in.SharedUserEmails)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving shared users: %v", models.ErrStorageUnavailable, err)
	}

	cond := s.normalizeCondition(ctx, in.Condition, in.CreatorLocation)

	capsule := &models.Capsule{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(in.Title),
		Memo:          in.Memo,
		Privacy:       in.Privacy,
		CreatorID:     in.CreatorID,
		SharedUserIDs: sharedIDs,
		Condition:     cond,
	}

	urls, err := s.uploadPhotos(ctx, capsule.ID, in.Photos)
	if err != nil {
		return nil, err
	}
	capsule.PhotoURLs = urls

	if err := s.capsules.Create(ctx, capsule); err != nil {
		s.rollbackPhotos(ctx, urls)
		return nil, fmt.Errorf("%w: inserting capsule record: %v", models.ErrStorageUnavailable, err)
	}

	metrics.CapsulesCreated.Inc()
	s.log.Info().Str("capsule_id", capsule.ID).Str("creator_id", capsule.CreatorID).Msg("capsule created")

	s.dispatcher.Dispatch(ctx, notify.Tagged(capsule.ID, sharedIDs, in.CreatorID)...)
	if capsule.Privacy == models.PrivacyPublic && len(in.NearbyUserIDs) > 0 {
		s.dispatcher.Dispatch(ctx, notify.PublicNearby(capsule.ID, in.CreatorID, in.NearbyUserIDs)...)
	}

	return capsule, nil
}

// Get returns the capsule as seen by the requester. Access denial reads as
// not-found. The unlock condition is re-evaluated live on every read; a
// locked capsule yields a redacted view regardless of the persisted ratchet.
func (s *Service) Get(ctx context.Context, requesterID, capsuleID string, evalCtx unlock.Context) (*View, error) {
	capsule, err := s.authorizeView(ctx, requesterID, capsuleID)
	if err != nil {
		return nil, err
	}
	verdict := unlock.Evaluate(capsule.Condition, evalCtx)
	view := NewView(capsule, verdict)
	return &view, nil
}

// List returns every capsule visible to the requester, newest first, each
// individually redacted by a live evaluation.
func (s *Service) List(ctx context.Context, requesterID string, evalCtx unlock.Context) ([]View, error) {
	if requesterID == "" {
		return nil, models.ErrUnauthenticated
	}
	capsules, err := s.capsules.ListVisibleTo(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing capsules: %v", models.ErrStorageUnavailable, err)
	}

	views := make([]View, len(capsules))
	for i := range capsules {
		views[i] = NewView(&capsules[i], unlock.Evaluate(capsules[i].Condition, evalCtx))
	}
	return views, nil
}

// Nearby returns public capsules whose geofence center lies within
// radiusMeters of the given point. A non-positive or oversized radius falls
// back to the 1km default.
func (s *Service) Nearby(ctx context.Context, requesterID string, center geo.Point, radiusMeters float64, evalCtx unlock.Context) ([]View, error) {
	if requesterID == "" {
		return nil, models.ErrUnauthenticated
	}
	if radiusMeters <= 0 || radiusMeters > models.NearbyRadiusMeters {
		radiusMeters = models.NearbyRadiusMeters
	}

	capsules, err := s.capsules.ListPublicWithLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing public capsules: %v", models.ErrStorageUnavailable, err)
	}

	var views []View
	for i := range capsules {
		loc := capsules[i].Condition.Location
		p := geo.Point{Latitude: loc.Latitude, Longitude: loc.Longitude}
		if !geo.WithinRadius(p, center, radiusMeters) {
			continue
		}
		views = append(views, NewView(&capsules[i], unlock.Evaluate(capsules[i].Condition, evalCtx)))
	}
	return views, nil
}

// AttemptUnlock re-evaluates the condition live. On success it flips the
// persisted ratchet with a single conditional write and notifies the creator
// unless they unlocked it themselves. A repeat attempt on an already
// unlocked capsule succeeds without error and emits nothing.
func (s *Service) AttemptUnlock(ctx context.Context, requesterID, capsuleID string, evalCtx unlock.Context) (unlock.Verdict, error) {
	capsule, err := s.authorizeView(ctx, requesterID, capsuleID)
	if err != nil {
		return unlock.Verdict{}, err
	}

	verdict := unlock.Evaluate(capsule.Condition, evalCtx)
	metrics.UnlockAttempts.WithLabelValues(string(verdict.Reason)).Inc()
	if !verdict.Unlocked {
		return verdict, nil
	}

	changed, err := s.capsules.MarkUnlocked(ctx, capsuleID)
	if err != nil {
		return unlock.Verdict{}, fmt.Errorf("%w: recording unlock: %v", models.ErrStorageUnavailable, err)
	}
	if changed {
		s.log.Info().Str("capsule_id", capsuleID).Str("unlocked_by", requesterID).Msg("capsule unlocked")
		if record := notify.Unlocked(capsuleID, requesterID, capsule.CreatorID); record != nil {
			s.dispatcher.Dispatch(ctx, *record)
		}
	}
	return verdict, nil
}

// AddPhotos appends photos to an existing capsule. Creator only.
func (s *Service) AddPhotos(ctx context.Context, requesterID, capsuleID string, photos [][]byte) (*models.Capsule, error) {
	capsule, err := s.authorizeModify(ctx, requesterID, capsuleID)
	if err != nil {
		return nil, err
	}
	if len(capsule.PhotoURLs)+len(photos) > models.MaxPhotosPerCapsule {
		return nil, models.NewValidationError("photos",
			fmt.Sprintf("capsule cannot hold more than %d photos", models.MaxPhotosPerCapsule))
	}

	urls, err := s.uploadPhotos(ctx, capsule.ID, photos)
	if err != nil {
		return nil, err
	}

	combined := append(append([]string{}, capsule.PhotoURLs...), urls...)
	if err := s.capsules.SetPhotoURLs(ctx, capsuleID, combined); err != nil {
		s.rollbackPhotos(ctx, urls)
		return nil, fmt.Errorf("%w: updating photo refs: %v", models.ErrStorageUnavailable, err)
	}
	capsule.PhotoURLs = combined
	return capsule, nil
}

// RemovePhotos detaches the named photo URLs and deletes their blobs.
// Creator only. Blob deletion is best effort; the record update is what
// counts.
func (s *Service) RemovePhotos(ctx context.Context, requesterID, capsuleID string, urls []string) (*models.Capsule, error) {
	capsule, err := s.authorizeModify(ctx, requesterID, capsuleID)
	if err != nil {
		return nil, err
	}

	remove := make(map[string]bool, len(urls))
	for _, u := range urls {
		remove[u] = true
	}
	var remaining []string
	for _, u := range capsule.PhotoURLs {
		if !remove[u] {
			remaining = append(remaining, u)
		}
	}

	if err := s.capsules.SetPhotoURLs(ctx, capsuleID, remaining); err != nil {
		return nil, fmt.Errorf("%w: updating photo refs: %v", models.ErrStorageUnavailable, err)
	}
	for _, u := range urls {
		if err := s.blobs.Delete(ctx, u); err != nil {
			s.log.Warn().Err(err).Str("url", u).Msg("failed to delete photo blob")
		}
	}
	capsule.PhotoURLs = remaining
	return capsule, nil
}

// Update edits the mutable content fields. Creator only; unlock conditions
// are immutable after creation.
func (s *Service) Update(ctx context.Context, requesterID, capsuleID string, req models.UpdateCapsuleRequest) (*models.Capsule, error) {
	capsule, err := s.authorizeModify(ctx, requesterID, capsuleID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		if len([]rune(req.Title)) > models.MaxTitleLength {
			return nil, models.NewValidationError("title",
				fmt.Sprintf("must be at most %d characters", models.MaxTitleLength))
		}
		capsule.Title = strings.TrimSpace(req.Title)
	}
	if req.Memo != nil {
		if len([]rune(*req.Memo)) > models.MaxMemoLength {
			return nil, models.NewValidationError("memo",
				fmt.Sprintf("must be at most %d characters", models.MaxMemoLength))
		}
		capsule.Memo = *req.Memo
	}
	if req.Privacy != "" {
		capsule.Privacy = req.Privacy
	}

	if err := s.capsules.UpdateContent(ctx, capsuleID, capsule.Title, capsule.Memo, capsule.Privacy); err != nil {
		if err == models.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: updating capsule: %v", models.ErrStorageUnavailable, err)
	}
	return capsule, nil
}

// Delete removes the capsule and its photo blobs. Creator only. Blob cleanup
// is best effort and never blocks the record delete.
func (s *Service) Delete(ctx context.Context, requesterID, capsuleID string) error {
	if _, err := s.authorizeModify(ctx, requesterID, capsuleID); err != nil {
		return err
	}

	if err := s.blobs.DeleteAll(ctx, photoPrefix(capsuleID)); err != nil {
		s.log.Warn().Err(err).Str("capsule_id", capsuleID).Msg("failed to delete photo blobs")
	}
	if err := s.capsules.Delete(ctx, capsuleID); err != nil {
		if err == models.ErrNotFound {
			return err
		}
		return fmt.Errorf("%w: deleting capsule: %v", models.ErrStorageUnavailable, err)
	}
	s.log.Info().Str("capsule_id", capsuleID).Msg("capsule deleted")
	return nil
}

// authorizeView loads the capsule and applies the view policy. Denial and
// absence are indistinguishable to the caller.
func (s *Service) authorizeView(ctx context.Context, requesterID, capsuleID string) (*models.Capsule, error) {
	if requesterID == "" {
		return nil, models.ErrUnauthenticated
	}
	capsule, err := s.capsules.GetByID(ctx, capsuleID)
	if err != nil {
		if err == models.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: loading capsule: %v", models.ErrStorageUnavailable, err)
	}
	if !policy.CanView(capsule, requesterID) {
		return nil, models.ErrNotFound
	}
	return capsule, nil
}

// authorizeModify loads the capsule and applies the modify policy. A viewer
// without modify rights gets a forbidden error; a stranger gets not-found.
func (s *Service) authorizeModify(ctx context.Context, requesterID, capsuleID string) (*models.Capsule, error) {
	capsule, err := s.authorizeView(ctx, requesterID, capsuleID)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(capsule, requesterID) {
		return nil, models.ErrForbidden
	}
	return capsule, nil
}

// resolveSharedUsers merges explicit IDs with email lookups. Unmatched
// emails are silently dropped and the creator is removed (their access is
// implicit).
func (s *Service) resolveSharedUsers(creatorID string, ids, emails []string) ([]string, error) {
	resolved, err := s.users.FindUIDsByEmails(emails)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var shared []string
	for _, id := range append(append([]string{}, ids...), resolved...) {
		if id == "" || id == creatorID || seen[id] {
			continue
		}
		seen[id] = true
		shared = append(shared, id)
	}
	return shared, nil
}

// normalizeCondition applies the default radius, auto-fills the geofence
// from the device fix when no location condition was given, and fills in a
// reverse-geocoded address when one is missing. Geocoding is best effort.
func (s *Service) normalizeCondition(ctx context.Context, cond *models.UnlockCondition, creatorLoc *geo.Point) *models.UnlockCondition {
	if cond == nil {
		cond = &models.UnlockCondition{}
	}
	if cond.Location == nil && creatorLoc != nil {
		cond.Location = &models.LocationCondition{
			Latitude:     creatorLoc.Latitude,
			Longitude:    creatorLoc.Longitude,
			RadiusMeters: models.DefaultRadiusMeters,
		}
	}
	if loc := cond.Location; loc != nil {
		if loc.RadiusMeters == 0 {
			loc.RadiusMeters = models.DefaultRadiusMeters
		}
		if loc.Address == "" {
			addr, err := s.geocoder.ReverseGeocode(ctx, geo.Point{Latitude: loc.Latitude, Longitude: loc.Longitude})
			if err != nil {
				s.log.Debug().Err(err).Msg("reverse geocode failed")
			} else {
				loc.Address = addr
			}
		}
	}
	if cond.Empty() && cond.Weather == "" {
		return nil
	}
	return cond
}

// uploadPhotos stores the photo blobs concurrently, keyed under the capsule
// ID so they can be prefix-deleted later. On any failure the blobs that did
// upload are removed again and the whole operation fails.
func (s *Service) uploadPhotos(ctx context.Context, capsuleID string, photos [][]byte) ([]string, error) {
	if len(photos) == 0 {
		return nil, nil
	}

	urls := make([]string, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, data := range photos {
		g.Go(func() error {
			url, err := s.blobs.Upload(gctx, fmt.Sprintf("%sphoto_%d.jpg", photoPrefix(capsuleID), i), data)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var uploaded []string
		for _, u := range urls {
			if u != "" {
				uploaded = append(uploaded, u)
			}
		}
		s.rollbackPhotos(ctx, uploaded)
		return nil, fmt.Errorf("%w: uploading photos: %v", models.ErrStorageUnavailable, err)
	}
	return urls, nil
}

// rollbackPhotos removes blobs left behind by a failed operation.
func (s *Service) rollbackPhotos(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := s.blobs.Delete(ctx, u); err != nil {
			s.log.Warn().Err(err).Str("url", u).Msg("failed to roll back photo blob")
		}
	}
}

func photoPrefix(capsuleID string) string {
	return "capsules/" + capsuleID + "/"
}
