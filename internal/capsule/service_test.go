package capsule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timeegg/backend/internal/geo"
	"github.com/timeegg/backend/internal/location"
	"github.com/timeegg/backend/internal/logger"
	"github.com/timeegg/backend/internal/models"
	"github.com/timeegg/backend/internal/unlock"
)

const (
	creatorID  = "uid-creator"
	sharedID   = "uid-shared"
	strangerID = "uid-stranger"
)

var (
	center    = geo.Point{Latitude: 37.5665, Longitude: 126.9780}
	nearPoint = geo.Point{Latitude: 37.5667, Longitude: 126.9780} // about 22m north
	farPoint  = geo.Point{Latitude: 37.5755, Longitude: 126.9780} // about 1km north
)

type capsuleRepoMock struct {
	createFn                 func(ctx context.Context, c *models.Capsule) error
	getByIDFn                func(ctx context.Context, id string) (*models.Capsule, error)
	listVisibleToFn          func(ctx context.Context, userID string) ([]models.Capsule, error)
	listPublicWithLocationFn func(ctx context.Context) ([]models.Capsule, error)
	updateContentFn          func(ctx context.Context, id, title, memo string, privacy models.Privacy) error
	setPhotoURLsFn           func(ctx context.Context, id string, urls []string) error
	markUnlockedFn           func(ctx context.Context, id string) (bool, error)
	deleteFn                 func(ctx context.Context, id string) error
}

func (m *capsuleRepoMock) Create(ctx context.Context, c *models.Capsule) error {
	if m.createFn == nil {
		return nil
	}
	return m.createFn(ctx, c)
}

func (m *capsuleRepoMock) GetByID(ctx context.Context, id string) (*models.Capsule, error) {
	return m.getByIDFn(ctx, id)
}

func (m *capsuleRepoMock) ListVisibleTo(ctx context.Context, userID string) ([]models.Capsule, error) {
	return m.listVisibleToFn(ctx, userID)
}

func (m *capsuleRepoMock) ListPublicWithLocation(ctx context.Context) ([]models.Capsule, error) {
	return m.listPublicWithLocationFn(ctx)
}

func (m *capsuleRepoMock) UpdateContent(ctx context.Context, id, title, memo string, privacy models.Privacy) error {
	if m.updateContentFn == nil {
		return nil
	}
	return m.updateContentFn(ctx, id, title, memo, privacy)
}

func (m *capsuleRepoMock) SetPhotoURLs(ctx context.Context, id string, urls []string) error {
	if m.setPhotoURLsFn == nil {
		return nil
	}
	return m.setPhotoURLsFn(ctx, id, urls)
}

func (m *capsuleRepoMock) MarkUnlocked(ctx context.Context, id string) (bool, error) {
	return m.markUnlockedFn(ctx, id)
}

func (m *capsuleRepoMock) Delete(ctx context.Context, id string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, id)
}

type userRepoMock struct {
	findUIDsByEmailsFn func(emails []string) ([]string, error)
}

func (m *userRepoMock) CreateUser(*models.User) error                     { return nil }
func (m *userRepoMock) GetUserByFirebaseUID(string) (*models.User, error) { return nil, nil }
func (m *userRepoMock) UpdateUser(*models.User) error                     { return nil }
func (m *userRepoMock) SearchUsers(string) ([]models.User, error)         { return nil, nil }
func (m *userRepoMock) DeviceToken(string) (string, error)                { return "", nil }

func (m *userRepoMock) FindUIDsByEmails(emails []string) ([]string, error) {
	if m.findUIDsByEmailsFn == nil {
		return nil, nil
	}
	return m.findUIDsByEmailsFn(emails)
}

// blobStoreMock records uploads and deletes; failAfter makes the n+1th
// upload fail to exercise rollback paths.
type blobStoreMock struct {
	mu        sync.Mutex
	uploads   []string
	deletes   []string
	failAfter int
}

func (m *blobStoreMock) Upload(_ context.Context, path string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && len(m.uploads) >= m.failAfter {
		return "", errors.New("bucket unavailable")
	}
	m.uploads = append(m.uploads, path)
	return "https://blobs.test/" + path, nil
}

func (m *blobStoreMock) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, url)
	return nil
}

func (m *blobStoreMock) DeleteAll(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, prefix)
	return nil
}

type dispatcherMock struct {
	records []models.Notification
}

func (m *dispatcherMock) Dispatch(_ context.Context, records ...models.Notification) {
	m.records = append(m.records, records...)
}

func newTestService(capsules *capsuleRepoMock, users *userRepoMock, blobs *blobStoreMock, dispatcher *dispatcherMock) *Service {
	return NewService(capsules, users, blobs, location.Noop{}, dispatcher, logger.Nop())
}

func storedCapsule(privacy models.Privacy, cond *models.UnlockCondition) *models.Capsule {
	return &models.Capsule{
		ID:            "cap-1",
		Title:         "Beach day",
		Memo:          "Open this at the beach",
		Privacy:       privacy,
		PhotoURLs:     []string{"https://blobs.test/capsules/cap-1/photo_0.jpg"},
		CreatorID:     creatorID,
		SharedUserIDs: []string{sharedID},
		Condition:     cond,
		CreatedAt:     time.Now().Add(-time.Hour),
	}
}

func geofenceCondition(radius float64) *models.UnlockCondition {
	return &models.UnlockCondition{Location: &models.LocationCondition{
		Latitude:     center.Latitude,
		Longitude:    center.Longitude,
		RadiusMeters: radius,
	}}
}

func TestCreateValidation(t *testing.T) {
	blobs := &blobStoreMock{}
	svc := newTestService(&capsuleRepoMock{}, &userRepoMock{}, blobs, &dispatcherMock{})

	longTitle := ""
	for range 101 {
		longTitle += "x"
	}

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"empty title", CreateInput{CreatorID: creatorID, Title: "  ", Privacy: models.PrivacyPrivate}},
		{"title too long", CreateInput{CreatorID: creatorID, Title: longTitle, Privacy: models.PrivacyPrivate}},
		{"bad privacy", CreateInput{CreatorID: creatorID, Title: "ok", Privacy: "secret"}},
		{"too many photos", CreateInput{CreatorID: creatorID, Title: "ok", Privacy: models.PrivacyPrivate,
			Photos: make([][]byte, 11)}},
		{"too many shared users", CreateInput{CreatorID: creatorID, Title: "ok", Privacy: models.PrivacyPrivate,
			SharedUserIDs: make([]string, 21)}},
		{"radius too large", CreateInput{CreatorID: creatorID, Title: "ok", Privacy: models.PrivacyPrivate,
			Condition: geofenceCondition(1001)}},
		{"coordinates out of range", CreateInput{CreatorID: creatorID, Title: "ok", Privacy: models.PrivacyPrivate,
			Condition: &models.UnlockCondition{Location: &models.LocationCondition{Latitude: 95}}}},
		{"degenerate time window", CreateInput{CreatorID: creatorID, Title: "ok", Privacy: models.PrivacyPrivate,
			Condition: &models.UnlockCondition{Time: &models.TimeCondition{
				Range: &models.TimeRange{Start: "09:00", End: "09:00"}}}}},
		{"unparseable time window", CreateInput{CreatorID: creatorID, Title: "ok", Privacy: models.PrivacyPrivate,
			Condition: &models.UnlockCondition{Time: &models.TimeCondition{
				Range: &models.TimeRange{Start: "9am", End: "17:00"}}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.input.Photos = append(tc.input.Photos, []byte("img"))
			_, err := svc.Create(context.Background(), tc.input)
			var vErr *models.ValidationError
			require.ErrorAs(t, err, &vErr)
		})
	}

	// Rejected requests must never reach the blob store.
	assert.Empty(t, blobs.uploads)

	t.Run("missing creator", func(t *testing.T) {
		_, err := svc.Create(context.Background(), CreateInput{Title: "ok", Privacy: models.PrivacyPrivate})
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})
}

func TestCreate(t *testing.T) {
	t.Run("resolves emails and dedupes the share list", func(t *testing.T) {
		var created *models.Capsule
		capsules := &capsuleRepoMock{createFn: func(_ context.Context, c *models.Capsule) error {
			created = c
			return nil
		}}
		users := &userRepoMock{findUIDsByEmailsFn: func(emails []string) ([]string, error) {
			assert.Equal(t, []string{"a@example.com", "ghost@example.com"}, emails)
			// Unregistered emails resolve to nothing and are dropped.
			return []string{"uid-a"}, nil
		}}
		dispatcher := &dispatcherMock{}
		svc := newTestService(capsules, users, &blobStoreMock{}, dispatcher)

		out, err := svc.Create(context.Background(), CreateInput{
			CreatorID:        creatorID,
			Title:            "  Beach day  ",
			Privacy:          models.PrivacyPrivate,
			SharedUserIDs:    []string{"uid-a", sharedID, creatorID, ""},
			SharedUserEmails: []string{"a@example.com", "ghost@example.com"},
		})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.NotEmpty(t, out.ID)
		assert.Equal(t, "Beach day", out.Title)
		assert.Equal(t, []string{"uid-a", sharedID}, out.SharedUserIDs)

		// One tagged notification per shared user, none for the creator.
		require.Len(t, dispatcher.records, 2)
		for _, r := range dispatcher.records {
			assert.Equal(t, models.KindTagged, r.Kind)
			assert.Equal(t, creatorID, r.SenderID)
		}
	})

	t.Run("uploads photos under the capsule prefix", func(t *testing.T) {
		blobs := &blobStoreMock{}
		svc := newTestService(&capsuleRepoMock{}, &userRepoMock{}, blobs, &dispatcherMock{})

		out, err := svc.Create(context.Background(), CreateInput{
			CreatorID: creatorID,
			Title:     "pics",
			Privacy:   models.PrivacyPrivate,
			Photos:    [][]byte{[]byte("a"), []byte("b"), []byte("c")},
		})
		require.NoError(t, err)
		require.Len(t, out.PhotoURLs, 3)
		assert.Len(t, blobs.uploads, 3)
		for i, url := range out.PhotoURLs {
			assert.Equal(t, fmt.Sprintf("https://blobs.test/capsules/%s/photo_%d.jpg", out.ID, i), url)
		}
	})

	t.Run("upload failure rolls back the blobs that made it", func(t *testing.T) {
		blobs := &blobStoreMock{failAfter: 2}
		svc := newTestService(&capsuleRepoMock{}, &userRepoMock{}, blobs, &dispatcherMock{})

		_, err := svc.Create(context.Background(), CreateInput{
			CreatorID: creatorID,
			Title:     "pics",
			Privacy:   models.PrivacyPrivate,
			Photos:    [][]byte{[]byte("a"), []byte("b"), []byte("c")},
		})
		require.ErrorIs(t, err, models.ErrStorageUnavailable)
		assert.Len(t, blobs.deletes, len(blobs.uploads))
	})

	t.Run("insert failure deletes the uploaded blobs", func(t *testing.T) {
		blobs := &blobStoreMock{}
		capsules := &capsuleRepoMock{createFn: func(context.Context, *models.Capsule) error {
			return errors.New("mongo down")
		}}
		svc := newTestService(capsules, &userRepoMock{}, blobs, &dispatcherMock{})

		_, err := svc.Create(context.Background(), CreateInput{
			CreatorID: creatorID,
			Title:     "pics",
			Privacy:   models.PrivacyPrivate,
			Photos:    [][]byte{[]byte("a"), []byte("b")},
		})
		require.ErrorIs(t, err, models.ErrStorageUnavailable)
		assert.Len(t, blobs.deletes, 2)
	})

	t.Run("device fix becomes the implicit geofence", func(t *testing.T) {
		var created *models.Capsule
		capsules := &capsuleRepoMock{createFn: func(_ context.Context, c *models.Capsule) error {
			created = c
			return nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		_, err := svc.Create(context.Background(), CreateInput{
			CreatorID:       creatorID,
			Title:           "here",
			Privacy:         models.PrivacyPrivate,
			CreatorLocation: &center,
		})
		require.NoError(t, err)
		require.NotNil(t, created.Condition)
		require.NotNil(t, created.Condition.Location)
		assert.Equal(t, center.Latitude, created.Condition.Location.Latitude)
		assert.Equal(t, models.DefaultRadiusMeters, created.Condition.Location.RadiusMeters)
	})

	t.Run("zero radius defaults to 50m", func(t *testing.T) {
		var created *models.Capsule
		capsules := &capsuleRepoMock{createFn: func(_ context.Context, c *models.Capsule) error {
			created = c
			return nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		_, err := svc.Create(context.Background(), CreateInput{
			CreatorID: creatorID,
			Title:     "here",
			Privacy:   models.PrivacyPrivate,
			Condition: geofenceCondition(0),
		})
		require.NoError(t, err)
		assert.Equal(t, models.DefaultRadiusMeters, created.Condition.Location.RadiusMeters)
	})

	t.Run("public capsule notifies nearby users except the creator", func(t *testing.T) {
		dispatcher := &dispatcherMock{}
		svc := newTestService(&capsuleRepoMock{}, &userRepoMock{}, &blobStoreMock{}, dispatcher)

		_, err := svc.Create(context.Background(), CreateInput{
			CreatorID:     creatorID,
			Title:         "for everyone",
			Privacy:       models.PrivacyPublic,
			NearbyUserIDs: []string{"uid-a", creatorID, "uid-b"},
		})
		require.NoError(t, err)
		require.Len(t, dispatcher.records, 2)
		for _, r := range dispatcher.records {
			assert.Equal(t, models.KindNewPublicCapsule, r.Kind)
			assert.NotEqual(t, creatorID, r.ReceiverID)
		}
	})
}

func TestGet(t *testing.T) {
	cond := geofenceCondition(50)

	t.Run("unlocked view carries content", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			return storedCapsule(models.PrivacyPrivate, cond), nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		view, err := svc.Get(context.Background(), creatorID, "cap-1",
			unlock.Context{Location: &nearPoint, Now: time.Now()})
		require.NoError(t, err)
		assert.True(t, view.Unlocked)
		assert.Equal(t, "Open this at the beach", view.Memo)
		assert.NotEmpty(t, view.PhotoURLs)
		assert.NotNil(t, view.Condition)
	})

	t.Run("locked view is redacted", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			return storedCapsule(models.PrivacyPrivate, cond), nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		view, err := svc.Get(context.Background(), creatorID, "cap-1",
			unlock.Context{Location: &farPoint, Now: time.Now()})
		require.NoError(t, err)
		assert.False(t, view.Unlocked)
		assert.Equal(t, unlock.ReasonLocationTooFar, view.Verdict.Reason)
		assert.InDelta(t, 1000.0, view.Verdict.DistanceMeters, 5.0)
		assert.Equal(t, "Beach day", view.Title)
		assert.Empty(t, view.Memo)
		assert.Empty(t, view.PhotoURLs)
		assert.Empty(t, view.SharedUserIDs)
		assert.Nil(t, view.Condition)
	})

	t.Run("persisted ratchet does not bypass the live gate", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			c := storedCapsule(models.PrivacyPrivate, cond)
			c.IsUnlocked = true
			return c, nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		view, err := svc.Get(context.Background(), creatorID, "cap-1",
			unlock.Context{Location: &farPoint, Now: time.Now()})
		require.NoError(t, err)
		assert.False(t, view.Unlocked)
		assert.Empty(t, view.Memo)
	})

	t.Run("denial reads as not found", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			return storedCapsule(models.PrivacyPrivate, nil), nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		_, err := svc.Get(context.Background(), strangerID, "cap-1", unlock.Context{Now: time.Now()})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("missing capsule reads the same as denial", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			return nil, models.ErrNotFound
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		_, err := svc.Get(context.Background(), strangerID, "nope", unlock.Context{Now: time.Now()})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestAttemptUnlock(t *testing.T) {
	cond := geofenceCondition(50)

	t.Run("within range unlocks and notifies the creator", func(t *testing.T) {
		marked := false
		capsules := &capsuleRepoMock{
			getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
				return storedCapsule(models.PrivacyPrivate, cond), nil
			},
			markUnlockedFn: func(_ context.Context, id string) (bool, error) {
				marked = true
				return true, nil
			},
		}
		dispatcher := &dispatcherMock{}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, dispatcher)

		verdict, err := svc.AttemptUnlock(context.Background(), sharedID, "cap-1",
			unlock.Context{Location: &nearPoint, Now: time.Now()})
		require.NoError(t, err)
		assert.True(t, verdict.Unlocked)
		assert.True(t, marked)

		require.Len(t, dispatcher.records, 1)
		assert.Equal(t, models.KindUnlocked, dispatcher.records[0].Kind)
		assert.Equal(t, creatorID, dispatcher.records[0].ReceiverID)
		assert.Equal(t, sharedID, dispatcher.records[0].SenderID)
	})

	t.Run("self unlock emits no notification", func(t *testing.T) {
		capsules := &capsuleRepoMock{
			getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
				return storedCapsule(models.PrivacyPrivate, cond), nil
			},
			markUnlockedFn: func(_ context.Context, id string) (bool, error) { return true, nil },
		}
		dispatcher := &dispatcherMock{}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, dispatcher)

		verdict, err := svc.AttemptUnlock(context.Background(), creatorID, "cap-1",
			unlock.Context{Location: &nearPoint, Now: time.Now()})
		require.NoError(t, err)
		assert.True(t, verdict.Unlocked)
		assert.Empty(t, dispatcher.records)
	})

	t.Run("repeat unlock is idempotent", func(t *testing.T) {
		capsules := &capsuleRepoMock{
			getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
				c := storedCapsule(models.PrivacyPrivate, cond)
				c.IsUnlocked = true
				return c, nil
			},
			markUnlockedFn: func(_ context.Context, id string) (bool, error) { return false, nil },
		}
		dispatcher := &dispatcherMock{}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, dispatcher)

		verdict, err := svc.AttemptUnlock(context.Background(), sharedID, "cap-1",
			unlock.Context{Location: &nearPoint, Now: time.Now()})
		require.NoError(t, err)
		assert.True(t, verdict.Unlocked)
		assert.Empty(t, dispatcher.records)
	})

	t.Run("too far stays locked without touching the record", func(t *testing.T) {
		capsules := &capsuleRepoMock{
			getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
				return storedCapsule(models.PrivacyPrivate, cond), nil
			},
			markUnlockedFn: func(_ context.Context, id string) (bool, error) {
				t.Fatal("MarkUnlocked must not be called for a failed attempt")
				return false, nil
			},
		}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		verdict, err := svc.AttemptUnlock(context.Background(), sharedID, "cap-1",
			unlock.Context{Location: &farPoint, Now: time.Now()})
		require.NoError(t, err)
		assert.False(t, verdict.Unlocked)
		assert.Equal(t, unlock.ReasonLocationTooFar, verdict.Reason)
	})

	t.Run("stranger cannot attempt at all", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			return storedCapsule(models.PrivacyPrivate, cond), nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		_, err := svc.AttemptUnlock(context.Background(), strangerID, "cap-1",
			unlock.Context{Location: &nearPoint, Now: time.Now()})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestNearby(t *testing.T) {
	within := storedCapsule(models.PrivacyPublic, geofenceCondition(50))
	faraway := storedCapsule(models.PrivacyPublic, &models.UnlockCondition{Location: &models.LocationCondition{
		Latitude:     37.7,
		Longitude:    127.1,
		RadiusMeters: 50,
	}})
	faraway.ID = "cap-far"

	capsules := &capsuleRepoMock{listPublicWithLocationFn: func(context.Context) ([]models.Capsule, error) {
		return []models.Capsule{*within, *faraway}, nil
	}}
	svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

	t.Run("filters by distance to the geofence center", func(t *testing.T) {
		views, err := svc.Nearby(context.Background(), strangerID, nearPoint, 500,
			unlock.Context{Location: &nearPoint, Now: time.Now()})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "cap-1", views[0].ID)
	})

	t.Run("oversized radius clamps to the 1km default", func(t *testing.T) {
		// 50km would reach the faraway capsule; the clamp keeps it out.
		views, err := svc.Nearby(context.Background(), strangerID, nearPoint, 50000,
			unlock.Context{Location: &nearPoint, Now: time.Now()})
		require.NoError(t, err)
		require.Len(t, views, 1)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("creator edits content fields", func(t *testing.T) {
		var gotTitle, gotMemo string
		var gotPrivacy models.Privacy
		capsules := &capsuleRepoMock{
			getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
				return storedCapsule(models.PrivacyPrivate, nil), nil
			},
			updateContentFn: func(_ context.Context, id, title, memo string, privacy models.Privacy) error {
				gotTitle, gotMemo, gotPrivacy = title, memo, privacy
				return nil
			},
		}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		memo := "updated memo"
		out, err := svc.Update(context.Background(), creatorID, "cap-1", models.UpdateCapsuleRequest{
			Title:   "New title",
			Memo:    &memo,
			Privacy: models.PrivacyPublic,
		})
		require.NoError(t, err)
		assert.Equal(t, "New title", gotTitle)
		assert.Equal(t, "updated memo", gotMemo)
		assert.Equal(t, models.PrivacyPublic, gotPrivacy)
		assert.Equal(t, "New title", out.Title)
	})

	t.Run("shared user may not edit", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			return storedCapsule(models.PrivacyPrivate, nil), nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		_, err := svc.Update(context.Background(), sharedID, "cap-1", models.UpdateCapsuleRequest{Title: "x"})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestAddPhotos(t *testing.T) {
	t.Run("appends under the photo cap", func(t *testing.T) {
		blobs := &blobStoreMock{}
		var stored []string
		capsules := &capsuleRepoMock{
			getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
				return storedCapsule(models.PrivacyPrivate, nil), nil
			},
			setPhotoURLsFn: func(_ context.Context, id string, urls []string) error {
				stored = urls
				return nil
			},
		}
		svc := newTestService(capsules, &userRepoMock{}, blobs, &dispatcherMock{})

		out, err := svc.AddPhotos(context.Background(), creatorID, "cap-1", [][]byte{[]byte("new")})
		require.NoError(t, err)
		assert.Len(t, out.PhotoURLs, 2)
		assert.Equal(t, stored, out.PhotoURLs)
	})

	t.Run("rejects exceeding the cap", func(t *testing.T) {
		blobs := &blobStoreMock{}
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			c := storedCapsule(models.PrivacyPrivate, nil)
			c.PhotoURLs = make([]string, 8)
			return c, nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, blobs, &dispatcherMock{})

		_, err := svc.AddPhotos(context.Background(), creatorID, "cap-1", make([][]byte, 3))
		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Empty(t, blobs.uploads)
	})

	t.Run("creator only", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			return storedCapsule(models.PrivacyPrivate, nil), nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		_, err := svc.AddPhotos(context.Background(), sharedID, "cap-1", [][]byte{[]byte("x")})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestRemovePhotos(t *testing.T) {
	blobs := &blobStoreMock{}
	var stored []string
	capsules := &capsuleRepoMock{
		getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			c := storedCapsule(models.PrivacyPrivate, nil)
			c.PhotoURLs = []string{"url-a", "url-b", "url-c"}
			return c, nil
		},
		setPhotoURLsFn: func(_ context.Context, id string, urls []string) error {
			stored = urls
			return nil
		},
	}
	svc := newTestService(capsules, &userRepoMock{}, blobs, &dispatcherMock{})

	out, err := svc.RemovePhotos(context.Background(), creatorID, "cap-1", []string{"url-b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"url-a", "url-c"}, out.PhotoURLs)
	assert.Equal(t, stored, out.PhotoURLs)
	assert.Equal(t, []string{"url-b"}, blobs.deletes)
}

func TestDelete(t *testing.T) {
	t.Run("removes blobs then the record", func(t *testing.T) {
		blobs := &blobStoreMock{}
		deleted := false
		capsules := &capsuleRepoMock{
			getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
				return storedCapsule(models.PrivacyPrivate, nil), nil
			},
			deleteFn: func(_ context.Context, id string) error {
				deleted = true
				return nil
			},
		}
		svc := newTestService(capsules, &userRepoMock{}, blobs, &dispatcherMock{})

		require.NoError(t, svc.Delete(context.Background(), creatorID, "cap-1"))
		assert.True(t, deleted)
		assert.Equal(t, []string{"capsules/cap-1/"}, blobs.deletes)
	})

	t.Run("stranger delete reads as not found", func(t *testing.T) {
		capsules := &capsuleRepoMock{getByIDFn: func(_ context.Context, id string) (*models.Capsule, error) {
			return storedCapsule(models.PrivacyPrivate, nil), nil
		}}
		svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

		err := svc.Delete(context.Background(), strangerID, "cap-1")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestList(t *testing.T) {
	capsules := &capsuleRepoMock{listVisibleToFn: func(_ context.Context, userID string) ([]models.Capsule, error) {
		locked := *storedCapsule(models.PrivacyPublic, geofenceCondition(50))
		open := *storedCapsule(models.PrivacyPublic, nil)
		open.ID = "cap-open"
		return []models.Capsule{locked, open}, nil
	}}
	svc := newTestService(capsules, &userRepoMock{}, &blobStoreMock{}, &dispatcherMock{})

	views, err := svc.List(context.Background(), strangerID, unlock.Context{Now: time.Now()})
	require.NoError(t, err)
	require.Len(t, views, 2)

	// No device fix: the geofenced capsule fails closed, the unconditional
	// one opens.
	assert.False(t, views[0].Unlocked)
	assert.Equal(t, unlock.ReasonLocationUnavailable, views[0].Verdict.Reason)
	assert.True(t, views[1].Unlocked)
	assert.NotEmpty(t, views[1].Memo)
}
