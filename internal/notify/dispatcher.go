package notify

import (
	"context"

	"firebase.google.com/go/v4/messaging"
	"github.com/timeegg/backend/internal/logger"
	"github.com/timeegg/backend/internal/metrics"
	"github.com/timeegg/backend/internal/models"
	"github.com/timeegg/backend/internal/repositories"
)

// Pusher sends a push message. *messaging.Client satisfies this.
type Pusher interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Dispatcher persists notification records and best-effort pushes them via
// FCM. Delivery is fire and forget: failures are logged, never surfaced to
// the capsule operation that emitted the event.
type Dispatcher struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	pusher        Pusher
	log           *logger.Logger
}

// NewDispatcher creates a Dispatcher. pusher may be nil when push messaging
// is not configured.
func NewDispatcher(notifications repositories.NotificationRepository, users repositories.UserRepository, pusher Pusher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		users:         users,
		pusher:        pusher,
		log:           log,
	}
}

// Dispatch stores each record and pushes it to the receiver's device.
func (d *Dispatcher) Dispatch(ctx context.Context, records ...models.Notification) {
	for i := range records {
		record := &records[i]
		if err := d.notifications.CreateNotification(record); err != nil {
			d.log.Error().Err(err).
				Str("kind", string(record.Kind)).
				Str("receiver_id", record.ReceiverID).
				Msg("failed to persist notification")
			continue
		}
		metrics.NotificationsDispatched.WithLabelValues(string(record.Kind)).Inc()
		d.push(ctx, record)
	}
}

func (d *Dispatcher) push(ctx context.Context, record *models.Notification) {
	if d.pusher == nil {
		return
	}
	token, err := d.users.DeviceToken(record.ReceiverID)
	if err != nil || token == "" {
		return
	}

	_, err = d.pusher.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: record.Title,
			Body:  record.Message,
		},
		Data: map[string]string{
			"kind":       string(record.Kind),
			"capsule_id": record.CapsuleID,
		},
	})
	if err != nil {
		d.log.Warn().Err(err).
			Str("receiver_id", record.ReceiverID).
			Msg("push delivery failed")
	}
}
