package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/models"
	"kiosk-sync/pkg/metrics"
)

// SessionAPI is the slice of the remote API the drain needs.
type SessionAPI interface {
	FindVisitorSession(ctx context.Context, exhibitionID, sessionID uuid.UUID) (*models.VisitorSession, error)
	UpdateVisitorSession(ctx context.Context, exhibitionID uuid.UUID, session *models.VisitorSession) (*models.VisitorSession, error)
}

// Store is the durable queue the outbox drains.
type Store interface {
	Insert(ctx context.Context, m *models.PendingMutation) (int64, error)
	Next(ctx context.Context) (*models.PendingMutation, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// SessionMerger receives remotely-confirmed session state after a
// successful push.
type SessionMerger interface {
	MergeRemote(session models.VisitorSession)
}

// Outbox queues "set user value" mutations durably and drains them to the
// remote API with at-least-once semantics. A record is deleted only after
// the remote update succeeds; any failure leaves it queued for the next
// drain cycle, which is the retry mechanism — retries are rate-limited by
// the drain schedule, not by attempt count.
type Outbox struct {
	store        Store
	api          SessionAPI
	sessions     SessionMerger
	exhibitionID uuid.UUID
	logger       *zap.Logger

	draining chan struct{}
	now      func() time.Time
}

func New(store Store, api SessionAPI, sessions SessionMerger, exhibitionID uuid.UUID, logger *zap.Logger) *Outbox {
	o := &Outbox{
		store:        store,
		api:          api,
		sessions:     sessions,
		exhibitionID: exhibitionID,
		logger:       logger,
		draining:     make(chan struct{}, 1),
		now:          time.Now,
	}
	o.draining <- struct{}{}
	return o
}

// Enqueue appends a pending mutation with time = now. priority 0 is the
// normal band; higher priorities drain first.
func (o *Outbox) Enqueue(ctx context.Context, sessionID uuid.UUID, name, value string, priority int64) error {
	m := &models.PendingMutation{
		SessionID: sessionID,
		Time:      o.now().UnixMilli(),
		Priority:  priority,
		Name:      name,
		Value:     value,
	}
	id, err := o.store.Insert(ctx, m)
	if err != nil {
		return err
	}
	o.updateDepth(ctx)

	o.logger.Debug("Enqueued pending mutation",
		zap.Int64("id", id),
		zap.String("session_id", sessionID.String()),
		zap.String("name", name),
	)
	return nil
}

// Drain delivers queued mutations until the outbox is empty or a remote
// failure ends the cycle. Single-flight: a drain already in progress makes
// overlapping calls return immediately instead of queueing.
//
// Storage errors are fatal to the cycle and returned; remote failures are
// logged and swallowed so the next scheduled cycle retries.
func (o *Outbox) Drain(ctx context.Context) error {
	select {
	case <-o.draining:
	default:
		return nil
	}
	defer func() { o.draining <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, err := o.store.Next(ctx)
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}

		if err := o.deliver(ctx, record); err != nil {
			// Record retained; the next drain cycle retries it.
			metrics.OutboxFailures.Inc()
			o.logger.Warn("Outbox delivery failed, record retained",
				zap.Int64("id", record.ID),
				zap.String("session_id", record.SessionID.String()),
				zap.Error(err),
			)
			return nil
		}

		if err := o.store.Delete(ctx, record.ID); err != nil {
			return err
		}
		metrics.OutboxDrained.Inc()
		o.updateDepth(ctx)
	}
}

// deliver merges one mutation into its remote session as a set-replace
// keyed by name and pushes the updated session.
func (o *Outbox) deliver(ctx context.Context, record *models.PendingMutation) error {
	remote, err := o.api.FindVisitorSession(ctx, o.exhibitionID, record.SessionID)
	if err != nil {
		return err
	}

	if remote.Variables == nil {
		remote.Variables = make(map[string]string)
	}
	remote.Variables[record.Name] = record.Value

	updated, err := o.api.UpdateVisitorSession(ctx, o.exhibitionID, remote)
	if err != nil {
		return err
	}

	if o.sessions != nil && updated != nil {
		o.sessions.MergeRemote(*updated)
	}
	return nil
}

func (o *Outbox) updateDepth(ctx context.Context) {
	if count, err := o.store.Count(ctx); err == nil {
		metrics.OutboxDepth.Set(float64(count))
	}
}
