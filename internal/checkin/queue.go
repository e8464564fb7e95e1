// Package checkin runs the named lines that stage attendees between check-in
// terminals: the line wrangler feeds the desk, the desk feeds the badge puller.
package checkin

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/metrics"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/realtime"
)

// DefaultVisibilityWindow is how long an entry may sit at the top of a
// listing before it is dropped.
const DefaultVisibilityWindow = 5 * time.Minute

var queueName = regexp.MustCompile(`^[a-z0-9_-]{1,15}$`)

// Store persists queue membership.
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error
	// ConventionOf returns the convention a registration belongs to, or ErrNotFound.
	ConventionOf(ctx context.Context, registrationID int64) (uuid.UUID, error)
	// Insert adds an entry; an existing (queue, registration) pair is left untouched.
	Insert(ctx context.Context, e *models.QueueEntry) error
	// Delete removes a registration from one queue, or from every queue when name is empty.
	Delete(ctx context.Context, conventionID uuid.UUID, registrationID int64, name string) (int64, error)
	// Head returns the first n entries of a queue in insertion order.
	Head(ctx context.Context, conventionID uuid.UUID, name string, n int) ([]models.QueueEntry, error)
	MarkTop(ctx context.Context, id int64, at time.Time) error
	Remove(ctx context.Context, id int64) error
}

// Publisher fans queue changes out to connected terminals.
type Publisher interface {
	Publish(conventionID uuid.UUID, event string, payload interface{})
}

// Change is the payload of a queue_changed event.
type Change struct {
	Queue          string `json:"queue"`
	RegistrationID int64  `json:"registration_id"`
	Action         string `json:"action"`
}

// Queue is the visibility queue.
type Queue struct {
	store   Store
	pub     Publisher
	metrics *metrics.Metrics
	window  time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewQueue creates a queue. A zero window uses DefaultVisibilityWindow; pub may be nil.
func NewQueue(store Store, pub Publisher, m *metrics.Metrics, window time.Duration, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = DefaultVisibilityWindow
	}
	return &Queue{store: store, pub: pub, metrics: m, window: window, now: time.Now, logger: logger}
}

func validName(name string) error {
	if !queueName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidQueue, name)
	}
	return nil
}

// Enqueue places a registration at the back of a queue. Unless preserve is
// set the registration first leaves every queue it is in, so it ends up in
// exactly one. Enqueuing a registration already in the queue keeps its place.
func (q *Queue) Enqueue(ctx context.Context, cv *models.Convention, registrationID int64, name string, preserve bool, additionalData string) error {
	if err := validName(name); err != nil {
		return err
	}
	owner, err := q.store.ConventionOf(ctx, registrationID)
	if err != nil {
		return err
	}
	if owner != cv.ID {
		return ErrNotFound
	}
	err = q.store.WithTx(ctx, func(st Store) error {
		if !preserve {
			if _, err := st.Delete(ctx, cv.ID, registrationID, ""); err != nil {
				return err
			}
		}
		return st.Insert(ctx, &models.QueueEntry{
			QueueName:      name,
			RegistrationID: registrationID,
			Added:          q.now(),
			AdditionalData: additionalData,
		})
	})
	if err != nil {
		return fmt.Errorf("enqueue %d in %s: %w", registrationID, name, err)
	}
	q.logger.Info("registration queued", zap.String("convention_id", cv.ID.String()),
		zap.Int64("registration_id", registrationID), zap.String("queue", name), zap.Bool("preserve", preserve))
	q.publish(cv.ID, Change{Queue: name, RegistrationID: registrationID, Action: "enqueued"})
	return nil
}

// Dequeue removes a registration from the named queue, or from every queue
// when name is empty. Removing a non-member is not an error.
func (q *Queue) Dequeue(ctx context.Context, conventionID uuid.UUID, registrationID int64, name string) error {
	if name != "" {
		if err := validName(name); err != nil {
			return err
		}
	}
	n, err := q.store.Delete(ctx, conventionID, registrationID, name)
	if err != nil {
		return fmt.Errorf("dequeue %d: %w", registrationID, err)
	}
	if n > 0 {
		q.logger.Debug("registration dequeued", zap.Int64("registration_id", registrationID), zap.String("queue", name))
		q.publish(conventionID, Change{Queue: name, RegistrationID: registrationID, Action: "dequeued"})
	}
	return nil
}

// List returns up to n entries from the head of a queue. Every listed entry
// counts as seen: the first sighting stamps top_of_queue, and an entry seen
// longer than the visibility window ago is deleted and left out.
func (q *Queue) List(ctx context.Context, cv *models.Convention, name string, n int) ([]models.QueueEntry, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	head, err := q.store.Head(ctx, cv.ID, name, n)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	now := q.now()
	out := make([]models.QueueEntry, 0, len(head))
	for _, e := range head {
		visible, err := q.touch(ctx, &e, now)
		if err != nil {
			return nil, err
		}
		if !visible {
			q.metrics.QueueExpired(name)
			q.logger.Info("queue entry expired", zap.String("queue", name), zap.Int64("registration_id", e.RegistrationID),
				zap.Time("top_of_queue", *e.TopOfQueue))
			q.publish(cv.ID, Change{Queue: name, RegistrationID: e.RegistrationID, Action: "expired"})
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// touch runs the visibility check on one entry and reports whether it survives.
func (q *Queue) touch(ctx context.Context, e *models.QueueEntry, now time.Time) (bool, error) {
	if e.TopOfQueue == nil {
		if err := q.store.MarkTop(ctx, e.ID, now); err != nil {
			return false, fmt.Errorf("mark top of queue: %w", err)
		}
		e.TopOfQueue = &now
		return true, nil
	}
	if now.Sub(*e.TopOfQueue) <= q.window {
		return true, nil
	}
	if err := q.store.Remove(ctx, e.ID); err != nil {
		return false, fmt.Errorf("expire queue entry: %w", err)
	}
	return false, nil
}

func (q *Queue) publish(conventionID uuid.UUID, c Change) {
	if q.pub == nil {
		return
	}
	q.pub.Publish(conventionID, realtime.EventQueueChanged, c)
}
