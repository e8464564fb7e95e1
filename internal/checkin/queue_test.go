package checkin

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/models"
)

type memQueueStore struct {
	owners  map[int64]uuid.UUID
	entries []models.QueueEntry
	nextID  int64
}

func newMemQueueStore() *memQueueStore {
	return &memQueueStore{owners: map[int64]uuid.UUID{}}
}

func (m *memQueueStore) WithTx(_ context.Context, fn func(Store) error) error {
	snap := append([]models.QueueEntry(nil), m.entries...)
	if err := fn(m); err != nil {
		m.entries = snap
		return err
	}
	return nil
}

func (m *memQueueStore) ConventionOf(_ context.Context, id int64) (uuid.UUID, error) {
	cv, ok := m.owners[id]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return cv, nil
}

func (m *memQueueStore) Insert(_ context.Context, e *models.QueueEntry) error {
	for _, x := range m.entries {
		if x.QueueName == e.QueueName && x.RegistrationID == e.RegistrationID {
			return nil
		}
	}
	m.nextID++
	e.ID = m.nextID
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memQueueStore) Delete(_ context.Context, cv uuid.UUID, id int64, name string) (int64, error) {
	var n int64
	kept := m.entries[:0]
	for _, x := range m.entries {
		if x.RegistrationID == id && m.owners[id] == cv && (name == "" || x.QueueName == name) {
			n++
			continue
		}
		kept = append(kept, x)
	}
	m.entries = kept
	return n, nil
}

func (m *memQueueStore) Head(_ context.Context, cv uuid.UUID, name string, n int) ([]models.QueueEntry, error) {
	out := []models.QueueEntry{}
	for _, x := range m.entries {
		if x.QueueName == name && m.owners[x.RegistrationID] == cv && len(out) < n {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memQueueStore) MarkTop(_ context.Context, id int64, at time.Time) error {
	for i := range m.entries {
		if m.entries[i].ID == id && m.entries[i].TopOfQueue == nil {
			m.entries[i].TopOfQueue = &at
		}
	}
	return nil
}

func (m *memQueueStore) Remove(_ context.Context, id int64) error {
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memQueueStore) memberships(id int64) []string {
	var names []string
	for _, x := range m.entries {
		if x.RegistrationID == id {
			names = append(names, x.QueueName)
		}
	}
	return names
}

type recordedEvent struct {
	event  string
	change Change
}

type fakePublisher struct {
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ uuid.UUID, event string, payload interface{}) {
	p.events = append(p.events, recordedEvent{event, payload.(Change)})
}

type queueFixture struct {
	store *memQueueStore
	pub   *fakePublisher
	queue *Queue
	cv    *models.Convention
	clock time.Time
}

func newQueueFixture(ids ...int64) *queueFixture {
	f := &queueFixture{
		store: newMemQueueStore(),
		pub:   &fakePublisher{},
		cv:    &models.Convention{ID: uuid.New()},
		clock: time.Date(2026, 6, 5, 9, 0, 0, 0, time.UTC),
	}
	for _, id := range ids {
		f.store.owners[id] = f.cv.ID
	}
	f.queue = NewQueue(f.store, f.pub, nil, 0, nil)
	f.queue.now = func() time.Time { return f.clock }
	return f
}

func TestEnqueueTwiceKeepsOneMembership(t *testing.T) {
	f := newQueueFixture(7)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 7, "regline", false, ""))
	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 7, "regline", false, ""))
	assert.Equal(t, []string{"regline"}, f.store.memberships(7))

	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 7, "regline", true, ""))
	assert.Equal(t, []string{"regline"}, f.store.memberships(7))
}

func TestEnqueueMovesUnlessPreserved(t *testing.T) {
	f := newQueueFixture(7)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 7, "regline", false, ""))
	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 7, "readybadge", false, ""))
	assert.Equal(t, []string{"readybadge"}, f.store.memberships(7))

	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 7, "delivery", true, "1204"))
	assert.ElementsMatch(t, []string{"readybadge", "delivery"}, f.store.memberships(7))

	require.NoError(t, f.queue.Dequeue(ctx, f.cv.ID, 7, ""))
	assert.Empty(t, f.store.memberships(7))
}

func TestDequeueIsIdempotent(t *testing.T) {
	f := newQueueFixture(7)
	ctx := context.Background()

	require.NoError(t, f.queue.Dequeue(ctx, f.cv.ID, 7, "regline"))
	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 7, "regline", false, ""))
	require.NoError(t, f.queue.Dequeue(ctx, f.cv.ID, 7, "regline"))
	require.NoError(t, f.queue.Dequeue(ctx, f.cv.ID, 7, "regline"))
	assert.Empty(t, f.store.entries)

	var dequeues int
	for _, e := range f.pub.events {
		if e.change.Action == "dequeued" {
			dequeues++
		}
	}
	assert.Equal(t, 1, dequeues, "only real removals are announced")
}

func TestEnqueueRejectsOtherConvention(t *testing.T) {
	f := newQueueFixture()
	f.store.owners[9] = uuid.New()

	err := f.queue.Enqueue(context.Background(), f.cv, 9, "regline", false, "")
	assert.ErrorIs(t, err, ErrNotFound)
	err = f.queue.Enqueue(context.Background(), f.cv, 10, "regline", false, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.store.entries)
}

func TestQueueNameValidation(t *testing.T) {
	f := newQueueFixture(7)
	ctx := context.Background()

	assert.ErrorIs(t, f.queue.Enqueue(ctx, f.cv, 7, "", false, ""), ErrInvalidQueue)
	assert.ErrorIs(t, f.queue.Enqueue(ctx, f.cv, 7, "Reg Line", false, ""), ErrInvalidQueue)
	_, err := f.queue.List(ctx, f.cv, "a-very-long-queue-name", 5)
	assert.ErrorIs(t, err, ErrInvalidQueue)
}

func TestListStampsThenExpires(t *testing.T) {
	f := newQueueFixture(1, 2, 3)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, f.queue.Enqueue(ctx, f.cv, id, "regline", false, ""))
	}

	seen, err := f.queue.List(ctx, f.cv, "regline", 2)
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, f.clock, *seen[0].TopOfQueue)
	assert.Nil(t, f.store.entries[2].TopOfQueue, "entries past n are not touched")

	f.clock = f.clock.Add(DefaultVisibilityWindow)
	seen, err = f.queue.List(ctx, f.cv, "regline", 2)
	require.NoError(t, err)
	assert.Len(t, seen, 2, "exactly the window is still visible")

	f.clock = f.clock.Add(time.Second)
	seen, err = f.queue.List(ctx, f.cv, "regline", 2)
	require.NoError(t, err)
	assert.Empty(t, seen)
	assert.Empty(t, f.store.memberships(1))
	assert.Empty(t, f.store.memberships(2))

	seen, err = f.queue.List(ctx, f.cv, "regline", 2)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, int64(3), seen[0].RegistrationID)
	assert.Equal(t, f.clock, *seen[0].TopOfQueue)

	var expired []int64
	for _, e := range f.pub.events {
		assert.Equal(t, "queue_changed", e.event)
		if e.change.Action == "expired" {
			expired = append(expired, e.change.RegistrationID)
		}
	}
	assert.Equal(t, []int64{1, 2}, expired)
}

func TestListIsScopedToConvention(t *testing.T) {
	f := newQueueFixture(1)
	other := &models.Convention{ID: uuid.New()}
	f.store.owners[2] = other.ID
	ctx := context.Background()
	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 1, "regline", false, ""))
	require.NoError(t, f.queue.Enqueue(ctx, other, 2, "regline", false, ""))

	seen, err := f.queue.List(ctx, other, "regline", 5)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, int64(2), seen[0].RegistrationID)
}
