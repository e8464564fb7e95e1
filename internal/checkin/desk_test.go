package checkin

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/registrations"
)

type fakeRegistrations struct {
	regs   map[int64]*models.Registration
	edited []string
}

func (f *fakeRegistrations) Get(_ context.Context, _ *models.Convention, id int64) (*models.Registration, error) {
	reg, ok := f.regs[id]
	if !ok {
		return nil, registrations.ErrNotFound
	}
	return reg, nil
}

func (f *fakeRegistrations) BadgeNumber(_ context.Context, _ *models.Convention, id int64) (string, bool, error) {
	if f.regs[id].NeedsPrint.Pending() {
		return "", false, nil
	}
	return fmt.Sprintf("%05d", id), true, nil
}

func (f *fakeRegistrations) Edit(_ context.Context, _ *models.Convention, actor models.Actor, id int64, req registrations.EditRequest) (*models.Registration, error) {
	reg, ok := f.regs[id]
	if !ok {
		return nil, registrations.ErrNotFound
	}
	if req.RoomNumber != nil {
		room := *req.RoomNumber
		reg.RoomNumber = &room
	}
	f.edited = append(f.edited, actor.Username)
	return reg, nil
}

func newDeskFixture(regs ...*models.Registration) (*queueFixture, *Desk) {
	f := newQueueFixture()
	byID := map[int64]*models.Registration{}
	for _, r := range regs {
		r.ConventionID = f.cv.ID
		f.store.owners[r.ID] = f.cv.ID
		byID[r.ID] = r
	}
	return f, NewDesk(f.queue, &fakeRegistrations{regs: byID}, DeskOptions{}, nil)
}

func TestOpenLeavesLineAndRequestsBadge(t *testing.T) {
	printed := &models.Registration{ID: 1, Status: models.StatusPaid, NeedsPrint: models.NeedsPrintNo}
	f, desk := newDeskFixture(printed)
	ctx := context.Background()
	require.NoError(t, f.queue.Enqueue(ctx, f.cv, 1, "regline", false, ""))

	got, err := desk.Open(ctx, f.cv, 1, true)
	require.NoError(t, err)
	assert.True(t, got.BadgeRequested)
	assert.Equal(t, "00001", got.BadgeNumber)
	assert.Equal(t, []string{"readybadge"}, f.store.memberships(1))

	pull, err := desk.BadgeRequests(ctx, f.cv)
	require.NoError(t, err)
	require.Len(t, pull, 1)
	assert.Equal(t, printed, pull[0].Registration)

	require.NoError(t, desk.Acknowledge(ctx, f.cv, 1))
	assert.Empty(t, f.store.memberships(1))
}

func TestOpenSkipsBadgeRequest(t *testing.T) {
	cases := []struct {
		name string
		reg  *models.Registration
		auto bool
	}{
		{"auto request off", &models.Registration{ID: 1, Status: models.StatusPaid, NeedsPrint: models.NeedsPrintNo}, false},
		{"unpaid", &models.Registration{ID: 1, Status: models.StatusUnpaid, NeedsPrint: models.NeedsPrintNo}, true},
		{"already checked in", &models.Registration{ID: 1, Status: models.StatusPaid, CheckedIn: true, NeedsPrint: models.NeedsPrintNo}, true},
		{"not printed yet", &models.Registration{ID: 1, Status: models.StatusPaid, NeedsPrint: models.NeedsPrintYesNew}, true},
		{"awaiting reprint", &models.Registration{ID: 1, Status: models.StatusPaid, NeedsPrint: models.NeedsPrintYesUpgraded}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, desk := newDeskFixture(tc.reg)
			ctx := context.Background()
			require.NoError(t, f.queue.Enqueue(ctx, f.cv, 1, "regline", false, ""))

			got, err := desk.Open(ctx, f.cv, 1, tc.auto)
			require.NoError(t, err)
			assert.False(t, got.BadgeRequested)
			assert.Empty(t, f.store.memberships(1))
		})
	}
}

func TestOpenUnknownRegistration(t *testing.T) {
	f, desk := newDeskFixture()
	_, err := desk.Open(context.Background(), f.cv, 42, true)
	assert.ErrorIs(t, err, registrations.ErrNotFound)
}

func TestLineShowsFiveAndSkipsVanished(t *testing.T) {
	var regs []*models.Registration
	for id := int64(1); id <= 7; id++ {
		regs = append(regs, &models.Registration{ID: id, Status: models.StatusUnpaid, NeedsPrint: models.NeedsPrintYesNew})
	}
	f, desk := newDeskFixture(regs...)
	ctx := context.Background()
	for id := int64(1); id <= 7; id++ {
		require.NoError(t, f.queue.Enqueue(ctx, f.cv, id, "regline", false, ""))
	}
	delete(desk.regs.(*fakeRegistrations).regs, 2)

	line, err := desk.Line(ctx, f.cv)
	require.NoError(t, err)
	require.Len(t, line, 4)
	assert.Equal(t, int64(1), line[0].RegistrationID)
	assert.Equal(t, int64(3), line[1].RegistrationID)
	assert.Empty(t, line[0].BadgeNumber)
}

func TestEnqueueRecordsRoomNumber(t *testing.T) {
	reg := &models.Registration{ID: 7, Status: models.StatusPaid}
	f, desk := newDeskFixture(reg)
	regs := desk.regs.(*fakeRegistrations)
	ctx := context.Background()
	wrangler := models.Actor{Username: "wrangler@example.org"}

	room := 1204
	require.NoError(t, desk.Enqueue(ctx, f.cv, wrangler, 7, "regline", false, "", &room))
	require.NotNil(t, reg.RoomNumber)
	assert.Equal(t, 1204, *reg.RoomNumber)
	assert.Equal(t, []string{"wrangler@example.org"}, regs.edited)
	assert.Equal(t, []string{"regline"}, f.store.memberships(7))

	require.NoError(t, desk.Enqueue(ctx, f.cv, wrangler, 7, "readybadge", false, "", nil))
	assert.Len(t, regs.edited, 1, "no room number, no edit")

	other := 9
	err := desk.Enqueue(ctx, f.cv, wrangler, 7, "Bad Name!", false, "", &other)
	assert.ErrorIs(t, err, ErrInvalidQueue)
	assert.Equal(t, 1204, *reg.RoomNumber)
	assert.Len(t, regs.edited, 1)
}
