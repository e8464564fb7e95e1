package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/registrations"
	"github.com/conreg/backend/pkg/queue"
)

type fakeQueue struct {
	jobs []queue.EmailPayload
	err  error
}

func (q *fakeQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, p)
	return nil
}

func fixtures() (*models.Convention, *models.Registration) {
	cv := &models.Convention{ID: uuid.New(), Name: "FurCon 2026", ContactEmail: "reg@furcon.example"}
	reg := &models.Registration{ID: 12, ExternalID: "aB3x9Q", FirstName: "Robin", LastName: "Fox",
		BadgeName: "Foxy", Email: "robin@example.com", Status: models.StatusPaid}
	return cv, reg
}

func TestRegistrationConfirmed(t *testing.T) {
	q := &fakeQueue{}
	n := New(q, Recipients{}, nil)
	cv, reg := fixtures()

	n.RegistrationConfirmed(context.Background(), cv, reg, 4550)
	require.Len(t, q.jobs, 1)
	job := q.jobs[0]
	assert.Equal(t, models.EmailTypeRegistrationConfirmation, job.EmailType)
	assert.Equal(t, "robin@example.com", job.RecipientEmail)
	assert.Equal(t, cv.ID, *job.ConventionID)
	assert.Equal(t, int64(12), *job.RegistrationID)
	assert.Contains(t, job.Body, "Confirmation code: aB3x9Q")
	assert.Contains(t, job.Body, "Total: $45.50")
	assert.NotContains(t, job.Body, "not paid")
}

func TestRegistrationFlaggedRoutesToGroups(t *testing.T) {
	q := &fakeQueue{}
	n := New(q, Recipients{RegistrationGroup: []string{"reg@x"}, BoardGroup: []string{"board1@x", "board2@x"}}, nil)
	cv, reg := fixtures()

	n.RegistrationFlagged(context.Background(), cv, reg, &registrations.PostCreateResult{
		Holds:            []models.RegistrationHold{{PrivateNotesAddition: "Banned 2024"}},
		NotifyBoardGroup: true,
	})
	require.Len(t, q.jobs, 2)
	assert.Equal(t, "board1@x", q.jobs[0].RecipientEmail)
	assert.Equal(t, "board2@x", q.jobs[1].RecipientEmail)
	assert.Contains(t, q.jobs[0].Body, "Banned 2024")

	q.jobs = nil
	n.RegistrationFlagged(context.Background(), cv, reg, &registrations.PostCreateResult{
		Duplicates:              []models.Registration{{ID: 3, FirstName: "Robin", LastName: "Fox"}},
		NotifyRegistrationGroup: true,
	})
	require.Len(t, q.jobs, 1)
	assert.Equal(t, models.EmailTypeDuplicateRegistration, q.jobs[0].EmailType)
	assert.Equal(t, "reg@x", q.jobs[0].RecipientEmail)
}

func TestEnqueueFailureIsSwallowed(t *testing.T) {
	n := New(&fakeQueue{err: errors.New("redis down")}, Recipients{Treasurer: []string{"t@x"}}, nil)
	cv, reg := fixtures()
	assert.NotPanics(t, func() {
		n.RegistrationConfirmed(context.Background(), cv, reg, 0)
		n.RefundReport(context.Background(), "Refunds", "nothing")
	})
	New(nil, Recipients{}, nil).UpgradeConfirmed(context.Background(), cv, reg, "Sponsor", 1000)
}
