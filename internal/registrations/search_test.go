package registrations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/models"
)

func TestHoldMatches(t *testing.T) {
	bday := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	reg := &models.Registration{
		FirstName: "Robin",
		LastName:  "Fox",
		Email:     "robin@example.com",
		City:      "Denver",
		Birthday:  bday.Add(15 * time.Hour),
		IP:        "203.0.113.7",
	}
	otherDay := bday.AddDate(0, 0, 1)

	cases := []struct {
		name string
		hold models.RegistrationHold
		want bool
	}{
		{"empty hold never matches", models.RegistrationHold{NotesAddition: "x"}, false},
		{"last name ignores case", models.RegistrationHold{LastName: "FOX"}, true},
		{"padding ignored", models.RegistrationHold{LastName: " fox "}, true},
		{"all set fields must match", models.RegistrationHold{LastName: "Fox", FirstName: "Sam"}, false},
		{"email and city", models.RegistrationHold{Email: "Robin@Example.com", City: "denver"}, true},
		{"birthday same day", models.RegistrationHold{Birthday: &bday}, true},
		{"birthday other day", models.RegistrationHold{LastName: "Fox", Birthday: &otherDay}, false},
		{"ip exact", models.RegistrationHold{IP: "203.0.113.7"}, true},
		{"ip prefix does not match", models.RegistrationHold{IP: "203.0.113"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HoldMatches(&tc.hold, reg))
		})
	}
}

func TestPostCreateAppliesHoldsAndFlagsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.store.holds = []models.RegistrationHold{
		{ID: uuid.New(), LastName: "fox", NotesAddition: "Bring ID", PrivateNotesAddition: "Banned 2024", NotifyBoardGroup: true},
		{ID: uuid.New(), LastName: "wolf", PrivateCheckIn: true},
	}

	first := f.register(t, f.request("Robin", "Fox", f.attendee.ID))
	assert.Equal(t, "Registration notes:\nBring ID\n\n", first.Notes)
	assert.Equal(t, "Registration flagged:\nBanned 2024\n\n", first.PrivateNotes)
	assert.False(t, first.PrivateCheckIn)
	require.Len(t, f.notifier.flagged, 1)
	assert.True(t, f.notifier.flagged[0].NotifyBoardGroup)
	assert.Empty(t, f.notifier.flagged[0].Duplicates)

	again := f.request("robin", "fox", f.attendee.ID)
	again.Email = "robin2@example.com"
	res, err := f.svc.Register(context.Background(), f.cv, models.Actor{}, again)
	require.NoError(t, err)
	require.Len(t, res.PostCreate.Duplicates, 1)
	assert.Equal(t, first.ID, res.PostCreate.Duplicates[0].ID)
	assert.True(t, res.PostCreate.NotifyRegistrationGroup)
	assert.Contains(t, res.Registration.PrivateNotes, "Possible duplicate registration received, matching:\n")
	assert.Contains(t, res.Registration.PrivateNotes, first.ExternalID)
	assert.NotEqual(t, first.ExternalID, res.Registration.ExternalID)

	unrelated := f.register(t, f.request("Ash", "Birch", f.attendee.ID))
	assert.Empty(t, unrelated.PrivateNotes)
	assert.Len(t, f.notifier.flagged, 2)
}

func TestAddHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.AddHold(ctx, f.lead, &models.RegistrationHold{PrivateCheckIn: true})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, f.svc.AddHold(ctx, f.lead, &models.RegistrationHold{Email: "trouble@example.com", PrivateCheckIn: true}))
	holds, err := f.svc.Holds(ctx)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, "trouble@example.com", holds[0].Email)
}

func TestParseSearch(t *testing.T) {
	cv := &models.Convention{Settings: models.RegistrationSettings{BadgeOffset: 1000}}

	q := ParseSearch(cv, "  fox   12 ", 20)
	assert.Equal(t, []string{"fox", "12"}, q.Terms)
	assert.Equal(t, []int64{1012}, q.IDs)
	assert.Equal(t, 20, q.Limit)

	q = ParseSearch(cv, "robin", 5)
	assert.Empty(t, q.IDs)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.nextID = 1000
	f.cv.Settings.BadgeOffset = 1000
	robin := f.register(t, f.request("Robin", "Fox", f.attendee.ID))
	f.register(t, f.request("Rowan", "Fox", f.attendee.ID))
	sam := f.register(t, f.request("Sam", "Birch", f.attendee.ID))

	got, err := f.svc.Search(ctx, f.cv, "fox rob")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, robin.ID, got[0].ID)

	got, err = f.svc.Search(ctx, f.cv, "3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sam.ID, got[0].ID)

	got, err = f.svc.Search(ctx, f.cv, sam.ExternalID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sam.ID, got[0].ID)

	got, err = f.svc.Search(ctx, f.cv, "   ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSwipeSearchFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exact := f.request("Robert", "Fox", f.attendee.ID)
	robert := f.register(t, exact)
	bob := f.request("Bob", "Fox", f.attendee.ID)
	bob.Birthday = time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC)
	f.register(t, bob)

	got, err := f.svc.SwipeSearch(ctx, f.cv, Swipe{LastName: "FOX", FirstName: "ROBERT", Birthday: exact.Birthday})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, robert.ID, got[0].ID)

	// card carries a legal name that was shortened on the form
	got, err = f.svc.SwipeSearch(ctx, f.cv, Swipe{LastName: "Fox", FirstName: "Bobby", Birthday: bob.Birthday})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].FirstName)

	// married name with a known birthday
	got, err = f.svc.SwipeSearch(ctx, f.cv, Swipe{LastName: "Vulpes", FirstName: "Robert", Birthday: exact.Birthday})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, robert.ID, got[0].ID)

	got, err = f.svc.SwipeSearch(ctx, f.cv, Swipe{LastName: "Nobody", FirstName: "Known"})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.svc.SwipeSearch(ctx, f.cv, Swipe{LastName: "Fox"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
