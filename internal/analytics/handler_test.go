package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryFinish(t *testing.T) {
	s := SummaryResponse{
		ByStatus:  map[string]int{"paid": 8, "unpaid": 3, "refunded": 2, "rejected": 1},
		CheckedIn: 6,
	}
	s.Finish()
	assert.Equal(t, 11, s.TotalLive)
	assert.Equal(t, 2, s.NotCheckedIn)
	require.NotNil(t, s.CheckInRate)
	assert.InDelta(t, 0.75, *s.CheckInRate, 1e-9)
}

func TestSummaryFinishWithoutPaid(t *testing.T) {
	s := SummaryResponse{ByStatus: map[string]int{"unpaid": 4}}
	s.Finish()
	assert.Equal(t, 4, s.TotalLive)
	assert.Zero(t, s.NotCheckedIn)
	assert.Nil(t, s.CheckInRate)
}
