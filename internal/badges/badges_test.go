package badges

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conreg/backend/internal/models"
)

func TestNumber_PrintedStyle(t *testing.T) {
	cv := &models.Convention{Settings: models.RegistrationSettings{BadgeNumberStyle: models.BadgeNumberAssignedWhenPrinted}}
	reg := &models.Registration{ID: 900, NeedsPrint: models.NeedsPrintNo}

	_, ok := Number(cv, reg, nil)
	assert.False(t, ok)

	n, ok := Number(cv, reg, &models.BadgeAssignment{ID: 42})
	assert.True(t, ok)
	assert.Equal(t, "00042", n)

	// the latest assignment wins even if a reprint is pending
	reg.NeedsPrint = models.NeedsPrintYesUpgraded
	n, ok = Number(cv, reg, &models.BadgeAssignment{ID: 123456})
	assert.True(t, ok)
	assert.Equal(t, "123456", n)
}

func TestNumber_RegistrationStyle(t *testing.T) {
	cv := &models.Convention{Settings: models.RegistrationSettings{
		BadgeNumberStyle: models.BadgeNumberAssignedAtRegistration,
		BadgeOffset:      1000,
	}}

	cases := []struct {
		needsPrint models.NeedsPrint
		wantOK     bool
	}{
		{models.NeedsPrintYesNew, false},
		{models.NeedsPrintYesUpgraded, false},
		{models.NeedsPrintNo, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.needsPrint), func(t *testing.T) {
			reg := &models.Registration{ID: 1234, NeedsPrint: tc.needsPrint}
			n, ok := Number(cv, reg, &models.BadgeAssignment{ID: 7})
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, "00234", n)
			}
		})
	}
}

func TestRegistrationID(t *testing.T) {
	cv := &models.Convention{Settings: models.RegistrationSettings{BadgeOffset: 1000}}
	assert.Equal(t, int64(1234), RegistrationID(cv, 234))
}
