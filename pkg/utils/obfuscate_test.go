package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternalIDKnownValues(t *testing.T) {
	cases := []struct {
		id   int64
		want string
	}{
		{1, "MuMGAs"},
		{2, "AEPZZs"},
		{42, "8ifilL"},
		{1000, "uq1mmDb"},
		{123456789, "Qlfnbcb"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExternalID(tc.id), "id %d", tc.id)
	}
}

func TestFeistelDistinctForSequentialIDs(t *testing.T) {
	seen := make(map[string]int64)
	for id := int64(1); id <= 5000; id++ {
		ext := ExternalID(id)
		prev, dup := seen[ext]
		assert.False(t, dup, "ids %d and %d collide on %q", prev, id, ext)
		seen[ext] = id
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(0))
	assert.Equal(t, "b", Stringify(1))
	assert.Equal(t, "9", Stringify(61))
	assert.Equal(t, "ab", Stringify(62))
}
