package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("badge-desk")
	require.NoError(t, err)
	assert.NotEqual(t, "badge-desk", hashed)
	assert.True(t, CheckPassword("badge-desk", hashed))
	assert.False(t, CheckPassword("wrong", hashed))
}
