package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvatarExtension(t *testing.T) {
	ext, ok := AvatarExtension(" IMAGE/PNG ")
	assert.True(t, ok)
	assert.Equal(t, ".png", ext)

	_, ok = AvatarExtension("video/mp4")
	assert.False(t, ok)
}

func TestTempAvatarKey(t *testing.T) {
	assert.Equal(t, "avatars/temp/abc.jpg", TempAvatarKey("abc", ".jpg"))
}
