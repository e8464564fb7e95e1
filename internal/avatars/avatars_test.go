package avatars

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/storage"
)

type memStore struct {
	rows map[uuid.UUID]models.TempAvatar
}

func (m *memStore) Create(_ context.Context, a *models.TempAvatar) error {
	m.rows[a.ID] = *a
	return nil
}

func (m *memStore) UploadedBefore(_ context.Context, cutoff time.Time) ([]models.TempAvatar, error) {
	var out []models.TempAvatar
	for _, a := range m.rows {
		if a.UploadedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.rows, id)
	return nil
}

type fakeObjects struct {
	objects  map[string]string
	failKeys map[string]bool
}

func (f *fakeObjects) GeneratePresignedUploadURL(_ context.Context, key, _ string) (string, error) {
	return "https://bucket.example/" + key + "?sig=1", nil
}

func (f *fakeObjects) PresignExpire() time.Duration { return 15 * time.Minute }

func (f *fakeObjects) Upload(_ context.Context, key, _ string, body io.Reader) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = string(b)
	return nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	if f.failKeys[key] {
		return errors.New("access denied")
	}
	delete(f.objects, key)
	return nil
}

func newService() (*Service, *memStore, *fakeObjects) {
	st := &memStore{rows: map[uuid.UUID]models.TempAvatar{}}
	obj := &fakeObjects{objects: map[string]string{}, failKeys: map[string]bool{}}
	return NewService(st, obj, time.Hour, nil), st, obj
}

func TestPresign(t *testing.T) {
	svc, st, _ := newService()

	up, err := svc.Presign(context.Background(), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.ObjectKey, storage.FolderTempAvatars+"/"))
	assert.True(t, strings.HasSuffix(up.ObjectKey, ".png"))
	assert.Contains(t, up.URL, up.ObjectKey)
	assert.Equal(t, 900, up.ExpiresIn)
	assert.Len(t, st.rows, 1)

	_, err = svc.Presign(context.Background(), "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Len(t, st.rows, 1)
}

func TestPut(t *testing.T) {
	svc, st, obj := newService()

	a, err := svc.Put(context.Background(), "image/jpeg", 4, strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", obj.objects[a.ObjectKey])
	assert.Contains(t, st.rows, a.ID)

	_, err = svc.Put(context.Background(), "image/jpeg", storage.MaxAvatarFileSize+1, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCleanupRemovesStaleOnly(t *testing.T) {
	svc, st, obj := newService()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	add := func(key string, age time.Duration) uuid.UUID {
		id := uuid.New()
		st.rows[id] = models.TempAvatar{ID: id, ObjectKey: key, UploadedAt: now.Add(-age)}
		obj.objects[key] = "x"
		return id
	}
	fresh := add("avatars/temp/fresh.png", 10*time.Minute)
	add("avatars/temp/old.png", 2*time.Hour)
	stuck := add("avatars/temp/stuck.png", 3*time.Hour)
	obj.failKeys["avatars/temp/stuck.png"] = true

	n, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, st.rows, fresh)
	assert.Contains(t, st.rows, stuck)
	assert.Len(t, st.rows, 2)
	assert.NotContains(t, obj.objects, "avatars/temp/old.png")
}
