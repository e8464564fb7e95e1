// Package avatars stages avatar images uploaded during signup before the
// registration they belong to exists, and sweeps the ones never claimed.
package avatars

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/storage"
)

var (
	ErrUnsupportedType = errors.New("unsupported avatar type")
	ErrTooLarge        = errors.New("avatar too large")
)

// Objects is the object storage holding avatar files.
type Objects interface {
	GeneratePresignedUploadURL(ctx context.Context, key, contentType string) (string, error)
	PresignExpire() time.Duration
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, key string) error
}

// Store records temporary avatars.
type Store interface {
	Create(ctx context.Context, a *models.TempAvatar) error
	UploadedBefore(ctx context.Context, cutoff time.Time) ([]models.TempAvatar, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Upload is a presigned slot the browser PUTs the image into.
type Upload struct {
	ID        uuid.UUID `json:"id"`
	ObjectKey string    `json:"object_key"`
	URL       string    `json:"url"`
	ExpiresIn int       `json:"expires_in"`
}

// Service hands out upload slots and cleans up stale ones.
type Service struct {
	store   Store
	objects Objects
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates an avatar service. Temp avatars older than ttl are swept.
func NewService(store Store, objects Objects, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{store: store, objects: objects, ttl: ttl, now: time.Now, logger: logger}
}

func (s *Service) slot(contentType string) (*models.TempAvatar, error) {
	ext, ok := storage.AvatarExtension(contentType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	id := uuid.New()
	return &models.TempAvatar{ID: id, ObjectKey: storage.TempAvatarKey(id.String(), ext), UploadedAt: s.now()}, nil
}

// Presign records a temp avatar and returns a URL to upload it to.
func (s *Service) Presign(ctx context.Context, contentType string) (*Upload, error) {
	a, err := s.slot(contentType)
	if err != nil {
		return nil, err
	}
	url, err := s.objects.GeneratePresignedUploadURL(ctx, a.ObjectKey, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("record temp avatar: %w", err)
	}
	return &Upload{ID: a.ID, ObjectKey: a.ObjectKey, URL: url, ExpiresIn: int(s.objects.PresignExpire().Seconds())}, nil
}

// Put uploads an avatar through the server for clients that cannot PUT to storage.
func (s *Service) Put(ctx context.Context, contentType string, size int64, body io.Reader) (*models.TempAvatar, error) {
	if size > storage.MaxAvatarFileSize {
		return nil, ErrTooLarge
	}
	a, err := s.slot(contentType)
	if err != nil {
		return nil, err
	}
	if err := s.objects.Upload(ctx, a.ObjectKey, contentType, io.LimitReader(body, storage.MaxAvatarFileSize)); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("record temp avatar: %w", err)
	}
	return a, nil
}

// Cleanup deletes temp avatars older than the ttl and returns how many went.
// An object that cannot be deleted keeps its row for the next run.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	stale, err := s.store.UploadedBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("list stale avatars: %w", err)
	}
	removed := 0
	for _, a := range stale {
		if err := s.objects.DeleteObject(ctx, a.ObjectKey); err != nil {
			s.logger.Warn("delete temp avatar object", zap.String("key", a.ObjectKey), zap.Error(err))
			continue
		}
		if err := s.store.Delete(ctx, a.ID); err != nil {
			return removed, fmt.Errorf("delete temp avatar %s: %w", a.ID, err)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("temp avatars removed", zap.Int("count", removed), zap.Int("stale", len(stale)))
	}
	return removed, nil
}
