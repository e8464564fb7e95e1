package conventions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/models"
)

type finderFunc func(ctx context.Context) (*models.Convention, error)

func (f finderFunc) GetCurrent(ctx context.Context) (*models.Convention, error) { return f(ctx) }

func serve(finder CurrentFinder) (*httptest.ResponseRecorder, *models.Convention) {
	gin.SetMode(gin.TestMode)
	var seen *models.Convention
	r := gin.New()
	r.GET("/", RequireCurrent(finder, nil), func(c *gin.Context) {
		seen, _ = FromContext(c)
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w, seen
}

func TestRequireCurrent(t *testing.T) {
	cv := &models.Convention{ID: uuid.New(), Name: "FurCon", Settings: models.DefaultRegistrationSettings()}

	w, seen := serve(finderFunc(func(context.Context) (*models.Convention, error) { return cv, nil }))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cv, seen)

	w, seen = serve(finderFunc(func(context.Context) (*models.Convention, error) { return nil, ErrNotFound }))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Nil(t, seen)

	w, _ = serve(finderFunc(func(context.Context) (*models.Convention, error) { return nil, errors.New("db down") }))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSettingsRequestValidate(t *testing.T) {
	ok := SettingsRequest{BadgeNumberStyle: "printed", BadgeOffset: 100}
	assert.NoError(t, ok.Validate())

	bad := SettingsRequest{BadgeNumberStyle: "sequential"}
	assert.Error(t, bad.Validate())

	negative := SettingsRequest{BadgeNumberStyle: "registration", DealerTableLimit: -1}
	assert.Error(t, negative.Validate())
}

func TestDefaultSettingsOpenWithRegistrationNumbers(t *testing.T) {
	s := models.DefaultRegistrationSettings()
	assert.True(t, s.RegistrationOpen)
	assert.Equal(t, models.BadgeNumberAssignedAtRegistration, s.BadgeNumberStyle)
}
