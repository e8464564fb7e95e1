package realtime

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestServeWsNeedsAuthenticatedStaff(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, nil, nil)
	resolved := false
	anonymous := func(*gin.Context) (uuid.UUID, string, bool) { return uuid.Nil, "", false }
	resolve := func(*gin.Context) (uuid.UUID, bool) {
		resolved = true
		return uuid.New(), true
	}

	r := gin.New()
	r.GET("/ws", ServeWs(hub, nil, anonymous, resolve))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token=anything", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resolved)
	assert.Zero(t, hub.TerminalCount(uuid.Nil))
}
