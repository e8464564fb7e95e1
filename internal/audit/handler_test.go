package audit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterFor(t *testing.T, query string) (Filter, error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/admin/audit?"+query, nil)
	return ParseFilter(c)
}

func TestParseFilter(t *testing.T) {
	id := uuid.New()
	f, err := filterFor(t, "actor_id="+id.String()+"&action=refund&since=2026-06-01T00:00:00Z&limit=20")
	require.NoError(t, err)
	assert.Equal(t, id, *f.ActorID)
	assert.Equal(t, "refund", f.Action)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), f.Since.UTC())
	assert.Equal(t, 20, f.Limit)

	f, err = filterFor(t, "")
	require.NoError(t, err)
	assert.Nil(t, f.ActorID)
	assert.Nil(t, f.Since)

	_, err = filterFor(t, "actor_id=nope")
	assert.Error(t, err)
	_, err = filterFor(t, "since=yesterday")
	assert.Error(t, err)
}
