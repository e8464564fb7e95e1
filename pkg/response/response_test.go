package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		send   func(c *gin.Context)
		status int
		ok     bool
	}{
		{"ok", func(c *gin.Context) { OK(c, gin.H{"a": 1}) }, http.StatusOK, true},
		{"created", func(c *gin.Context) { Created(c, gin.H{"a": 1}) }, http.StatusCreated, true},
		{"payment required", func(c *gin.Context) { PaymentRequired(c, "declined") }, http.StatusPaymentRequired, false},
		{"conflict", func(c *gin.Context) { Conflict(c, "nope") }, http.StatusConflict, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tc.send(c)

			assert.Equal(t, tc.status, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.ok, body.Success)
		})
	}
}
