package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/auth"
	"github.com/conreg/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(jwtService *auth.JWTService, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(jwtService)}, mw...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/", handlers...)
	return r
}

func bearer(t *testing.T, jwtService *auth.JWTService, role models.Role) string {
	t.Helper()
	token, err := jwtService.Generate(uuid.New(), string(role)+"@example.org", string(role))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestJWT_MissingHeader(t *testing.T) {
	r := newRouter(auth.NewJWTService("secret", 1))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	jwtService := auth.NewJWTService("secret", 1)
	r := newRouter(jwtService, RequireRole(models.RoleSuperuser, models.RoleRegLead))

	cases := []struct {
		role models.Role
		want int
	}{
		{models.RoleSuperuser, http.StatusOK},
		{models.RoleRegLead, http.StatusOK},
		{models.RoleRegRAF, http.StatusForbidden},
		{models.RoleStaff, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", bearer(t, jwtService, tc.role))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequireTerminal_LeadReceivesCookie(t *testing.T) {
	jwtService := auth.NewJWTService("secret", 1)
	r := newRouter(jwtService, RequireTerminal(jwtService, 96*time.Hour, nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, jwtService, models.RoleRegLead))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, TerminalCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, int((96 * time.Hour).Seconds()), cookies[0].MaxAge)

	claims, err := jwtService.ValidateTerminal(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "reglead@example.org", claims.AuthorizedBy)
}

func TestRequireTerminal_RankAndFileNeedsCookie(t *testing.T) {
	jwtService := auth.NewJWTService("secret", 1)
	r := newRouter(jwtService, RequireTerminal(jwtService, time.Hour, nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, jwtService, models.RoleRegRAF))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	terminal, err := jwtService.GenerateTerminal("lead@example.org", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, jwtService, models.RoleRegRAF))
	req.AddCookie(&http.Cookie{Name: TerminalCookie, Value: terminal})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireTerminal_RejectsStaffSessionTokenAsCookie(t *testing.T) {
	jwtService := auth.NewJWTService("secret", 1)
	r := newRouter(jwtService, RequireTerminal(jwtService, time.Hour, nil))

	session, err := jwtService.Generate(uuid.New(), "x@example.org", string(models.RoleRegRAF))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session)
	req.AddCookie(&http.Cookie{Name: TerminalCookie, Value: session})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireTerminal_OtherRolesForbidden(t *testing.T) {
	jwtService := auth.NewJWTService("secret", 1)
	r := newRouter(jwtService, RequireTerminal(jwtService, time.Hour, nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, jwtService, models.RoleStaff))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeskChainGuardsWebsocketHandshake(t *testing.T) {
	jwtService := auth.NewJWTService("secret", 1)
	r := gin.New()
	handlers := append(Desk(JWTQuery(jwtService), jwtService, time.Hour, nil), func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, string(actor.Role))
	})
	r.GET("/ws", handlers...)

	token := func(role models.Role) string {
		tok, err := jwtService.Generate(uuid.New(), string(role)+"@example.org", string(role))
		require.NoError(t, err)
		return tok
	}
	terminal, err := jwtService.GenerateTerminal("lead@example.org", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		query  string
		cookie bool
		want   int
	}{
		{"no token", "", false, http.StatusUnauthorized},
		{"bad token", "?token=nope", false, http.StatusUnauthorized},
		{"non desk role", "?token=" + token(models.RoleStaff), true, http.StatusForbidden},
		{"rank and file without terminal", "?token=" + token(models.RoleRegRAF), false, http.StatusForbidden},
		{"rank and file on terminal", "?token=" + token(models.RoleRegRAF), true, http.StatusOK},
		{"lead authorizes terminal", "?token=" + token(models.RoleRegLead), false, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws"+tc.query, nil)
			if tc.cookie {
				req.AddCookie(&http.Cookie{Name: TerminalCookie, Value: terminal})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func corsRouter(origins string) *gin.Engine {
	r := gin.New()
	r.Use(CORS(origins))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORS_ListedOrigin(t *testing.T) {
	r := corsRouter("http://localhost:3000, https://reg.example.org")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://reg.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://reg.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_Wildcard(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://anywhere.test")
	corsRouter("*").ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
