package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/matchday/pkg/config"
	"github.com/fatflowers/matchday/pkg/logctx"
)

type stubVerifier struct {
	tokens map[string]*Identity
}

func (s stubVerifier) VerifyToken(_ context.Context, raw string) (*Identity, error) {
	id, ok := s.tokens[raw]
	if !ok {
		return nil, errors.New("token expired")
	}
	return id, nil
}

func newAuthEngine(mode cfgpkg.AuthMode, v TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(zap.NewNop().Sugar()))
	g := r.Group("/", Auth(mode, v, zap.NewNop().Sugar()))
	g.GET("/me", func(c *gin.Context) {
		id := IdentityFrom(c)
		c.String(http.StatusOK, id.UserID+"|"+logctx.UserID(c.Request.Context()))
	})
	g.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAuth_Firebase(t *testing.T) {
	v := stubVerifier{tokens: map[string]*Identity{
		"good":  {UserID: "u1"},
		"admin": {UserID: "root-user", Admin: true},
	}}
	r := newAuthEngine(cfgpkg.AuthModeFirebase, v)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{name: "missing header", path: "/me", status: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/me", header: "Basic good", status: http.StatusUnauthorized},
		{name: "bad token", path: "/me", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "good token", path: "/me", header: "Bearer good", status: http.StatusOK, body: "u1|u1"},
		{name: "lowercase scheme", path: "/me", header: "bearer good", status: http.StatusOK, body: "u1|u1"},
		{name: "admin route without claim", path: "/admin", header: "Bearer good", status: http.StatusForbidden},
		{name: "admin route with claim", path: "/admin", header: "Bearer admin", status: http.StatusOK, body: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				require.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestAuth_FirebaseWithoutVerifierRejects(t *testing.T) {
	r := newAuthEngine(cfgpkg.AuthModeFirebase, nil)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_HeaderMode(t *testing.T) {
	r := newAuthEngine(cfgpkg.AuthModeHeader, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "dev-user")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "dev-user|dev-user", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(HeaderUserID, "dev-user")
	req.Header.Set(HeaderUserAdmin, "true")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("  Bearer   abc ")
	require.True(t, ok)
	require.Equal(t, "abc", tok)

	_, ok = bearerToken("Bearer ")
	require.False(t, ok)
	_, ok = bearerToken("abc")
	require.False(t, ok)
}
