package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/matchday/pkg/config"
	"github.com/fatflowers/matchday/pkg/logctx"
	"github.com/fatflowers/matchday/pkg/response"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserAdmin = "X-User-Admin"

	keyIdentity = "identity"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin"`
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*Identity, error)
}

// Auth resolves the caller identity and aborts with 401 when there is none.
// In header mode the X-User-ID / X-User-Admin headers are trusted as is.
func Auth(mode cfgpkg.AuthMode, verifier TokenVerifier, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveIdentity(c, mode, verifier, base)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized())
			return
		}

		c.Set(keyIdentity, id)
		c.Set(logctx.KeyUserID, id.UserID)
		c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), id.UserID))
		if l, ok := c.Get(logctx.KeyLogger); ok {
			if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
				setLogger(c, lg.With("user_id", id.UserID))
			}
		}
		c.Next()
	}
}

func resolveIdentity(c *gin.Context, mode cfgpkg.AuthMode, verifier TokenVerifier, base *zap.SugaredLogger) (*Identity, bool) {
	if mode == cfgpkg.AuthModeHeader {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" {
			return nil, false
		}
		return &Identity{UserID: uid, Admin: c.GetHeader(HeaderUserAdmin) == "true"}, true
	}

	if verifier == nil {
		return nil, false
	}
	raw, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return nil, false
	}
	id, err := verifier.VerifyToken(c.Request.Context(), raw)
	if err != nil || id == nil || id.UserID == "" {
		if err != nil {
			logctx.FromGin(c, base).Infof("rejected id token: %v", err)
		}
		return nil, false
	}
	return id, true
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAdmin aborts with 403 unless the caller carries the admin claim.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if id == nil || !id.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Forbidden())
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity set by Auth, or nil.
func IdentityFrom(c *gin.Context) *Identity {
	v, ok := c.Get(keyIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}
