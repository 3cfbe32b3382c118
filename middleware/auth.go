package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/phillip/buildtogether-go/auth"
	"go.uber.org/zap"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session_token"

	identityKey = "identity"
)

// AuthOptions tunes where RequireAuth looks for a token.
type AuthOptions struct {
	// AllowQueryToken accepts ?token=, for websocket upgrades where browsers
	// cannot set headers.
	AllowQueryToken bool
}

// RequireAuth verifies the session token from the Authorization header, the
// session cookie or (when allowed) the token query parameter, and stores the
// caller on the gin context.
func RequireAuth(tokens *auth.Issuer, opts ...AuthOptions) gin.HandlerFunc {
	var o AuthOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			raw, _ = c.Cookie(SessionCookie)
		}
		if raw == "" && o.AllowQueryToken {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		id, err := tokens.Parse(raw)
		if err != nil {
			zap.L().Debug("rejected session token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(identityKey, id)
		c.Set("user_id", id.ID)
		c.Set("user_name", id.Name)
		c.Set("user_email", id.Email)
		c.Next()
	}
}

// CurrentUser returns the identity set by RequireAuth.
func CurrentUser(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
