// Package authmw resolves the bearer of a request into a Principal and
// gates routes on it.
package authmw

import (
	"strings"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/internal/model"
	"taskhub/internal/observability"
	"taskhub/internal/respond"
	"taskhub/internal/role"
)

const sessionKey = "auth.session"

// Require rejects requests that do not resolve to a principal.
func (r *Resolver) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := r.Resolve(c.Request.Context(), extractAccessToken(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		attach(c, s)
		c.Next()
	}
}

// Optional attaches a principal when one resolves and carries on
// anonymously otherwise.
func (r *Resolver) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractAccessToken(c); token != "" {
			if s, err := r.Resolve(c.Request.Context(), token); err == nil {
				attach(c, s)
			}
		}
		c.Next()
	}
}

// RequireRole must run after Require.
func RequireRole(min role.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			respond.Error(c, apperr.Unauthenticated("no token provided"))
			return
		}
		if !role.AtLeast(p.Role, min) {
			respond.Error(c, apperr.Forbidden("insufficient role"))
			return
		}
		c.Next()
	}
}

func attach(c *gin.Context, s *Session) {
	c.Set(sessionKey, s)
	observability.Annotate(c, "principal", s.Principal.ID)
}

func SessionFrom(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok && s != nil
}

func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	s, ok := SessionFrom(c)
	if !ok {
		return model.Principal{}, false
	}
	return s.Principal, true
}

// --- helpers ---

// extractAccessToken reads a bearer header and falls back to the
// access_token cookie.
func extractAccessToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
