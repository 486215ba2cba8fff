// Package muser serves registration, login and the user management
// endpoints.
package muser

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskhub/internal/authmw"
	"taskhub/internal/cache"
	"taskhub/internal/role"
	"taskhub/internal/store"
)

type Deps struct {
	Users    store.UserStore
	Revoked  store.RevocationStore
	Tokens   *authmw.TokenManager
	Resolver *authmw.Resolver
	Cache    *cache.Cache
	Log      *logrus.Logger
	Now      func() time.Time
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.BcryptCost == 0 {
		d.BcryptCost = bcrypt.DefaultCost
	}
	return &Handler{Deps: d}
}

// SetRoutes mounts /auth and /users under api. Authentication is applied
// per route since registration and login are reachable anonymously.
func (h *Handler) SetRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Resolver.Optional(), h.handleRegister)
		auth.POST("/login", h.handleLogin)
		auth.POST("/logout", h.Resolver.Require(), h.handleLogout)
		auth.GET("/profile", h.Resolver.Require(), h.handleProfileGet)
		auth.PUT("/profile", h.Resolver.Require(), h.handleProfileUpdate)
	}

	users := api.Group("/users", h.Resolver.Require())
	{
		users.GET("", authmw.RequireRole(role.Manager), h.handleListUsers)
		users.GET("/:id", h.handleUserGet)
		users.PUT("/:id", h.handleUserUpdate)
		users.PUT("/:id/role", authmw.RequireRole(role.Admin), h.handleRoleUpdate)
		users.DELETE("/:id", h.handleUserDelete)
	}
}
