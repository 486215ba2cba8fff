// Package mstats serves the analytics endpoints. Every aggregate is computed
// under a scope.Filter so the counts agree with what the caller may list.
package mstats

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskhub/internal/authmw"
	"taskhub/internal/cache"
	"taskhub/internal/role"
	"taskhub/internal/store"
)

type Deps struct {
	Tasks store.TaskStore
	Users store.UserStore
	Cache *cache.Cache
	Log   *logrus.Logger
	Now   func() time.Time
	// OverviewTTL of zero uses the cache default.
	OverviewTTL time.Duration
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{Deps: d}
}

func (h *Handler) SetRoutes(secure *gin.RouterGroup) {
	analytics := secure.Group("/analytics")
	{
		analytics.GET("/overview", h.handleOverview)
		analytics.GET("/by-status", h.handleByStatus)
		analytics.GET("/team/:team", authmw.RequireRole(role.Manager), h.handleTeamStats)
		analytics.GET("/user/:id", h.handleUserStats)
	}
}
