// Package mtask serves the task endpoints. Single-task operations are gated
// by policy.CanAccessTask and answer 404 on denial; listings run under the
// principal's role scope.
package mtask

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskhub/internal/cache"
	"taskhub/internal/notify"
	"taskhub/internal/store"
)

type Deps struct {
	Tasks    store.TaskStore
	Users    store.UserStore
	Cache    *cache.Cache
	Notifier notify.Notifier
	Log      *logrus.Logger
	Now      func() time.Time
	// ListTTL bounds how long a cached listing page lives.
	ListTTL time.Duration
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = notify.Discard
	}
	return &Handler{Deps: d}
}

// SetRoutes mounts the handlers on an authenticated group.
func (h *Handler) SetRoutes(secure *gin.RouterGroup) {
	tasks := secure.Group("/tasks")
	{
		tasks.POST("", h.handleTaskCreate)
		tasks.GET("", h.handleListTasks)
		tasks.GET("/search", h.handleSearchTasks)
		tasks.GET("/assigned-to-me", h.handleAssignedToMe)
		tasks.POST("/bulk-assign", h.handleBulkAssign)
		tasks.GET("/:id", h.handleTaskGet)
		tasks.PUT("/:id", h.handleTaskUpdate)
		tasks.DELETE("/:id", h.handleTaskDelete)
		tasks.PUT("/:id/assign", h.handleTaskAssign)
	}
}
