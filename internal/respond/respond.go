// Package respond writes the JSON envelope every endpoint answers with and
// translates errors into it.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/internal/observability"
)

// Envelope is the body of every response.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func JSON(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func OK(c *gin.Context, data any) {
	JSON(c, http.StatusOK, data)
}

func Created(c *gin.Context, data any) {
	JSON(c, http.StatusCreated, data)
}

// Page is the data of a paginated listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// Error writes err as a failure envelope and aborts the chain. Errors that
// are not *apperr.Error are treated as internal; the cause is logged and
// never shown to the client.
func Error(c *gin.Context, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.KindInternal {
		observability.Entry(c).WithError(e.Unwrap()).Error(e.Message)
	}
	c.AbortWithStatusJSON(e.Kind.Status(), Envelope{
		Success: false,
		Error:   e.Message,
		Details: e.Fields,
	})
}
