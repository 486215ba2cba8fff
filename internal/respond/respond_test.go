package respond

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/internal/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	OK(c, gin.H{"id": "t1"})

	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"id": "t1"}, env.Data)
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.Unauthenticated("no token provided"), http.StatusUnauthorized, "no token provided"},
		{apperr.Forbidden("insufficient role"), http.StatusForbidden, "insufficient role"},
		{apperr.NotFound("task not found"), http.StatusNotFound, "task not found"},
		{apperr.Conflict("email already registered"), http.StatusConflict, "email already registered"},
		{errors.New("pool exhausted"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		env := decode(t, w)
		assert.False(t, env.Success)
		assert.Equal(t, tc.msg, env.Error)
		assert.NotContains(t, w.Body.String(), "pool exhausted")
		assert.True(t, c.IsAborted())
	}
}

type bindReq struct {
	Title    string `json:"title" binding:"required,min=1,max=5"`
	Priority string `json:"priority" binding:"omitempty,oneof=low medium high"`
	Count    int    `json:"count"`
}

func bind(t *testing.T, body string) error {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	var req bindReq
	return BindJSON(c, &req)
}

func TestBindJSONFieldMessages(t *testing.T) {
	err := bind(t, `{"title":"much too long","priority":"urgent"}`)
	e := apperr.As(err)
	require.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "must be at most 5 characters", e.Fields["title"])
	assert.Equal(t, "must be one of low, medium, high", e.Fields["priority"])

	e = apperr.As(bind(t, `{}`))
	assert.Equal(t, "is required", e.Fields["title"])

	e = apperr.As(bind(t, `{"title":"a","count":"x"}`))
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "count")

	e = apperr.As(bind(t, `{`))
	assert.Equal(t, apperr.KindValidation, e.Kind)

	assert.NoError(t, bind(t, `{"title":"ok"}`))
}

func TestBindQuery(t *testing.T) {
	type params struct {
		Page  int    `form:"page"`
		Order string `form:"order" json:"order" binding:"omitempty,oneof=asc desc"`
	}
	bindQuery := func(raw string) (params, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+raw, nil)
		var p params
		return p, BindQuery(c, &p)
	}

	p, err := bindQuery("page=3&order=asc")
	require.NoError(t, err)
	assert.Equal(t, params{Page: 3, Order: "asc"}, p)

	_, err = bindQuery("page=three")
	e := apperr.As(err)
	require.NotNil(t, e)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "invalid query parameters", e.Message)

	_, err = bindQuery("order=sideways")
	e = apperr.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "must be one of asc, desc", e.Fields["order"])
}
