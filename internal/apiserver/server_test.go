package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"taskhub/internal/config"
	"taskhub/internal/model"
	"taskhub/internal/notify"
	"taskhub/internal/observability"
	"taskhub/internal/respond"
	"taskhub/internal/role"
	"taskhub/internal/store/memstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		ApiGinMode:          "test",
		Port:                "0",
		AllowedOrigins:      []string{"*"},
		AllowedMethods:      []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:      []string{"Content-Type", "Authorization"},
		JWTSecret:           "0123456789abcdef0123456789abcdef",
		JWTIssuer:           "taskhub",
		TokenTTL:            time.Hour,
		StoreDriver:         config.DriverMemory,
		CacheTTL:            time.Minute,
		ListCacheTTL:        time.Minute,
		NotifyWorkers:       1,
		NotifyQueue:         16,
		NotifyTimeout:       time.Second,
		RevocationPurgeSpec: "@every 1h",
		MetricsEnabled:      true,
	}
}

type harness struct {
	t     *testing.T
	h     http.Handler
	store *memstore.Store
	redis *redis.Client
	admin string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	st := memstore.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(context.Background(), &model.User{
		ID: "root", Name: "Root", Email: "root@example.com", PasswordHash: string(hash), Role: role.Admin,
	}))

	srv, err := New(testConfig(), observability.Discard(), Backends{Store: st, Redis: client})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
	})

	hs := &harness{t: t, h: srv.Handler(), store: st, redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { hs.redis.Close() })
	hs.admin = hs.login("root@example.com", "admin-pass")
	return hs
}

func (hs *harness) call(token, method, path string, body any) (int, respond.Envelope) {
	hs.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(hs.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	hs.h.ServeHTTP(w, req)

	var env respond.Envelope
	require.NoError(hs.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func data[T any](t *testing.T, env respond.Envelope) T {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type authData struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (hs *harness) login(email, password string) string {
	hs.t.Helper()
	code, env := hs.call("", http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": password})
	require.Equal(hs.t, http.StatusOK, code, env.Error)
	return data[authData](hs.t, env).Token
}

// register creates an account through the admin, so role and team stick,
// and returns the new user's id and token.
func (hs *harness) register(name, email string, r role.Role, team string) (string, string) {
	hs.t.Helper()
	code, env := hs.call(hs.admin, http.MethodPost, "/api/auth/register", gin.H{
		"name": name, "email": email, "password": "password1", "role": r, "team": team,
	})
	require.Equal(hs.t, http.StatusCreated, code, env.Error)
	a := data[authData](hs.t, env)
	require.Equal(hs.t, r, a.User.Role)
	return a.User.ID, a.Token
}

func TestHealthAndMetrics(t *testing.T) {
	hs := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	hs.h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive","store":"ok","cache":"ok"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	hs.h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taskhub_http_requests_total")
}

func TestSalesEngineeringIsolation(t *testing.T) {
	hs := newHarness(t)
	_, salesRep := hs.register("Rey Sales", "rey@example.com", role.User, "Sales")
	_, engMgr := hs.register("Eve Eng", "eve@example.com", role.Manager, "Engineering")
	_, salesMgr := hs.register("Sam Sales", "sam@example.com", role.Manager, "Sales")

	code, env := hs.call(salesRep, http.MethodPost, "/api/tasks", gin.H{"title": "Pipeline review", "priority": "high"})
	require.Equal(t, http.StatusCreated, code)
	task := data[model.Task](t, env)
	assert.Equal(t, "Sales", task.Team)

	path := "/api/tasks/" + task.ID
	code, env = hs.call(engMgr, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "task not found", env.Error)

	for _, token := range []string{salesRep, salesMgr, hs.admin} {
		code, _ = hs.call(token, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, code)
	}

	code, env = hs.call(engMgr, http.MethodGet, "/api/tasks?team=Sales", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, data[respond.Page[model.Task]](t, env).Items)
}

func TestOverviewSeesMutationsThroughTheAPI(t *testing.T) {
	hs := newHarness(t)
	_, dev := hs.register("Dan Dev", "dan@example.com", role.User, "Engineering")
	_, mgr := hs.register("Eve Eng", "eve@example.com", role.Manager, "Engineering")

	total := func() float64 {
		code, env := hs.call(mgr, http.MethodGet, "/api/analytics/overview", nil)
		require.Equal(t, http.StatusOK, code)
		return data[map[string]any](t, env)["total"].(float64)
	}
	assert.Zero(t, total())

	code, env := hs.call(dev, http.MethodPost, "/api/tasks", gin.H{"title": "Write tests"})
	require.Equal(t, http.StatusCreated, code)
	id := data[model.Task](t, env).ID
	assert.EqualValues(t, 1, total())

	code, _ = hs.call(dev, http.MethodDelete, "/api/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, total())
}

func TestPublicRegistrationAndLogout(t *testing.T) {
	hs := newHarness(t)

	code, env := hs.call("", http.MethodPost, "/api/auth/register", gin.H{
		"name": "Mallory", "email": "mallory@example.com", "password": "password1", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, code)
	a := data[authData](t, env)
	assert.Equal(t, role.User, a.User.Role)

	code, _ = hs.call(a.Token, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = hs.call(a.Token, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = hs.call(a.Token, http.MethodGet, "/api/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "token has been revoked", env.Error)
}

func TestAssignmentIsPublished(t *testing.T) {
	hs := newHarness(t)
	devID, _ := hs.register("Dan Dev", "dan@example.com", role.User, "Engineering")
	_, mgr := hs.register("Eve Eng", "eve@example.com", role.Manager, "Engineering")

	ctx := context.Background()
	sub := hs.redis.Subscribe(ctx, "taskhub:user:"+devID)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	code, env := hs.call(mgr, http.MethodPost, "/api/tasks", gin.H{"title": "Deploy"})
	require.Equal(t, http.StatusCreated, code)
	id := data[model.Task](t, env).ID

	code, _ = hs.call(mgr, http.MethodPut, "/api/tasks/"+id+"/assign", gin.H{"assigneeId": devID})
	require.Equal(t, http.StatusOK, code)

	select {
	case msg := <-sub.Channel():
		var e notify.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &e))
		assert.Equal(t, notify.TaskAssigned, e.Type)
		assert.Equal(t, id, e.TaskID)
		assert.Equal(t, devID, e.Recipient)
	case <-time.After(3 * time.Second):
		t.Fatal("no event published for the assignee")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "short"
	_, err := New(cfg, observability.Discard(), Backends{Store: memstore.New()})
	assert.Error(t, err)
}
