package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskpulse/internal/app/dispatch"
	"taskpulse/internal/app/registry"
	"taskpulse/internal/config"
	"taskpulse/internal/core/domain"
	"taskpulse/internal/core/services"
	"taskpulse/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	srv  *Server
	http *httptest.Server
	reg  *registry.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		Service:  &config.ServiceConfig{Name: "taskpulse-test", Addr: ":0"},
		Auth:     &config.AuthConfig{Secret: "secret", Issuer: "taskpulse", TokenTTL: time.Hour, LoginRate: 100, LoginBurst: 100},
		Realtime: &config.RealtimeConfig{AuthTimeout: 5 * time.Second, WriteTimeout: time.Second, ReadLimit: 4096},
	}
	store := testutil.NewMemStore()
	uow := testutil.NewUnitOfWork()
	reg := registry.NewRegistry()
	disp := dispatch.NewDispatcher(log, reg)
	notifier := services.NewNotificationService(log, uow, reg, disp, services.NotifyFire)
	tokens := services.NewTokenService(log, *cfg.Auth)
	snapshots := services.NewSnapshotService(log, store.Users(), store.Teams(), store.Tasks(), nil)
	teams := services.NewTeamService(log, store.Users(), store.Teams(), snapshots, notifier, uow)
	svc := Services{
		Users:     services.NewUserService(log, store.Users()),
		Tokens:    tokens,
		Tasks:     services.NewTaskService(log, store.Users(), store.Tasks(), snapshots, notifier, uow),
		Teams:     teams,
		Handshake: services.NewHandshakeService(log, reg, services.NewIdentityService(log, tokens, store.Users()), teams, snapshots, disp, notifier, nil, time.Minute),
	}
	srv := NewServer(log, cfg, reg, svc)
	h := &harness{srv: srv, http: httptest.NewServer(srv.Handler()), reg: reg}
	t.Cleanup(h.http.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.http.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (h *harness) register(t *testing.T, name string) string {
	t.Helper()
	status, body := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": name + "@example.com", "name": name, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, status)
	return body["token"].(string)
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(h.http.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}

func TestServer_AuthenticateThenReceiveTeamUpdates(t *testing.T) {
	h := newHarness(t)
	ada := h.register(t, "ada")

	conn := h.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": ada}))
	ack := readFrame(t, conn)
	assert.Equal(t, "auth_success", ack["type"])
	assert.NotContains(t, ack, "teamId")
	waitFor(t, func() bool { return h.reg.PendingLen() == 1 })

	status, team := h.do(t, http.MethodPost, "/teams", ada, map[string]string{"name": "Platform"})
	require.Equal(t, http.StatusCreated, status)

	assoc := readFrame(t, conn)
	assert.Equal(t, "team_association_complete", assoc["type"])
	assert.Equal(t, team["id"], assoc["teamId"])
	assert.Equal(t, domain.EntityMembers, readFrame(t, conn)["entityType"])
	assert.Equal(t, domain.EntityTeams, readFrame(t, conn)["entityType"])

	status, _ = h.do(t, http.MethodPost, "/tasks", ada, map[string]string{"title": "Ship it"})
	require.Equal(t, http.StatusCreated, status)
	tasks := readFrame(t, conn)
	assert.Equal(t, domain.EntityTasks, tasks["entityType"])
	require.Len(t, tasks["payload"], 1)

	status, stats := h.do(t, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), stats["connections"])
	assert.Equal(t, float64(0), stats["pending"])
}

func TestServer_ReconnectWithTeamGetsSnapshot(t *testing.T) {
	h := newHarness(t)
	ada := h.register(t, "ada")
	status, _ := h.do(t, http.MethodPost, "/teams", ada, map[string]string{"name": "Platform"})
	require.Equal(t, http.StatusCreated, status)

	conn := h.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": ada}))
	ack := readFrame(t, conn)
	assert.Equal(t, "auth_success", ack["type"])
	assert.Contains(t, ack, "teamId")
	for _, entityType := range domain.TeamSnapshotTypes {
		assert.Equal(t, entityType, readFrame(t, conn)["entityType"])
	}
}

func TestServer_BadFirstFrameClosesConnection(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat"}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, domain.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, domain.CloseNotAuthMessage.Text, closeErr.Text)
	waitFor(t, func() bool { return h.reg.Len() == 0 })
}

func TestServer_ShutdownClosesWebsockets(t *testing.T) {
	h := newHarness(t)
	ada := h.register(t, "ada")
	conn := h.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": ada}))
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.srv.Shutdown(ctx))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, domain.CloseGoingAway, closeErr.Code)
}

func TestServer_RESTErrors(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, http.MethodGet, "/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	ada := h.register(t, "ada")
	status, _ = h.do(t, http.MethodGet, "/tasks", ada, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ada@example.com", "name": "ada", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	status, _ = h.do(t, http.MethodPut, "/tasks/abc", ada, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, http.MethodPost, "/teams/join", ada, map[string]string{"code": "NOPE"})
	assert.Equal(t, http.StatusNotFound, status)

	status, health := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health["status"])
}
