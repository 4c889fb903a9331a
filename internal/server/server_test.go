package server

import (
	"bufio"
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

	"atlas/internal/config"
	"atlas/internal/db"
	"atlas/internal/domain"
	"atlas/internal/engine"
	"atlas/internal/migrate"
	"atlas/internal/repo"
)

const testServiceKey = "ak_test_service_key"

type testServer struct {
	URL    string
	Engine *engine.Engine
	srv    *httptest.Server
}

func (s *testServer) Close() { s.srv.Close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Server.JWTSecret = "test-secret"
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(conn, cfg, log)
	if err := e.Repo.InsertServiceKey(context.Background(), domain.ServiceKey{
		ID:        "key-1",
		Name:      "test",
		KeyHash:   repo.HashKey(testServiceKey),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		t.Fatalf("seed service key: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v1", Server: *cfg})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{URL: srv.URL, Engine: e, srv: srv}
}

func (s *testServer) request(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (s *testServer) provision(t *testing.T, username string, role domain.Role) domain.Profile {
	t.Helper()
	p, err := s.Engine.ProvisionUser(context.Background(), engine.ProvisionUserInput{
		Email:    username + "@zelenza.com",
		Password: "secret123",
		Username: username,
		FullName: "User " + username,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("provision %s: %v", username, err)
	}
	return p
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	resp, data := s.request(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    username + "@zelenza.com",
		"password": "secret123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, resp.StatusCode, data)
	}
	var session SessionResponse
	if err := json.Unmarshal(data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session.Token
}

func decodeErrorEnvelope(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode error envelope %s: %v", data, err)
	}
	if envelope.Error == "" {
		t.Fatalf("error envelope missing error field: %s", data)
	}
	return envelope.Error
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.request(t, http.MethodGet, "/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	resp, data := s.request(t, http.MethodGet, "/v1/tasks", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	decodeErrorEnvelope(t, data)
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	s.provision(t, "maria", domain.RoleUsuario)
	token := s.login(t, "maria")

	resp, data := s.request(t, http.MethodGet, "/v1/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d body %s", resp.StatusCode, data)
	}
	var me MeResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Profile.Username != "maria" {
		t.Fatalf("unexpected profile: %+v", me.Profile)
	}
	if len(me.ManagementSections) != 0 {
		t.Fatalf("plain user should see no management sections, got %v", me.ManagementSections)
	}

	resp, data = s.request(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "maria@zelenza.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d", resp.StatusCode)
	}
	decodeErrorEnvelope(t, data)
}

func TestAdminSeesManagementSections(t *testing.T) {
	s := newTestServer(t)
	s.provision(t, "admin", domain.RoleAdministrador)
	token := s.login(t, "admin")

	resp, data := s.request(t, http.MethodGet, "/v1/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	var me MeResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if len(me.ManagementSections) < 2 {
		t.Fatalf("admin should see management sections, got %v", me.ManagementSections)
	}
}

func TestProvisionUserWithServiceKey(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{
		"email":     "nuevo@zelenza.com",
		"password":  "secret123",
		"full_name": "Nuevo Usuario",
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, s.URL+"/v1/users", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", testServiceKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user: status %d body %s", resp.StatusCode, data)
	}
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if p.Username != "nuevo" {
		t.Fatalf("username should default to email local part, got %q", p.Username)
	}
}

func TestProvisionForbiddenForPlainUser(t *testing.T) {
	s := newTestServer(t)
	s.provision(t, "maria", domain.RoleUsuario)
	token := s.login(t, "maria")

	resp, data := s.request(t, http.MethodPost, "/v1/users", token, map[string]any{
		"email": "otro@zelenza.com", "password": "secret123", "full_name": "Otro",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body %s", resp.StatusCode, data)
	}
	decodeErrorEnvelope(t, data)
}

func TestDuplicateEmailConflict(t *testing.T) {
	s := newTestServer(t)
	s.provision(t, "maria", domain.RoleUsuario)
	s.provision(t, "admin", domain.RoleAdministrador)
	token := s.login(t, "admin")

	resp, data := s.request(t, http.MethodPost, "/v1/users", token, map[string]any{
		"email": "maria@zelenza.com", "password": "secret123", "full_name": "Clon",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d body %s", resp.StatusCode, data)
	}
	decodeErrorEnvelope(t, data)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.provision(t, "maria", domain.RoleUsuario)
	s.provision(t, "pedro", domain.RoleUsuario)
	token := s.login(t, "maria")

	resp, data := s.request(t, http.MethodPost, "/v1/tasks", token, map[string]any{
		"titulo":      "Cambiar switch",
		"descripcion": "el de planta 2",
		"prioridad":   "Alta",
		"assigned_to": "pedro",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task: status %d body %s", resp.StatusCode, data)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Status != domain.StatusSinIniciar || task.AssigneeID == nil {
		t.Fatalf("unexpected task: %+v", task)
	}

	resp, data = s.request(t, http.MethodPatch, "/v1/tasks/"+task.ID, token, map[string]any{
		"estado": "En progreso",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update task: status %d body %s", resp.StatusCode, data)
	}

	resp, data = s.request(t, http.MethodGet, "/v1/tasks?estado=OPEN_TASKS&prioridad=Alta", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tasks: status %d body %s", resp.StatusCode, data)
	}
	var list taskList
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != task.ID {
		t.Fatalf("unexpected listing: %+v", list.Items)
	}

	resp, data = s.request(t, http.MethodPost, "/v1/tasks/"+task.ID+"/chat", token, map[string]any{
		"message": "avisadme al acabar",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("chat: status %d body %s", resp.StatusCode, data)
	}

	resp, data = s.request(t, http.MethodGet, "/v1/tasks/"+task.ID+"/history", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d body %s", resp.StatusCode, data)
	}
	var timeline timelineResponse
	if err := json.Unmarshal(data, &timeline); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	// creation + assignment + status change + chat
	if len(timeline.Items) != 4 {
		t.Fatalf("expected 4 timeline entries, got %d", len(timeline.Items))
	}
	last := timeline.Items[len(timeline.Items)-1]
	if last.Kind != engine.KindChat || last.NewValue != "avisadme al acabar" {
		t.Fatalf("unexpected last entry: %+v", last)
	}
}

func TestPrivateTaskHiddenOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.provision(t, "maria", domain.RoleUsuario)
	s.provision(t, "pedro", domain.RoleUsuario)
	creatorToken := s.login(t, "maria")
	otherToken := s.login(t, "pedro")

	resp, data := s.request(t, http.MethodPost, "/v1/tasks", creatorToken, map[string]any{
		"titulo": "Privada", "privada": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d body %s", resp.StatusCode, data)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatal(err)
	}

	resp, data = s.request(t, http.MethodGet, "/v1/tasks/"+task.ID, otherToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign private task, got %d body %s", resp.StatusCode, data)
	}
	decodeErrorEnvelope(t, data)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, s.URL+"/v1/tasks", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight: status %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow-origin header")
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "apikey") {
		t.Fatalf("allowed headers should include apikey, got %q", resp.Header.Get("Access-Control-Allow-Headers"))
	}
}

func TestHistoryStreamSendsBacklog(t *testing.T) {
	s := newTestServer(t)
	s.provision(t, "maria", domain.RoleUsuario)
	token := s.login(t, "maria")

	resp, data := s.request(t, http.MethodPost, "/v1/tasks", token, map[string]any{"titulo": "Con stream"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/v1/tasks/"+task.ID+"/history/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	streamResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer streamResp.Body.Close()
	if ct := streamResp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(streamResp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if !strings.HasPrefix(line, "event: history") {
		t.Fatalf("unexpected first line %q", line)
	}
	dataLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if !strings.Contains(dataLine, "creacion") {
		t.Fatalf("backlog should contain the creation entry, got %q", dataLine)
	}
}
