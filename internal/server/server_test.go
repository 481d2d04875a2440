package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"tripline/internal/aiplan"
	"tripline/internal/db"
	"tripline/internal/domain"
	"tripline/internal/migrate"
	"tripline/internal/repo"
)

type testServer struct {
	URL    string
	Repo   *repo.Repo
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

const testPassword = "secret123"

func seedUser(t *testing.T, r *repo.Repo, email string) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedOn:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func newTestServer(t *testing.T, aiURL string) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.New(conn)

	chat, err := aiplan.NewClient(aiplan.ClientConfig{
		APIKey:  "test-key",
		BaseURL: aiURL,
		Logger:  zerolog.Nop(),
		// Server tests exercise the pipeline, not backoff.
		Retry: func(int, error) (time.Duration, bool) { return 0, false },
	})
	if err != nil {
		t.Fatalf("build chat client: %v", err)
	}
	planner := aiplan.NewPlanner(r, chat, zerolog.Nop())

	handler, err := New(Config{
		Repo:     r,
		Planner:  planner,
		BasePath: "/api",
		Auth:     AuthConfig{JWTSecret: "test-secret"},
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Repo:   r,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer, email string) (string, map[string]string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email":    email,
		"password": testPassword,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if out.Token == "" {
		t.Fatal("expected a token")
	}
	return out.Token, map[string]string{"Authorization": "Bearer " + out.Token}
}

// aiStub serves a chat-completions endpoint returning content for every
// request and counts calls.
func aiStub(t *testing.T, status int, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
		w.Write(body)
	}))
	return srv, &calls
}

func threeDayPlanContent(t *testing.T) string {
	t.Helper()
	plan := aiplan.PlanResponse{Schedule: []aiplan.ScheduleItem{
		{Day: 1, Activities: []string{"Louvre", "Lunch in the Tuileries", "Seine cruise"}},
		{Day: 2, Activities: []string{"Eiffel Tower", "Musee d'Orsay", "Dinner in Le Marais"}},
		{Day: 3, Activities: []string{"Versailles day trip", "Evening walk", "Farewell dinner"}},
	}}
	b, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal plan: %v", err)
	}
	return string(b)
}

func createProject(t *testing.T, srv *testServer, headers map[string]string, name string, days int) ProjectResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects", map[string]any{
		"name":          name,
		"duration_days": days,
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var p ProjectResponse
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	return p
}

func createNote(t *testing.T, srv *testServer, headers map[string]string, projectID, content string, priority int, tags []string) NoteResponse {
	t.Helper()
	body := map[string]any{"content": content, "priority": priority}
	if tags != nil {
		body["place_tags"] = tags
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects/"+projectID+"/notes", body, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create note status %d: %s", res.StatusCode, string(data))
	}
	var n NoteResponse
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatalf("unmarshal note: %v", err)
	}
	return n
}

func planCommand(project ProjectResponse, notes ...NoteResponse) map[string]any {
	refs := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		refs = append(refs, map[string]any{
			"id":       n.ID,
			"content":  n.Content,
			"priority": n.Priority,
		})
	}
	return map[string]any{
		"model":         "gpt-4",
		"project_name":  project.Name,
		"duration_days": project.DurationDays,
		"notes":         refs,
	}
}

func TestHealthIsOpen(t *testing.T) {
	ai, _ := aiStub(t, http.StatusOK, "{}")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	ai, _ := aiStub(t, http.StatusOK, "{}")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error != "Unauthorized" {
		t.Fatalf("expected flat Unauthorized envelope, got %q", envelope.Error)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ai, _ := aiStub(t, http.StatusOK, "{}")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
}

func TestProjectCRUD(t *testing.T) {
	ai, _ := aiStub(t, http.StatusOK, "{}")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	p := createProject(t, srv, headers, "Paris", 3)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects?page=1&size=10", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var list ProjectListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if list.Meta.Total != 1 || len(list.Data) != 1 {
		t.Fatalf("expected one project, got %+v", list.Meta)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/api/projects/"+p.ID, map[string]any{
		"duration_days": 5,
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}
	var updated ProjectResponse
	_ = json.Unmarshal(data, &updated)
	if updated.DurationDays != 5 || updated.Name != "Paris" {
		t.Fatalf("partial update wrong: %+v", updated)
	}

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/api/projects/"+p.ID, nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects/"+p.ID, nil, headers)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.StatusCode)
	}
}

func TestProjectValidation(t *testing.T) {
	ai, _ := aiStub(t, http.StatusOK, "{}")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects", map[string]any{
		"name":          "Nowhere",
		"duration_days": 0,
	}, headers)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestNoteFilters(t *testing.T) {
	ai, _ := aiStub(t, http.StatusOK, "{}")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	p := createProject(t, srv, headers, "Paris", 3)
	createNote(t, srv, headers, p.ID, "Visit the Louvre", 1, []string{"museum"})
	createNote(t, srv, headers, p.ID, "Dinner in Le Marais", 2, []string{"food"})
	createNote(t, srv, headers, p.ID, "Versailles day trip", 3, nil)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/notes?priority=1", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list notes status %d: %s", res.StatusCode, string(data))
	}
	var list NoteListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal notes: %v", err)
	}
	if list.Meta.Total != 1 || list.Data[0].Content != "Visit the Louvre" {
		t.Fatalf("priority filter wrong: %+v", list)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/notes?place_tag=food", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list notes status %d: %s", res.StatusCode, string(data))
	}
	list = NoteListResponse{}
	_ = json.Unmarshal(data, &list)
	if list.Meta.Total != 1 || list.Data[0].Content != "Dinner in Le Marais" {
		t.Fatalf("place_tag filter wrong: %+v", list)
	}
}

func TestGeneratePlanEndToEnd(t *testing.T) {
	ai, calls := aiStub(t, http.StatusOK, threeDayPlanContent(t))
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	p := createProject(t, srv, headers, "Paris", 3)
	n1 := createNote(t, srv, headers, p.ID, "Visit the Louvre", 1, []string{"museum"})
	n2 := createNote(t, srv, headers, p.ID, "Dinner in Le Marais", 2, nil)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects/"+p.ID+"/plan",
		planCommand(p, n1, n2), headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("generate status %d: %s", res.StatusCode, string(data))
	}
	var plan PlanResponse
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if len(plan.Schedule) != 3 {
		t.Fatalf("expected 3 days, got %d", len(plan.Schedule))
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/plan", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get plan status %d: %s", res.StatusCode, string(data))
	}
	plan = PlanResponse{}
	_ = json.Unmarshal(data, &plan)
	if plan.Version != 1 || len(plan.Schedule) != 3 {
		t.Fatalf("stored plan wrong: version=%d days=%d", plan.Version, len(plan.Schedule))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/logs", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("logs status %d: %s", res.StatusCode, string(data))
	}
	var logs AILogListResponse
	if err := json.Unmarshal(data, &logs); err != nil {
		t.Fatalf("unmarshal logs: %v", err)
	}
	if logs.Meta.Total != 1 || logs.Data[0].Status != domain.AILogSuccess {
		t.Fatalf("expected one success log, got %+v", logs)
	}
	if logs.Data[0].ResponseCode == nil || *logs.Data[0].ResponseCode != 200 {
		t.Fatalf("expected response_code 200, got %+v", logs.Data[0].ResponseCode)
	}
}

func TestGeneratePlanNoteMismatch(t *testing.T) {
	ai, calls := aiStub(t, http.StatusOK, threeDayPlanContent(t))
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	p := createProject(t, srv, headers, "Paris", 3)
	n1 := createNote(t, srv, headers, p.ID, "Visit the Louvre", 1, nil)

	cmd := planCommand(p, n1)
	staleID := uuid.NewString()
	cmd["notes"] = append(cmd["notes"].([]map[string]any), map[string]any{
		"id": staleID, "content": "Old note", "priority": 3,
	})

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects/"+p.ID+"/plan", cmd, headers)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
	if !bytes.Contains(data, []byte(staleID)) {
		t.Fatalf("expected offending note id in message: %s", string(data))
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestGeneratePlanUpstreamFailure(t *testing.T) {
	ai, _ := aiStub(t, http.StatusServiceUnavailable, "")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	p := createProject(t, srv, headers, "Paris", 3)
	n1 := createNote(t, srv, headers, p.ID, "Visit the Louvre", 1, nil)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects/"+p.ID+"/plan",
		planCommand(p, n1), headers)
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/logs", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("logs status %d: %s", res.StatusCode, string(data))
	}
	var logs AILogListResponse
	_ = json.Unmarshal(data, &logs)
	if logs.Meta.Total != 1 || logs.Data[0].Status != domain.AILogFailure {
		t.Fatalf("expected one failure log, got %+v", logs)
	}
}

func TestGeneratePlanIncompleteSchedule(t *testing.T) {
	short := `{"schedule":[{"day":1,"activities":["Louvre","Lunch","Walk"]},{"day":2,"activities":["Orsay","Dinner","Show"]}]}`
	ai, _ := aiStub(t, http.StatusOK, short)
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	p := createProject(t, srv, headers, "Paris", 3)
	n1 := createNote(t, srv, headers, p.ID, "Visit the Louvre", 1, nil)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects/"+p.ID+"/plan",
		planCommand(p, n1), headers)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", res.StatusCode, string(data))
	}
	if !bytes.Contains(data, []byte("expected 3 days")) {
		t.Fatalf("expected day-count message: %s", string(data))
	}
}

func TestGeneratePlanForeignProject(t *testing.T) {
	ai, calls := aiStub(t, http.StatusOK, threeDayPlanContent(t))
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	seedUser(t, srv.Repo, "bob@example.com")
	_, aliceHeaders := login(t, srv, "alice@example.com")
	_, bobHeaders := login(t, srv, "bob@example.com")

	p := createProject(t, srv, aliceHeaders, "Paris", 3)
	n1 := createNote(t, srv, aliceHeaders, p.ID, "Visit the Louvre", 1, nil)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects/"+p.ID+"/plan",
		planCommand(p, n1), bobHeaders)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign project, got %d: %s", res.StatusCode, string(data))
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestGetPlanBeforeGeneration(t *testing.T) {
	ai, _ := aiStub(t, http.StatusOK, "{}")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	p := createProject(t, srv, headers, "Paris", 3)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/projects/"+p.ID+"/plan", nil, headers)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestGeneratePlanCommandValidation(t *testing.T) {
	ai, calls := aiStub(t, http.StatusOK, threeDayPlanContent(t))
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	seedUser(t, srv.Repo, "alice@example.com")
	_, headers := login(t, srv, "alice@example.com")

	p := createProject(t, srv, headers, "Paris", 3)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects/"+p.ID+"/plan", map[string]any{
		"model":         "not-a-model",
		"project_name":  "Paris",
		"duration_days": 3,
		"notes":         []map[string]any{{"id": uuid.NewString(), "content": "x", "priority": 1}},
	}, headers)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown model, got %d: %s", res.StatusCode, string(data))
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ai, _ := aiStub(t, http.StatusOK, "{}")
	defer ai.Close()
	srv, cleanup := newTestServer(t, ai.URL)
	defer cleanup()
	u := seedUser(t, srv.Repo, "alice@example.com")

	rawKey := "tlk_" + uuid.NewString()
	err := srv.Repo.CreateAPIKey(context.Background(), domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Name:      "ci",
		KeyHash:   repo.HashAPIKey(rawKey),
		CreatedOn: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/me", nil, map[string]string{
		"X-Api-Key": rawKey,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me MeResponse
	_ = json.Unmarshal(data, &me)
	if me.ID != u.ID || me.Source != "api_key" {
		t.Fatalf("unexpected principal: %+v", me)
	}
}
