package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"crierd/internal/storage"
	"crierd/internal/task/manager"
	logx "crierd/pkg/logx"
)

type fakeTasks struct{ snap manager.Snapshot }

func (f fakeTasks) Snapshot() manager.Snapshot { return f.snap }

func TestHandlerEndpoints(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "j")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	_ = st.AppendFailure(context.Background(), storage.Failure{Task: "broken", Error: "I broke"})

	tasks := fakeTasks{snap: manager.Snapshot{Running: true, Run: 3, Tasks: []manager.TaskInfo{{Name: "town", Executions: 7}}}}
	h := New(Config{Enabled: true}, tasks, st, logx.Nop()).Handler()

	tests := []struct {
		path string
		code int
	}{
		{"/healthz", http.StatusOK},
		{"/debug/tasks", http.StatusOK},
		{"/debug/journal?limit=5", http.StatusOK},
		{"/debug/journal?limit=0", http.StatusBadRequest},
		{"/debug/pprof/", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.code {
			t.Fatalf("GET %s = %d, want %d", tt.path, rec.Code, tt.code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/tasks", nil))
	var snap manager.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Run != 3 || len(snap.Tasks) != 1 || snap.Tasks[0].Executions != 7 {
		t.Fatalf("snapshot = %+v", snap)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/journal", nil))
	var recs []storage.Failure
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil || len(recs) != 1 || recs[0].Task != "broken" {
		t.Fatalf("journal = %+v, %v", recs, err)
	}
}

func TestHealthzWhenStopped(t *testing.T) {
	t.Parallel()
	h := New(Config{Enabled: true}, fakeTasks{}, nil, logx.Nop()).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/journal", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("journal without store: code = %d", rec.Code)
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	h := New(Config{Enabled: true, Token: "s3cret"}, fakeTasks{snap: manager.Snapshot{Running: true}}, nil, logx.Nop()).Handler()

	tests := []struct {
		name string
		req  func() *http.Request
		code int
	}{
		{"missing", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/healthz", nil) }, http.StatusUnauthorized},
		{"query", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/healthz?token=s3cret", nil) }, http.StatusOK},
		{"wrong query", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/healthz?token=nope", nil) }, http.StatusUnauthorized},
		{"bearer", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			r.Header.Set("Authorization", "Bearer s3cret")
			return r
		}, http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, tt.req())
		if rec.Code != tt.code {
			t.Fatalf("%s: code = %d, want %d", tt.name, rec.Code, tt.code)
		}
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, fakeTasks{snap: manager.Snapshot{Running: true}}, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("expected bound address")
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
	if s.Addr() != "" {
		t.Fatal("still bound after Stop")
	}
}

func TestRefusesPublicBindWithoutToken(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, nil, nil, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		s.Stop(context.Background())
		t.Fatal("expected refusal")
	}
	if isLoopbackAddr(":6060") || !isLoopbackAddr("localhost:1") || !isLoopbackAddr("[::1]:1") {
		t.Fatal("isLoopbackAddr misclassified")
	}
}
