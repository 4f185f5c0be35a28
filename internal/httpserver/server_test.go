package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/hubtrail/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct{ last uint64 }

func (f fakeStore) LastSeq() uint64 { return f.last }

type fakeStats struct{ st model.IngestStats }

func (f fakeStats) Stats() model.IngestStats { return f.st }

func newTestServer(t *testing.T, opts Options) (*Server, *gin.Engine) {
	t.Helper()
	srv := NewServer(opts, Deps{
		Store:     fakeStore{last: 41},
		Stats:     fakeStats{st: model.IngestStats{Accepted: 41, Rejected: 3, Ignored: 1}},
		ConnState: func() string { return "connected" },
	})
	t.Cleanup(func() { _ = srv.Stop() })
	return srv, srv.router()
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	_, r := newTestServer(t, Options{})

	w := do(r, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["last_seq"] != float64(41) {
		t.Errorf("last_seq = %v, want 41", body["last_seq"])
	}
	if body["rejected"] != float64(3) || body["ignored"] != float64(1) {
		t.Errorf("counters = %v/%v, want 3/1", body["rejected"], body["ignored"])
	}
	if body["connection"] != "connected" {
		t.Errorf("connection = %v, want connected", body["connection"])
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, r := newTestServer(t, Options{})

	w := do(r, http.MethodPost, "/api/health", "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestServer(t, Options{})

	w := do(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "hubtrail_") {
		t.Errorf("metrics body has no hubtrail collectors")
	}
}

func TestHookDisabled(t *testing.T) {
	srv, r := newTestServer(t, Options{})

	w := do(r, http.MethodPost, "/hook/hubitat", "{}")
	if w.Code != http.StatusNotFound {
		t.Fatalf("hook status = %d, want 404", w.Code)
	}
	if srv.HookLines() != nil {
		t.Fatal("HookLines should be nil when disabled")
	}
}

func TestHookEnqueues(t *testing.T) {
	srv, r := newTestServer(t, Options{HookEnabled: true})

	msg := `{"source":"DEVICE","name":"battery","value":"50"}`
	w := do(r, http.MethodPost, "/hook/hubitat", msg)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("hook = %d %q, want 200 ok", w.Code, w.Body.String())
	}

	env := <-srv.HookLines()
	if env.Source != HookSourceName || string(env.Data) != msg {
		t.Fatalf("envelope = %s %q", env.Source, env.Data)
	}
}

func TestHookBodyLimit(t *testing.T) {
	_, r := newTestServer(t, Options{HookEnabled: true, HookMaxBody: 8})

	w := do(r, http.MethodPost, "/hook/hubitat", strings.Repeat("x", 9))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("hook status = %d, want 413", w.Code)
	}
}

func TestHookQueueFull(t *testing.T) {
	_, r := newTestServer(t, Options{HookEnabled: true, HookBuffer: 1})

	if w := do(r, http.MethodPost, "/hook/hubitat", "a"); w.Code != http.StatusOK {
		t.Fatalf("first hook status = %d, want 200", w.Code)
	}
	if w := do(r, http.MethodPost, "/hook/hubitat", "b"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("second hook status = %d, want 503", w.Code)
	}
}

func TestHookAfterClose(t *testing.T) {
	srv, r := newTestServer(t, Options{HookEnabled: true})

	srv.CloseHook()
	srv.CloseHook()
	if _, ok := <-srv.HookLines(); ok {
		t.Fatal("hook stream still open")
	}
	if w := do(r, http.MethodPost, "/hook/hubitat", "a"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("hook status = %d, want 503", w.Code)
	}
}
