package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/bridge"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/telemetry"
)

type fakeBridge struct {
	status bridge.Status
	panic  bool
}

func (b *fakeBridge) Status() bridge.Status {
	if b.panic {
		panic("status exploded")
	}
	return b.status
}

type fakeJournal struct {
	entries   []domain.JournalEntry
	err       error
	lastLimit int
}

func (j *fakeJournal) ListUnfinished(_ context.Context, limit int) ([]domain.JournalEntry, error) {
	j.lastLimit = limit
	return j.entries, j.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(b StatusSource, j JournalReader) *Handler {
	return NewHandler(Config{
		Bridge:   b,
		Journal:  j,
		Gatherer: prometheus.NewRegistry(),
		Logger:   discardLogger(),
	})
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestGetBridge(t *testing.T) {
	b := &fakeBridge{status: bridge.Status{
		Location:        "http://octane.test",
		SharedSpace:     "1001",
		Username:        "bridge",
		Enabled:         true,
		OpenConnections: 1,
		InstanceID:      "instance-1",
	}}
	rec := serve(newTestHandler(b, nil), http.MethodGet, "/api/v1/bridge")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var resp struct {
		Data bridge.Status `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data != b.status {
		t.Errorf("status = %+v, want %+v", resp.Data, b.status)
	}
}

func TestGetBridge_NoPasswordField(t *testing.T) {
	rec := serve(newTestHandler(&fakeBridge{}, nil), http.MethodGet, "/api/v1/bridge")
	if strings.Contains(strings.ToLower(rec.Body.String()), "password") {
		t.Errorf("response must not mention password: %s", rec.Body.String())
	}
}

func TestGetBridge_MethodNotAllowed(t *testing.T) {
	rec := serve(newTestHandler(&fakeBridge{}, nil), http.MethodPost, "/api/v1/bridge")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	rec := serve(newTestHandler(&fakeBridge{panic: true}, nil), http.MethodGet, "/api/v1/bridge")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != ErrCodeInternalError {
		t.Errorf("code = %s, want %s", resp.Error.Code, ErrCodeInternalError)
	}
}

func TestListUnfinishedTasks(t *testing.T) {
	journal := &fakeJournal{entries: []domain.JournalEntry{
		{TaskID: "t1", Method: "GET", URL: "/job/a", Status: domain.TaskStatusRunning},
	}}
	h := newTestHandler(&fakeBridge{}, journal)

	rec := serve(h, http.MethodGet, "/api/v1/tasks/unfinished?limit=5000")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if journal.lastLimit != maxListLimit {
		t.Errorf("limit should be capped to %d, got %d", maxListLimit, journal.lastLimit)
	}

	var resp struct {
		Data  []domain.JournalEntry `json:"data"`
		Total int                   `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Data[0].TaskID != "t1" || resp.Data[0].Status != domain.TaskStatusRunning {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestListUnfinishedTasks_Errors(t *testing.T) {
	tests := []struct {
		name    string
		journal JournalReader
		target  string
		want    int
	}{
		{"no journal", nil, "/api/v1/tasks/unfinished", http.StatusNotFound},
		{"bad limit", &fakeJournal{}, "/api/v1/tasks/unfinished?limit=abc", http.StatusBadRequest},
		{"zero limit", &fakeJournal{}, "/api/v1/tasks/unfinished?limit=0", http.StatusBadRequest},
		{"db failure", &fakeJournal{err: errors.New("connection reset")}, "/api/v1/tasks/unfinished", http.StatusInternalServerError},
		{"db timeout", &fakeJournal{err: fmt.Errorf("list: %w", context.DeadlineExceeded)}, "/api/v1/tasks/unfinished", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestHandler(&fakeBridge{}, tt.journal), http.MethodGet, tt.target)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestListUnfinishedTasks_Empty(t *testing.T) {
	rec := serve(newTestHandler(&fakeBridge{}, &fakeJournal{}), http.MethodGet, "/api/v1/tasks/unfinished")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty list should be encoded as [], got %s", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	rec := serve(newTestHandler(&fakeBridge{}, nil), http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "ok") {
		t.Errorf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	metrics.SetOpenConnections(1)

	h := NewHandler(Config{Bridge: &fakeBridge{}, Gatherer: reg, Logger: discardLogger()})
	rec := serve(h, http.MethodGet, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "octane_bridge_open_connections 1") {
		t.Errorf("metrics output should contain open connections gauge:\n%s", rec.Body.String())
	}
}

func TestLoggingCapturesStatus(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.Contains(buf.String(), "status=418") {
		t.Errorf("log should contain status=418, got %q", buf.String())
	}
}

func TestServer_ShutdownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := NewServer(ln.Addr().String(), newTestHandler(&fakeBridge{}, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
