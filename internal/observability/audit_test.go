package observability

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *capturingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *capturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capturingHandler) WithGroup(string) slog.Handler      { return h }

func TestAuditEmitsEventWithRequestContext(t *testing.T) {
	captured := &capturingHandler{}
	prev := slog.Default()
	slog.SetDefault(slog.New(captured))
	t.Cleanup(func() { slog.SetDefault(prev) })

	req := httptest.NewRequest("POST", "/api/v1/auth/signin", nil)
	req.RemoteAddr = "10.9.9.9:1234"
	ctx := context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-42")
	req = req.WithContext(ctx)

	Audit(req, "signin_failed", "tier", "auth")

	captured.mu.Lock()
	defer captured.mu.Unlock()
	if len(captured.records) != 1 {
		t.Fatalf("records = %d, want 1", len(captured.records))
	}
	rec := captured.records[0]
	if rec.Message != "audit" {
		t.Fatalf("message = %q", rec.Message)
	}

	attrs := map[string]string{}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})
	want := map[string]string{
		"event":      "signin_failed",
		"method":     "POST",
		"path":       "/api/v1/auth/signin",
		"remote":     "10.9.9.9:1234",
		"request_id": "req-42",
		"tier":       "auth",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Fatalf("attr %s = %q, want %q", k, attrs[k], v)
		}
	}
}
