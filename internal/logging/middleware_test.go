package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger_EmitsCompletionLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	var scoped *zap.Logger
	var h http.Handler = RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusCreated)
	}))
	h = middleware.RequestID(h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/onboarding", nil))

	if scoped == nil {
		t.Fatal("request-scoped logger missing from context")
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Message != "request completed" {
		t.Errorf("message = %q, want %q", entry.Message, "request completed")
	}

	fields := entry.ContextMap()
	if fields["status"] != int64(http.StatusCreated) {
		t.Errorf("status field = %v, want %d", fields["status"], http.StatusCreated)
	}
	if fields["http_method"] != http.MethodGet {
		t.Errorf("http_method field = %v", fields["http_method"])
	}
	if fields["path"] != "/api/v1/onboarding" {
		t.Errorf("path field = %v", fields["path"])
	}
	if id, _ := fields["request_id"].(string); id == "" {
		t.Error("request_id field should be set")
	}
}

func TestFromContext_Fallback(t *testing.T) {
	fallback := zap.NewNop()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Error("FromContext should return the fallback when no logger is stored")
	}
}
