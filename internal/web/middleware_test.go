package web

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogMiddlewareRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := logMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("request id header = %q", rr.Header().Get("X-Request-ID"))
	}
	line := buf.String()
	for _, want := range []string{"level=INFO", "request_id=req-1", "path=/api/alerts", "status=418"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestLogMiddlewareQuietsProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := logMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), logger)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !strings.Contains(buf.String(), "level=DEBUG") {
		t.Fatalf("probe logged as %q", buf.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id not generated")
	}
}
