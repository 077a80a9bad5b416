package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// testRouter builds the router with a nil service: only endpoints whose
// validation rejects the request before touching the service are exercised.
func testRouter(t *testing.T) *chiRouter {
	t.Helper()
	cfg := ServerConfig{
		Port:           0,
		UploadsDir:     t.TempDir(),
		PreviewsDir:    t.TempDir(),
		ExportsDir:     t.TempDir(),
		MaxUploadBytes: 1 << 20,
		Logger:         slog.New(slog.DiscardHandler),
		StartTime:      time.Now(),
	}
	return &chiRouter{NewRouter(cfg)}
}

type chiRouter struct{ http.Handler }

func (rt *chiRouter) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := testRouter(t).do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestValidation_RejectsBeforeService(t *testing.T) {
	rt := testRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"scene delete garbage body", http.MethodPost, "/api/scenes/delete", "not json"},
		{"scene delete missing ids", http.MethodPost, "/api/scenes/delete", `{}`},
		{"add-stock missing query", http.MethodPost, "/api/scenes/add-stock", `{"project_id": "p"}`},
		{"stock search missing query", http.MethodPost, "/api/stock-media/search", `{}`},
		{"replace missing fields", http.MethodPost, "/api/stock-media/replace-scene", `{"query": "x"}`},
		{"merge missing job", http.MethodPost, "/api/background/merge", `{"project_id": "p"}`},
		{"export missing project", http.MethodPost, "/api/export", `{}`},
		{"upload without file", http.MethodPost, "/api/upload", ""},
		{"add scene without multipart", http.MethodPost, "/api/scenes/add", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := rt.do(t, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
			if resp.Code != "BAD_REQUEST" {
				t.Errorf("code = %q, want BAD_REQUEST", resp.Code)
			}
		})
	}
}

func TestCaptionStyles(t *testing.T) {
	rec := testRouter(t).do(t, http.MethodGet, "/api/captions/styles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp CaptionStylesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Styles) == 0 {
		t.Error("no caption styles returned")
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	rec := testRouter(t).do(t, http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
