package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/swap-mitra/city-vault/internal/api"
	"github.com/swap-mitra/city-vault/internal/config"
)

type stubServer struct{}

func (stubServer) ok(w http.ResponseWriter) { w.WriteHeader(http.StatusOK) }

func (s stubServer) HealthLive(w http.ResponseWriter, _ *http.Request)  { s.ok(w) }
func (s stubServer) HealthReady(w http.ResponseWriter, _ *http.Request) { s.ok(w) }
func (s stubServer) GetMetrics(w http.ResponseWriter, _ *http.Request)  { s.ok(w) }
func (s stubServer) GetOpenAPI(w http.ResponseWriter, _ *http.Request)  { s.ok(w) }
func (s stubServer) Register(w http.ResponseWriter, _ *http.Request)    { s.ok(w) }
func (s stubServer) Login(w http.ResponseWriter, _ *http.Request)       { s.ok(w) }
func (s stubServer) Logout(w http.ResponseWriter, _ *http.Request)      { s.ok(w) }
func (s stubServer) UploadFile(w http.ResponseWriter, _ *http.Request)  { s.ok(w) }
func (s stubServer) ListFiles(w http.ResponseWriter, _ *http.Request, _ api.ListFilesParams) {
	s.ok(w)
}
func (s stubServer) GetFile(w http.ResponseWriter, _ *http.Request, _ string)    { s.ok(w) }
func (s stubServer) DeleteFile(w http.ResponseWriter, _ *http.Request, _ string) { s.ok(w) }

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestNewRouter_JSONErrors(t *testing.T) {
	router := NewRouter(stubServer{})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantErr  string
	}{
		{"unknown path", http.MethodGet, "/nope", http.StatusNotFound, "NOT_FOUND"},
		{"wrong method", http.MethodPut, "/upload", http.StatusMethodNotAllowed, "VALIDATION_ERROR"},
		{"bad param", http.MethodGet, "/files?cid=a&cid=b", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if code := decodeError(t, rec)["code"]; code != tt.wantErr {
				t.Errorf("code = %q, want %q", code, tt.wantErr)
			}
		})
	}
}

func TestNewRouter_AppliesMiddlewares(t *testing.T) {
	var seen string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.URL.Path
			next.ServeHTTP(w, r)
		})
	}

	rec := httptest.NewRecorder()
	NewRouter(stubServer{}, mw).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/bafy1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen != "/files/bafy1" {
		t.Errorf("middleware saw %q", seen)
	}
}

func TestNew_AppliesConfig(t *testing.T) {
	cfg := &config.Config{
		Port:             9090,
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: 2 * time.Second,
		HTTPIdleTimeout:  3 * time.Second,
		ShutdownTimeout:  time.Second,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	srv := New(cfg, logger, stubServer{})
	if srv.httpServer.Addr != ":9090" {
		t.Errorf("addr = %q", srv.httpServer.Addr)
	}
	if srv.httpServer.ReadTimeout != time.Second || srv.httpServer.WriteTimeout != 2*time.Second ||
		srv.httpServer.IdleTimeout != 3*time.Second {
		t.Error("timeouts not applied")
	}
	if err := srv.Shutdown(); err != nil {
		t.Errorf("Shutdown of an idle server: %v", err)
	}
}
