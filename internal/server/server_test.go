package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/tinsel/internal/capture"
	"github.com/ayusman/tinsel/internal/control"
	"github.com/ayusman/tinsel/internal/spatial"
)

// stubSession records what the server asks of a session.
type stubSession struct {
	state  *control.State
	loads  int
	loadFn func() error
}

func newStubSession() *stubSession {
	return &stubSession{state: control.New()}
}

func (s *stubSession) State() *control.State { return s.state }
func (s *stubSession) SetMode(mode control.Mode) error {
	s.state.SetMode(mode)
	return nil
}
func (s *stubSession) Click(x, y float64) (string, bool) { return "", false }
func (s *stubSession) Drag(dx float64)                   {}
func (s *stubSession) SetDispersion(v float64)           {}
func (s *stubSession) SetCamera(cam spatial.Camera)      {}
func (s *stubSession) LoadGallery() error {
	s.loads++
	if s.loadFn != nil {
		return s.loadFn()
	}
	return nil
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestServer_Health(t *testing.T) {
	t.Run("bare server reports status and uptime", func(t *testing.T) {
		s := New(Config{})
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		response := decodeHealth(t, rec)
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
		if _, exists := response["mode"]; exists {
			t.Error("did not expect 'mode' without a session")
		}
	})

	t.Run("reports session mode and scene clients", func(t *testing.T) {
		sess := newStubSession()
		sess.state.SetMode(control.ModeGesture)
		s := New(Config{Session: sess, Hub: NewSceneHub(nil)})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		response := decodeHealth(t, rec)
		if response["mode"] != "gesture" {
			t.Errorf("expected mode 'gesture', got %v", response["mode"])
		}
		if response["gesture"] != "off" {
			t.Errorf("expected gesture 'off', got %v", response["gesture"])
		}
		if response["clients"] != float64(0) {
			t.Errorf("expected 0 clients, got %v", response["clients"])
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		s := New(Config{})
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(method, "/api/health", nil))

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_Routes(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		path   string
		want   int
	}{
		{"photos without importer", Config{}, "/api/photos", http.StatusNotFound},
		{"mode without session", Config{}, "/api/mode", http.StatusNotFound},
		{"mode with session", Config{Session: newStubSession()}, "/api/mode", http.StatusOK},
		{"scene without hub", Config{Session: newStubSession()}, "/api/scene", http.StatusNotFound},
		{"stream without preview", Config{}, "/api/stream", http.StatusNotFound},
		{"unknown api path", Config{}, "/api/nonexistent", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.config)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("GET %s: expected status %d, got %d", tt.path, tt.want, rec.Code)
			}
		})
	}
}

func TestServer_ReloadGallery(t *testing.T) {
	sess := newStubSession()
	s := New(Config{Session: sess})

	s.reloadGallery()
	s.reloadGallery()
	if sess.loads != 2 {
		t.Errorf("expected 2 gallery loads, got %d", sess.loads)
	}

	t.Run("no session is a no-op", func(t *testing.T) {
		New(Config{}).reloadGallery()
	})
}

func TestServer_Stream(t *testing.T) {
	preview := capture.NewPreview()
	preview.Store([]byte("jpeg-bytes"))
	s := New(Config{Preview: preview})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("unexpected Content-Type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 10\r\n\r\njpeg-bytes") {
		t.Errorf("stream body missing frame: %q", body)
	}
	if preview.Watching() {
		t.Error("preview should not be watched after the client leaves")
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	index := "<html><body>tree</body></html>"
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	script := "console.log('tree')"
	if err := os.WriteFile(filepath.Join(dir, "scene.js"), []byte(script), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	s := New(Config{StaticDir: dir})

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/", http.StatusOK, index},
		{"/scene.js", http.StatusOK, script},
		{"/missing.html", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}

	t.Run("no static dir", func(t *testing.T) {
		rec := httptest.NewRecorder()
		New(Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}
