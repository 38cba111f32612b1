package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayusman/tinsel/internal/control"
)

type fakeSession struct {
	state *control.State
	err   error
}

func (f *fakeSession) State() *control.State { return f.state }

func (f *fakeSession) SetMode(m control.Mode) error {
	if f.err != nil {
		return f.err
	}
	f.state.SetMode(m)
	return nil
}

func TestModeHandler(t *testing.T) {
	session := &fakeSession{state: control.New()}
	handler := NewModeHandler(session)

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mode", nil))

		var resp modeResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Mode != "pointer" || resp.Availability != "off" {
			t.Errorf("unexpected status %+v", resp)
		}
	})

	t.Run("switch to gesture", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/mode", strings.NewReader(`{"mode":"gesture"}`)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if session.state.Mode() != control.ModeGesture {
			t.Errorf("expected gesture mode, got %s", session.state.Mode())
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/mode", strings.NewReader(`{"mode":"voice"}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/mode", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestModeHandler_StartFailure(t *testing.T) {
	session := &fakeSession{state: control.New(), err: errors.New("open camera: denied")}
	handler := NewModeHandler(session)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/mode", strings.NewReader(`{"mode":"gesture"}`)))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	var resp modeResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Mode != "pointer" {
		t.Errorf("expected to stay in pointer mode, got %s", resp.Mode)
	}
	if resp.Error == "" {
		t.Error("expected error message")
	}
}
