package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/tinsel/internal/control"
)

// ModeSwitcher is the part of a session the mode endpoint drives.
type ModeSwitcher interface {
	State() *control.State
	SetMode(mode control.Mode) error
}

// ModeHandler serves GET and PUT /api/mode.
type ModeHandler struct {
	session ModeSwitcher
}

// NewModeHandler creates a ModeHandler.
func NewModeHandler(session ModeSwitcher) *ModeHandler {
	return &ModeHandler{session: session}
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type modeResponse struct {
	Mode         string `json:"mode"`
	Availability string `json:"availability"`
	FocusedID    string `json:"focusedId"`
	Error        string `json:"error,omitempty"`
}

// ServeHTTP implements the http.Handler interface.
func (h *ModeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.status(""))
	case http.MethodPut:
		var req modeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		mode, err := control.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.session.SetMode(mode); err != nil {
			// The session stays usable in pointer mode.
			writeJSON(w, http.StatusServiceUnavailable, h.status(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, h.status(""))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ModeHandler) status(errMsg string) modeResponse {
	snap := h.session.State().Snapshot()
	return modeResponse{
		Mode:         snap.Mode.String(),
		Availability: snap.Availability.String(),
		FocusedID:    snap.FocusedID,
		Error:        errMsg,
	}
}
