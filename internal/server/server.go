// Package server provides the HTTP server for the photo tree.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/tinsel/internal/capture"
	"github.com/ayusman/tinsel/internal/gallery"
	"github.com/ayusman/tinsel/internal/media"
	"github.com/ayusman/tinsel/internal/server/api"
)

// Session is what the server needs from a running gallery session.
type Session interface {
	Controller
	LoadGallery() error
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Importer  *gallery.Importer
	Textures  media.Config
	Session   Session
	Hub       *SceneHub
	Preview   *capture.Preview
}

// Server represents the HTTP server for the photo tree.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Importer != nil {
		photos := api.NewPhotoHandler(s.config.Importer, s.config.Textures, s.reloadGallery)
		s.mux.Handle("/api/photos", photos)
		s.mux.Handle("/api/photos/", photos)
	}

	if s.config.Session != nil {
		s.mux.Handle("/api/mode", api.NewModeHandler(s.config.Session))
		if s.config.Hub != nil {
			s.mux.Handle("/api/scene", NewSceneHandler(s.config.Hub, s.config.Session))
		}
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

func (s *Server) reloadGallery() {
	if s.config.Session == nil {
		return
	}
	if err := s.config.Session.LoadGallery(); err != nil {
		log.Error().Err(err).Msg("failed to reload gallery")
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Session != nil {
		snap := s.config.Session.State().Snapshot()
		response["mode"] = snap.Mode.String()
		response["gesture"] = snap.Availability.String()
	}
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
