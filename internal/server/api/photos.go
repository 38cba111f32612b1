package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/tinsel/internal/gallery"
	"github.com/ayusman/tinsel/internal/media"
	"github.com/ayusman/tinsel/internal/store"
)

// MaxUploadSize bounds a single photo upload.
const MaxUploadSize = 32 << 20

// PhotoHandler handles HTTP requests for photo resources.
type PhotoHandler struct {
	store    *store.Store
	importer *gallery.Importer
	textures media.Config
	onChange func()

	mu    sync.Mutex
	cache map[string]cachedTexture
}

type cachedTexture struct {
	updatedAt time.Time
	texture   *media.Texture
}

// NewPhotoHandler creates a PhotoHandler. onChange, if set, is called after
// every change to the gallery.
func NewPhotoHandler(importer *gallery.Importer, textures media.Config, onChange func()) *PhotoHandler {
	return &PhotoHandler{
		store:    importer.Store,
		importer: importer,
		textures: textures,
		onChange: onChange,
		cache:    make(map[string]cachedTexture),
	}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *PhotoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/photos, /api/photos/order, /api/photos/{id},
	// /api/photos/{id}/texture
	path := strings.TrimPrefix(r.URL.Path, "/api/photos")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.upload(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if path == "order" {
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.reorder(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
	case len(parts) == 2 && parts[1] == "texture":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.texture(w, r, id)
		return
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type updatePhotoRequest struct {
	Title *string  `json:"title"`
	Tags  []string `json:"tags"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type photoResponse struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Position  int      `json:"position"`
	Tags      []string `json:"tags"`
	Texture   string   `json:"texture"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

type listPhotosResponse struct {
	Photos []photoResponse `json:"photos"`
}

func toResponse(p *store.Photo) photoResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return photoResponse{
		ID:        p.ID,
		Title:     p.Title,
		Width:     p.Width,
		Height:    p.Height,
		Position:  p.Position,
		Tags:      tags,
		Texture:   fmt.Sprintf("/api/photos/%s/texture", p.ID),
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

func (h *PhotoHandler) changed() {
	if h.onChange != nil {
		h.onChange()
	}
}

// list handles GET /api/photos and returns all photos in tree order.
func (h *PhotoHandler) list(w http.ResponseWriter, r *http.Request) {
	photos, err := h.store.Photos().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list photos")
		return
	}

	response := listPhotosResponse{
		Photos: make([]photoResponse, 0, len(photos)),
	}
	for _, p := range photos {
		response.Photos = append(response.Photos, toResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/photos/{id}.
func (h *PhotoHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	photo, err := h.store.Photos().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get photo")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(photo))
}

// upload handles POST /api/photos with a multipart "file" field and an
// optional "title".
func (h *PhotoHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Expected a multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	photo, err := h.importer.Import(file, header.Filename, r.FormValue("title"))
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnsupportedMediaType, "Unsupported image format")
			return
		}
		log.Error().Err(err).Str("file", header.Filename).Msg("photo upload failed")
		writeError(w, http.StatusInternalServerError, "Failed to import photo")
		return
	}

	h.changed()
	writeJSON(w, http.StatusCreated, toResponse(photo))
}

// update handles PUT /api/photos/{id}.
func (h *PhotoHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req updatePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	photo, err := h.store.Photos().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get photo")
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		photo.Title = *req.Title
	}
	if req.Tags != nil {
		photo.Tags = req.Tags
	}

	if err := h.store.Photos().Update(photo); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update photo")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(photo))
}

// reorder handles PUT /api/photos/order.
func (h *PhotoHandler) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.store.Photos().Reorder(req.IDs); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to reorder photos")
		return
	}

	h.changed()
	h.list(w, r)
}

// delete handles DELETE /api/photos/{id}.
func (h *PhotoHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.importer.Remove(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete photo")
		return
	}

	h.mu.Lock()
	delete(h.cache, id)
	h.mu.Unlock()

	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

// texture handles GET /api/photos/{id}/texture and returns the photo fitted
// into a square power-of-two texture.
func (h *PhotoHandler) texture(w http.ResponseWriter, r *http.Request, id string) {
	photo, err := h.store.Photos().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get photo")
		return
	}

	tex, err := h.cachedTexture(photo)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("texture encode failed")
		writeError(w, http.StatusInternalServerError, "Failed to build texture")
		return
	}

	w.Header().Set("Content-Type", tex.ContentType)
	w.Header().Set("Cache-Control", "max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(tex.Data)
}

func (h *PhotoHandler) cachedTexture(photo *store.Photo) (*media.Texture, error) {
	h.mu.Lock()
	cached, ok := h.cache[photo.ID]
	h.mu.Unlock()
	if ok && cached.updatedAt.Equal(photo.UpdatedAt) {
		return cached.texture, nil
	}

	img, err := media.Load(photo.Path)
	if err != nil {
		return nil, err
	}
	tex, err := h.textures.Encode(img)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.cache[photo.ID] = cachedTexture{updatedAt: photo.UpdatedAt, texture: tex}
	h.mu.Unlock()
	return tex, nil
}
