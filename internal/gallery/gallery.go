// Package gallery copies photos into the data directory and catalogues them.
package gallery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/tinsel/internal/media"
	"github.com/ayusman/tinsel/internal/store"
)

// Importer adds photos to a store, keeping a private copy of each file in
// Dir.
type Importer struct {
	Store *store.Store
	Dir   string
}

// NewImporter creates an Importer that copies files into dir.
func NewImporter(s *store.Store, dir string) *Importer {
	return &Importer{Store: s, Dir: dir}
}

// ImportFile imports the image at path. An empty title uses the file name.
func (im *Importer) ImportFile(path, title string) (*store.Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return im.Import(f, filepath.Base(path), title)
}

// Import copies an image read from r into Dir and records it. name supplies
// the file extension and the default title. Files that do not decode as an
// image are rejected with media.ErrUnsupportedFormat.
func (im *Importer) Import(r io.Reader, name, title string) (*store.Photo, error) {
	if err := os.MkdirAll(im.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	id := uuid.New().String()
	dst := filepath.Join(im.Dir, id+ext)
	if err := copyTo(dst, r); err != nil {
		return nil, err
	}

	img, err := media.Load(dst)
	if err != nil {
		os.Remove(dst)
		if errors.Is(err, media.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%s: %w", name, media.ErrUnsupportedFormat)
		}
		return nil, err
	}
	width, height := media.Dimensions(img)

	photo := &store.Photo{
		ID:     id,
		Title:  title,
		Path:   dst,
		Width:  width,
		Height: height,
	}
	if err := im.Store.Photos().Create(photo); err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("save photo: %w", err)
	}

	log.Info().Str("id", id).Str("title", title).Int("width", width).Int("height", height).Msg("imported photo")
	return photo, nil
}

// Remove deletes a photo record and, when the file lives in Dir, the file.
func (im *Importer) Remove(id string) error {
	photo, err := im.Store.Photos().GetByID(id)
	if err != nil {
		return err
	}
	if err := im.Store.Photos().Delete(id); err != nil {
		return err
	}

	if im.owns(photo.Path) {
		if err := os.Remove(photo.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", photo.Path).Msg("failed to remove photo file")
		}
	}
	return nil
}

func (im *Importer) owns(path string) bool {
	rel, err := filepath.Rel(im.Dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func copyTo(dst string, r io.Reader) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return fmt.Errorf("copy photo: %w", err)
	}
	return f.Close()
}
