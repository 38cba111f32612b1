// Package media prepares gallery photos as square textures for the renderer.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for texture formats other than jpeg and
// webp, and for images no decoder recognizes.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Texture formats.
const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// Config controls texture output.
type Config struct {
	// Size is the texture edge in pixels, rounded up to a power of two.
	Size    int    `mapstructure:"size"`
	Format  string `mapstructure:"format"`
	Quality int    `mapstructure:"quality"`
}

// DefaultConfig returns 1024px JPEG textures.
func DefaultConfig() Config {
	return Config{Size: 1024, Format: FormatJPEG, Quality: 85}
}

// Texture is an encoded texture.
type Texture struct {
	Data        []byte
	ContentType string
	Size        int
}

// Load opens an image file, applying EXIF orientation. WebP files fall back
// to the dedicated decoder.
func Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// Decode reads an image of any registered format.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, ErrUnsupportedFormat
}

// Encode fits img inside a square texture, letterboxed on black, and
// encodes it.
func (c Config) Encode(img image.Image) (*Texture, error) {
	size := TextureSize(c.Size)
	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultConfig().Quality
	}

	fitted := imaging.Fit(img, size, size, imaging.Lanczos)
	canvas := imaging.New(size, size, color.Black)
	canvas = imaging.PasteCenter(canvas, fitted)

	var buf bytes.Buffer
	var contentType string
	switch strings.ToLower(c.Format) {
	case FormatJPEG, "jpg", "":
		if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		contentType = "image/jpeg"
	case FormatWebP:
		if err := webp.Encode(&buf, canvas, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		contentType = "image/webp"
	default:
		return nil, fmt.Errorf("texture format %q: %w", c.Format, ErrUnsupportedFormat)
	}

	return &Texture{Data: buf.Bytes(), ContentType: contentType, Size: size}, nil
}

// TextureSize rounds n up to a power of two, defaulting to 1024.
func TextureSize(n int) int {
	if n <= 0 {
		return DefaultConfig().Size
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// Dimensions returns the pixel size of an image.
func Dimensions(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
