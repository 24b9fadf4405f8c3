package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"regexp"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/pageza/foodgram/backend/internal/types"
)

var dataURLPattern = regexp.MustCompile(`(?s)^data:image/([a-zA-Z0-9.+-]+);base64,(.*)$`)

// DefaultImageMaxPixels bounds width*height of an accepted image.
const DefaultImageMaxPixels = 40_000_000

// ImageLimits bounds uploaded images. A zero MaxWidth disables scaling; a
// zero MaxPixels means DefaultImageMaxPixels.
type ImageLimits struct {
	MaxWidth  int
	MaxPixels int
}

// Image is an uploaded image and the extension it will be stored under.
type Image struct {
	Data        []byte
	Ext         string
	ContentType string
}

func invalidImage() error {
	return NewValidationError("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
}

// DecodeDataURL decodes "data:image/<ext>;base64,<payload>". The extension
// is the MIME subtype.
func DecodeDataURL(raw string) (*Image, error) {
	m := dataURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, invalidImage()
	}

	payload := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, m[2])
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, invalidImage()
	}

	ext := strings.ToLower(m[1])
	return &Image{Data: data, Ext: ext, ContentType: contentTypeFor(ext)}, nil
}

// FromUpload wraps a multipart upload. The extension comes from the decoded
// format in ProcessImage.
func FromUpload(file *types.ImageFile) *Image {
	return &Image{Data: file.Data, ContentType: file.ContentType}
}

// ProcessImage checks that img decodes within the pixel budget and scales it
// down to the maximum width when it is wider.
func ProcessImage(img *Image, limits ImageLimits) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return nil, invalidImage()
	}

	maxPixels := limits.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultImageMaxPixels
	}
	// Checked on the header, before any pixels are allocated.
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, NewValidationError("image", fmt.Sprintf("Image is too large: at most %d pixels are allowed.", maxPixels))
	}

	maxWidth := limits.MaxWidth

	ext := img.Ext
	if ext == "" {
		ext = format
	}

	if maxWidth <= 0 || cfg.Width <= maxWidth {
		// A full decode catches truncated payloads that still carry a header.
		if _, _, err := image.Decode(bytes.NewReader(img.Data)); err != nil {
			return nil, invalidImage()
		}
		return &Image{Data: img.Data, Ext: ext, ContentType: contentTypeFor(ext)}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, invalidImage()
	}

	height := cfg.Height * maxWidth / cfg.Width
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		if ext != "jpg" {
			ext = "jpeg"
		}
	case "gif":
		if err := gif.Encode(&buf, dst, nil); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		ext = "gif"
	default:
		// webp has no encoder; png is lossless for everything else.
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		ext = "png"
	}

	return &Image{Data: buf.Bytes(), Ext: ext, ContentType: contentTypeFor(ext)}, nil
}

func contentTypeFor(ext string) string {
	if ext == "jpg" {
		return "image/jpeg"
	}
	return "image/" + ext
}
