package service_test

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func TestDecodeDataURL(t *testing.T) {
	img, err := service.DecodeDataURL(testhelpers.PNGDataURL(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "png", img.Ext)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, testhelpers.PNGBytes(t, 4, 4), img.Data)

	for _, raw := range []string{
		"",
		"not a data url",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png;base64,!!!",
	} {
		_, err := service.DecodeDataURL(raw)
		assert.Contains(t, fieldErrors(t, err), "image", raw)
	}
}

func TestDecodeDataURLAcceptsWrappedBase64(t *testing.T) {
	raw := testhelpers.PNGDataURL(t, 4, 4)
	prefix := "data:image/png;base64,"
	payload := strings.TrimPrefix(raw, prefix)

	var wrapped strings.Builder
	for len(payload) > 20 {
		wrapped.WriteString(payload[:20])
		wrapped.WriteString("\r\n")
		payload = payload[20:]
	}
	wrapped.WriteString(payload)

	img, err := service.DecodeDataURL(prefix + wrapped.String())
	require.NoError(t, err)
	assert.Equal(t, testhelpers.PNGBytes(t, 4, 4), img.Data)
}

func TestProcessImageKeepsSmallImages(t *testing.T) {
	data := testhelpers.PNGBytes(t, 10, 5)

	out, err := service.ProcessImage(&service.Image{Data: data, Ext: "png"}, service.ImageLimits{MaxWidth: 100})
	require.NoError(t, err)
	assert.Equal(t, data, out.Data)
	assert.Equal(t, "png", out.Ext)
}

func TestProcessImageDownscalesWideImages(t *testing.T) {
	upload := service.FromUpload(&types.ImageFile{Data: testhelpers.PNGBytes(t, 200, 100), ContentType: "image/png"})

	out, err := service.ProcessImage(upload, service.ImageLimits{MaxWidth: 50})
	require.NoError(t, err)
	assert.Equal(t, "png", out.Ext)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestProcessImageRejectsTooManyPixels(t *testing.T) {
	data := testhelpers.PNGBytes(t, 50, 50)

	_, err := service.ProcessImage(&service.Image{Data: data, Ext: "png"}, service.ImageLimits{MaxWidth: 100, MaxPixels: 2499})
	assert.Contains(t, fieldErrors(t, err), "image")

	_, err = service.ProcessImage(&service.Image{Data: data, Ext: "png"}, service.ImageLimits{MaxWidth: 100, MaxPixels: 2500})
	assert.NoError(t, err)
}

func TestProcessImageRejectsHugeCanvasFromSmallFile(t *testing.T) {
	// A uniform 7000x7000 canvas compresses to a few tens of kilobytes.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 7000, 7000))))
	require.Less(t, buf.Len(), 1<<20)

	_, err := service.ProcessImage(&service.Image{Data: buf.Bytes()}, service.ImageLimits{MaxWidth: 1280})
	assert.Contains(t, fieldErrors(t, err), "image")
}

func TestProcessImageRejectsGarbage(t *testing.T) {
	_, err := service.ProcessImage(&service.Image{Data: []byte("garbage")}, service.ImageLimits{MaxWidth: 100})
	assert.Contains(t, fieldErrors(t, err), "image")
}
