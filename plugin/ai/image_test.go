package ai

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestDetectMediaType(t *testing.T) {
	assert.Equal(t, "image/png", DetectMediaType(encodePNG(t, 2, 2), "image/jpeg"))
	assert.Equal(t, "image/jpeg", DetectMediaType(encodeJPEG(t, 2, 2), ""))
	assert.Equal(t, "image/webp", DetectMediaType([]byte("garbage"), "IMAGE/WEBP"))
	assert.Equal(t, "image/jpeg", DetectMediaType([]byte("garbage"), "application/pdf"))
}

func TestPrepareImageSmallPassThrough(t *testing.T) {
	data := encodeJPEG(t, 10, 10)
	out, mediaType := PrepareImage(data, "", DefaultMaxImageDimension)
	assert.Equal(t, data, out)
	assert.Equal(t, "image/jpeg", mediaType)
}

func TestPrepareImageDownsizes(t *testing.T) {
	data := encodePNG(t, 400, 100)
	out, mediaType := PrepareImage(data, "image/png", 200)
	assert.Equal(t, "image/jpeg", mediaType)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestPrepareImageUndecodable(t *testing.T) {
	data := []byte("not an image")
	out, mediaType := PrepareImage(data, "image/png", 10)
	assert.Equal(t, data, out)
	assert.Equal(t, "image/png", mediaType)
}
