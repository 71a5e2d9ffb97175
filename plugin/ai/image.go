package ai

import (
	"bytes"
	"image"
	"net/http"
	"strings"

	// Register decoders for the formats phones and scanners produce.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// DefaultMaxImageDimension is the longest edge, in pixels, sent for inference.
const DefaultMaxImageDimension = 1568

var supportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// DetectMediaType sniffs the image media type, falling back to declared and then image/jpeg.
func DetectMediaType(data []byte, declared string) string {
	sniffed := http.DetectContentType(data)
	if supportedMediaTypes[sniffed] {
		return sniffed
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if supportedMediaTypes[declared] {
		return declared
	}
	return "image/jpeg"
}

// PrepareImage returns the image bytes and media type to send to the model.
// Images whose longest edge exceeds maxDimension are downsized and re-encoded as JPEG.
// Undecodable input is returned unchanged.
func PrepareImage(data []byte, declared string, maxDimension int) ([]byte, string) {
	mediaType := DetectMediaType(data, declared)
	if maxDimension <= 0 {
		return data, mediaType
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (cfg.Width <= maxDimension && cfg.Height <= maxDimension) {
		return data, mediaType
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, mediaType
	}
	resized := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return data, mediaType
	}
	return buf.Bytes(), "image/jpeg"
}
