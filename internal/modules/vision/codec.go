package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

// MaxImageBytes bounds decoded uploads.
const MaxImageBytes = 12 << 20

// MaxImagePixels bounds the raster an upload may declare; the header is read
// before any pixel buffer is allocated.
const MaxImagePixels = 40_000_000

// DecodeBase64 accepts raw base64 or a data URL ("data:image/png;base64,...").
func DecodeBase64(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, fashion.InputErrorf("malformed data URL")
		}
		s = s[idx+1:]
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, fashion.InputErrorf("empty image payload")
	}
	if base64.StdEncoding.DecodedLen(len(s)) > MaxImageBytes {
		return nil, fashion.InputErrorf("image exceeds %d bytes", MaxImageBytes)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b2, err2 := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err2 == nil {
			return b2, nil
		}
		return nil, fashion.InputErrorf("image is not valid base64")
	}
	return b, nil
}

// Decode reads JPEG, PNG, GIF, WebP or BMP.
func Decode(b []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("%w: cannot decode image: %v", fashion.ErrInput, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fashion.InputErrorf("image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, "", fashion.InputErrorf("image is %dx%d, above the %d pixel limit", cfg.Width, cfg.Height, MaxImagePixels)
	}
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("%w: cannot decode image: %v", fashion.ErrInput, err)
	}
	if r := img.Bounds(); r.Dx() == 0 || r.Dy() == 0 {
		return nil, "", fashion.InputErrorf("image has no pixels")
	}
	return img, format, nil
}

// EncodePNG is the wire format used towards the model server.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
