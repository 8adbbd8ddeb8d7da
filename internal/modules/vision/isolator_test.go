package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

var (
	red   = color.RGBA{R: 200, A: 255}
	green = color.RGBA{G: 180, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// 10x10 photo: red block at x∈[2,6), y∈[2,8) on green.
func testPhoto() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := green
			if x >= 2 && x < 6 && y >= 2 && y < 8 {
				c = red
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// 5x5 class map at half resolution. Cell (1,1) is skin (label 11) so the
// garment mask is not rectangular.
func testClassMap(t *testing.T) ClassMap {
	labels := make([]byte, 25)
	for _, cell := range [][2]int{{2, 1}, {1, 2}, {2, 2}, {1, 3}, {2, 3}} {
		labels[cell[1]*5+cell[0]] = 4
	}
	labels[1*5+1] = 11
	cm, err := NewClassMap(5, 5, labels)
	require.NoError(t, err)
	return cm
}

type segmenterFunc func(ctx context.Context, img image.Image) (ClassMap, error)

func (f segmenterFunc) Segment(ctx context.Context, img image.Image) (ClassMap, error) {
	return f(ctx, img)
}

func TestIsolateCropsToGarmentAndFillsBackground(t *testing.T) {
	cm := testClassMap(t)
	iso := NewIsolator(segmenterFunc(func(context.Context, image.Image) (ClassMap, error) { return cm, nil }), IsolatorConfig{})

	out, err := iso.Isolate(context.Background(), testPhoto())
	require.NoError(t, err)

	assert.Equal(t, image.Rect(2, 2, 6, 8), out.Box)
	require.Equal(t, image.Rect(0, 0, 4, 6), out.Image.Bounds())
	require.Equal(t, out.Image.Bounds(), out.Mask.Bounds())

	// (0,0) of the crop is source (2,2): red in the photo but skin in the map.
	assert.Equal(t, white, out.Image.RGBAAt(0, 0))
	assert.Equal(t, uint8(0), out.Mask.AlphaAt(0, 0).A)

	// (3,5) is source (5,7): garment.
	assert.Equal(t, red, out.Image.RGBAAt(3, 5))
	assert.Equal(t, uint8(0xff), out.Mask.AlphaAt(3, 5).A)
}

func TestIsolateWithoutGarmentPixels(t *testing.T) {
	cm, err := NewClassMap(2, 2, []byte{0, 11, 2, 0})
	require.NoError(t, err)
	_, err = IsolateWithMap(testPhoto(), cm, NewLabelSet(DefaultGarmentLabels...), color.White)
	assert.True(t, errors.Is(err, fashion.ErrNoGarmentDetected))
}

func TestClassMapResizeKeepsLabels(t *testing.T) {
	cm := testClassMap(t).Resize(10, 10)
	assert.Equal(t, uint8(4), cm.Label(4, 2))
	assert.Equal(t, uint8(11), cm.Label(3, 3))
	assert.Equal(t, uint8(0), cm.Label(9, 9))
	for _, px := range cm.Pix {
		assert.Contains(t, []uint8{0, 4, 11}, px, "resizing must not invent classes")
	}
}

func TestMaskBoundsEmpty(t *testing.T) {
	_, ok := MaskBounds(image.NewAlpha(image.Rect(0, 0, 3, 3)))
	assert.False(t, ok)
}

func TestDecodeBase64AcceptsDataURL(t *testing.T) {
	png, err := EncodePNG(testPhoto())
	require.NoError(t, err)
	enc := base64.StdEncoding.EncodeToString(png)

	for _, in := range []string{enc, "data:image/png;base64," + enc} {
		b, err := DecodeBase64(in)
		require.NoError(t, err)
		img, format, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 10, img.Bounds().Dx())
	}

	_, err = DecodeBase64("data:image/png;base64")
	assert.ErrorIs(t, err, fashion.ErrInput)
	_, err = DecodeBase64("%%%")
	assert.ErrorIs(t, err, fashion.ErrInput)
	_, _, err = Decode([]byte("not an image"))
	assert.ErrorIs(t, err, fashion.ErrInput)
}

type embedderFunc func(ctx context.Context, img image.Image) ([]float32, error)

func (f embedderFunc) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	return f(ctx, img)
}

func TestGarmentEmbedderEmbedsCropOnly(t *testing.T) {
	cm := testClassMap(t)
	var seen image.Rectangle
	g := &GarmentEmbedder{
		Isolator: NewIsolator(segmenterFunc(func(context.Context, image.Image) (ClassMap, error) { return cm, nil }), IsolatorConfig{}),
		Embedder: embedderFunc(func(_ context.Context, img image.Image) ([]float32, error) {
			seen = img.Bounds()
			return []float32{1, 0}, nil
		}),
	}
	vec, err := g.EmbedGarment(context.Background(), testPhoto())
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, image.Rect(0, 0, 4, 6), seen)
}
