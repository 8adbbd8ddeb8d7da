package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (ClassMap, error)
}

// Isolated is the garment crop: background-filled outside the mask.
type Isolated struct {
	Image *image.RGBA
	Mask  *image.Alpha
	// Box is the crop rectangle in source image coordinates.
	Box image.Rectangle
}

type IsolatorConfig struct {
	GarmentLabels []uint8
	Background    color.Color
}

type Isolator struct {
	seg   Segmenter
	allow LabelSet
	bg    color.Color
}

func NewIsolator(seg Segmenter, cfg IsolatorConfig) *Isolator {
	labels := cfg.GarmentLabels
	if len(labels) == 0 {
		labels = DefaultGarmentLabels
	}
	bg := cfg.Background
	if bg == nil {
		bg = color.White
	}
	return &Isolator{seg: seg, allow: NewLabelSet(labels...), bg: bg}
}

// Isolate segments img and returns the garment region, or
// fashion.ErrNoGarmentDetected when no pixel is a garment class.
func (iso *Isolator) Isolate(ctx context.Context, img image.Image) (Isolated, error) {
	cm, err := iso.seg.Segment(ctx, img)
	if err != nil {
		return Isolated{}, err
	}
	return IsolateWithMap(img, cm, iso.allow, iso.bg)
}

// IsolateWithMap applies a precomputed class map; the map is resized to the
// image's native resolution first.
func IsolateWithMap(img image.Image, cm ClassMap, allow LabelSet, bg color.Color) (Isolated, error) {
	ib := img.Bounds()
	cm = cm.Resize(ib.Dx(), ib.Dy())
	mask := cm.Mask(allow)
	box, ok := MaskBounds(mask)
	if !ok {
		return Isolated{}, fashion.ErrNoGarmentDetected
	}

	crop := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(crop, crop.Bounds(), img, ib.Min.Add(box.Min), draw.Src)

	maskCrop := image.NewAlpha(crop.Bounds())
	for y := 0; y < box.Dy(); y++ {
		src := mask.Pix[(box.Min.Y+y)*mask.Stride+box.Min.X : (box.Min.Y+y)*mask.Stride+box.Max.X]
		copy(maskCrop.Pix[y*maskCrop.Stride:], src)
	}

	dc := gg.NewContext(box.Dx(), box.Dy())
	dc.SetColor(bg)
	dc.Clear()
	if err := dc.SetMask(maskCrop); err != nil {
		return Isolated{}, fmt.Errorf("apply garment mask: %w", err)
	}
	dc.DrawImage(crop, 0, 0)

	out, ok := dc.Image().(*image.RGBA)
	if !ok {
		out = image.NewRGBA(crop.Bounds())
		draw.Draw(out, out.Bounds(), dc.Image(), image.Point{}, draw.Src)
	}
	return Isolated{Image: out, Mask: maskCrop, Box: box.Add(ib.Min)}, nil
}
