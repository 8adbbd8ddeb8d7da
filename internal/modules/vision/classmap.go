package vision

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ClassMap holds one segmentation class label per pixel.
type ClassMap struct {
	*image.Gray
}

func NewClassMap(width, height int, labels []byte) (ClassMap, error) {
	if width <= 0 || height <= 0 || len(labels) != width*height {
		return ClassMap{}, fmt.Errorf("class map %dx%d needs %d labels, got %d", width, height, width*height, len(labels))
	}
	g := &image.Gray{Pix: labels, Stride: width, Rect: image.Rect(0, 0, width, height)}
	return ClassMap{Gray: g}, nil
}

func (cm ClassMap) Label(x, y int) uint8 {
	return cm.GrayAt(x, y).Y
}

// Resize maps the class map onto a width x height grid. Nearest neighbour
// keeps labels intact; interpolating class ids would invent classes.
func (cm ClassMap) Resize(width, height int) ClassMap {
	b := cm.Bounds()
	if b.Dx() == width && b.Dy() == height && b.Min == (image.Point{}) {
		return cm
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), cm.Gray, b, draw.Src, nil)
	return ClassMap{Gray: dst}
}

// Mask marks pixels whose label is in allow with full alpha.
func (cm ClassMap) Mask(allow LabelSet) *image.Alpha {
	b := cm.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if allow.Has(cm.Label(b.Min.X+x, b.Min.Y+y)) {
				mask.Pix[y*mask.Stride+x] = 0xff
			}
		}
	}
	return mask
}

// LabelSet is an allow-list of class ids.
type LabelSet [256]bool

func NewLabelSet(labels ...uint8) LabelSet {
	var s LabelSet
	for _, l := range labels {
		s[l] = true
	}
	return s
}

func (s *LabelSet) Has(l uint8) bool { return s[l] }

// DefaultGarmentLabels are the clothing classes of the segformer clothes label
// set: upper-clothes, skirt, pants, dress, belt, bag and scarf.
var DefaultGarmentLabels = []uint8{4, 5, 6, 7, 8, 16, 17}

// MaskBounds returns the tight bounding box of non-zero mask pixels.
func MaskBounds(mask *image.Alpha) (image.Rectangle, bool) {
	b := mask.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[(y-b.Min.Y)*mask.Stride : (y-b.Min.Y)*mask.Stride+b.Dx()]
		for i, a := range row {
			if a == 0 {
				continue
			}
			x := b.Min.X + i
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX || maxY < minY {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
