package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
)

const maskOn = 255

// Mask is a binary image aligned with a source page. Set pixels have value
// 255, clear pixels 0. Masks always have origin-based bounds.
type Mask struct {
	gray *image.Gray
}

// NewMask creates an all-clear mask of the given size.
func NewMask(width, height int) *Mask {
	return &Mask{gray: image.NewGray(image.Rect(0, 0, width, height))}
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.gray.Bounds().Dx() }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.gray.Bounds().Dy() }

// At reports whether the pixel at (x, y) is set. Out-of-bounds coordinates
// read as clear.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width() || y >= m.Height() {
		return false
	}
	return m.gray.Pix[y*m.gray.Stride+x] != 0
}

// Set marks the pixel at (x, y). Out-of-bounds coordinates are ignored.
func (m *Mask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.Width() || y >= m.Height() {
		return
	}
	m.gray.Pix[y*m.gray.Stride+x] = maskOn
}

// Or returns a new mask set where either input is set. Both masks must have
// the same dimensions.
func (m *Mask) Or(other *Mask) *Mask {
	out := NewMask(m.Width(), m.Height())
	for i, v := range m.gray.Pix {
		if v != 0 || other.gray.Pix[i] != 0 {
			out.gray.Pix[i] = maskOn
		}
	}
	return out
}

// AndNot returns a new mask set where m is set and other is clear. Both masks
// must have the same dimensions.
func (m *Mask) AndNot(other *Mask) *Mask {
	out := NewMask(m.Width(), m.Height())
	for i, v := range m.gray.Pix {
		if v != 0 && other.gray.Pix[i] == 0 {
			out.gray.Pix[i] = maskOn
		}
	}
	return out
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.gray.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// FractionSet returns the fraction of set pixels inside rect, clipped to the
// mask bounds. An empty intersection yields 0.
func (m *Mask) FractionSet(rect image.Rectangle) float64 {
	rect = rect.Intersect(image.Rect(0, 0, m.Width(), m.Height()))
	total := rect.Dx() * rect.Dy()
	if total <= 0 {
		return 0
	}
	set := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if m.gray.Pix[y*m.gray.Stride+x] != 0 {
				set++
			}
		}
	}
	return float64(set) / float64(total)
}

// Dilate grows set regions by radius pixels.
func (m *Mask) Dilate(radius int) *Mask {
	return rethreshold(effect.Dilate(m.gray, float64(radius)))
}

// Erode shrinks set regions by radius pixels.
func (m *Mask) Erode(radius int) *Mask {
	return rethreshold(effect.Erode(m.gray, float64(radius)))
}

// Close performs morphological closing (dilate then erode) the given number
// of times. Closing bridges small gaps in a region border, which the sign
// detector needs because scanned red borders are rarely contiguous at the
// pixel level.
func (m *Mask) Close(iterations int) *Mask {
	out := m
	for i := 0; i < iterations; i++ {
		out = out.Dilate(1).Erode(1)
	}
	return out
}

// Open performs morphological opening (erode then dilate) the given number of
// times, removing speckle noise smaller than the structuring element.
func (m *Mask) Open(iterations int) *Mask {
	out := m
	for i := 0; i < iterations; i++ {
		out = out.Erode(1).Dilate(1)
	}
	return out
}

// Image returns the mask as a grayscale image (set = white). The returned
// image shares no storage with the mask.
func (m *Mask) Image() *image.Gray {
	out := image.NewGray(m.gray.Bounds())
	copy(out.Pix, m.gray.Pix)
	return out
}

// rethreshold converts the RGBA output of a bild morphology pass back to a
// strict binary mask. bild interpolates at region borders; anything at or
// above half intensity counts as set.
func rethreshold(img *image.RGBA) *Mask {
	bounds := img.Bounds()
	out := NewMask(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if c.Y >= 128 {
				out.Set(x-bounds.Min.X, y-bounds.Min.Y)
			}
		}
	}
	return out
}
