package imaging

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

// HSVRange describes an inclusive box in HSV space used for thresholding.
//
// Hue is in degrees (0-360); saturation and value are fractions (0.0-1.0).
// A range never crosses the hue wraparound on its own: red, which straddles
// 0°/360°, is expressed as two ranges combined with MaskAny.
type HSVRange struct {
	HueMin float64 `yaml:"hue_min"` // Lower hue bound in degrees
	HueMax float64 `yaml:"hue_max"` // Upper hue bound in degrees
	SatMin float64 `yaml:"sat_min"` // Lower saturation bound (0-1)
	SatMax float64 `yaml:"sat_max"` // Upper saturation bound (0-1)
	ValMin float64 `yaml:"val_min"` // Lower value bound (0-1)
	ValMax float64 `yaml:"val_max"` // Upper value bound (0-1)
}

// Contains reports whether the given HSV triple falls inside the range.
func (r HSVRange) Contains(h, s, v float64) bool {
	return h >= r.HueMin && h <= r.HueMax &&
		s >= r.SatMin && s <= r.SatMax &&
		v >= r.ValMin && v <= r.ValMax
}

// MaskAny builds a binary mask of the pixels whose HSV value falls inside
// any of the given ranges.
//
// The conversion to HSV goes through go-colorful, which works in linear
// 0-1 component space; 16-bit image samples are scaled down accordingly.
// The returned mask has origin-based bounds matching the image size.
func MaskAny(img image.Image, ranges ...HSVRange) *Mask {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	mask := NewMask(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			c := colorful.Color{
				R: float64(r) / 65535.0,
				G: float64(g) / 65535.0,
				B: float64(b) / 65535.0,
			}
			h, s, v := c.Hsv()
			for _, rg := range ranges {
				if rg.Contains(h, s, v) {
					mask.Set(x, y)
					break
				}
			}
		}
	}
	return mask
}
