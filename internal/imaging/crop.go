package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropMargin extracts rect from img with margin extra pixels added on every
// side, clipped to the image bounds.
//
// The second return value reports whether the full margin fit on all four
// sides; it is false when the crop had to be clamped at an image edge.
// rect is in the image's own coordinate space and must be non-empty and at
// least partially inside the image.
func CropMargin(img image.Image, rect image.Rectangle, margin int) (image.Image, bool, error) {
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return nil, false, fmt.Errorf("invalid crop rect %v: width and height must be positive", rect)
	}

	bounds := img.Bounds()
	want := image.Rect(rect.Min.X-margin, rect.Min.Y-margin, rect.Max.X+margin, rect.Max.Y+margin)
	got := want.Intersect(bounds)
	if got.Empty() {
		return nil, false, fmt.Errorf("crop rect %v outside image bounds %v", rect, bounds)
	}

	return imaging.Crop(img, got), got == want, nil
}
