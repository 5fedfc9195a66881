package ocr

import "image"

// CharCounter estimates the number of text characters visible on a page
// image. Implementations must be safe for sequential reuse across pages.
type CharCounter interface {
	CountChars(img image.Image) (int, error)
}
