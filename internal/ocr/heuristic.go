//go:build !tesseract

package ocr

import (
	"image"

	"github.com/apvscan/apvscan/internal/imaging"
)

// NewCounter returns the pure-Go heuristic character counter used when the
// binary is built without the tesseract tag.
func NewCounter() CharCounter {
	return &heuristicCounter{}
}

// heuristicCounter estimates character count from edge density. Printed
// text fills cells with medium edge density; blank paper falls below the
// band and solid fills or dense hatching above it. Map linework touches
// far fewer cells than a text sheet, which is all the page filter needs:
// the estimate is compared against a threshold, never reported.
type heuristicCounter struct{}

const (
	// cellSize is the analysis grid cell in pixels.
	cellSize = 16
	// edgeThreshold is the grayscale gradient magnitude that marks an
	// edge pixel.
	edgeThreshold = 30
	// minDensity/maxDensity bound the edge-pixel fraction of a text-like
	// cell.
	minDensity = 0.08
	maxDensity = 0.50
	// pixelsPerChar converts text-like cell area into an approximate
	// character count for 300 DPI print.
	pixelsPerChar = 550
)

func (h *heuristicCounter) CountChars(img image.Image) (int, error) {
	gray := imaging.Grayscale(img)
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()

	at := func(x, y int) int { return int(gray.Pix[y*gray.Stride+x]) }
	isEdge := func(x, y int) bool {
		if x >= width-1 || y >= height-1 {
			return false
		}
		c := at(x, y)
		return abs(c-at(x+1, y)) > edgeThreshold || abs(c-at(x, y+1)) > edgeThreshold
	}

	textArea := 0
	for cy := 0; cy+cellSize <= height; cy += cellSize {
		for cx := 0; cx+cellSize <= width; cx += cellSize {
			edgeCount := 0
			for y := cy; y < cy+cellSize; y++ {
				for x := cx; x < cx+cellSize; x++ {
					if isEdge(x, y) {
						edgeCount++
					}
				}
			}
			density := float64(edgeCount) / float64(cellSize*cellSize)
			if density >= minDensity && density <= maxDensity {
				textArea += cellSize * cellSize
			}
		}
	}

	return textArea / pixelsPerChar, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
