package detect

import (
	"image"

	"github.com/apvscan/apvscan/internal/imaging"
)

// minComponentPixels filters out single-speckle components before any
// geometry check runs.
const minComponentPixels = 10

// Component is one external contour of a binary mask: a connected group of
// set pixels summarized by its bounding box and pixel count.
type Component struct {
	// Bounds is the tight bounding box in mask (= page) coordinates.
	Bounds image.Rectangle
	// Pixels is the number of set pixels in the component.
	Pixels int
}

// FindComponents extracts the 8-connected components of a mask in scan
// order (top-to-bottom, left-to-right by first pixel), which keeps the
// detection order deterministic. Components smaller than ten pixels are
// discarded as noise.
func FindComponents(mask *imaging.Mask) []Component {
	width := mask.Width()
	height := mask.Height()
	visited := make([]bool, width*height)

	components := make([]Component, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !mask.At(x, y) || visited[y*width+x] {
				continue
			}
			if c, ok := traceComponent(mask, visited, x, y); ok {
				components = append(components, c)
			}
		}
	}
	return components
}

// traceComponent flood-fills one component from a seed pixel using an
// explicit stack (large map regions would overflow a recursive fill).
func traceComponent(mask *imaging.Mask, visited []bool, startX, startY int) (Component, bool) {
	width := mask.Width()
	height := mask.Height()

	minX, minY := startX, startY
	maxX, maxY := startX, startY
	pixels := 0

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y*width+p.X] || !mask.At(p.X, p.Y) {
			continue
		}
		visited[p.Y*width+p.X] = true
		pixels++

		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}

	if pixels < minComponentPixels {
		return Component{}, false
	}
	return Component{
		Bounds: image.Rect(minX, minY, maxX+1, maxY+1),
		Pixels: pixels,
	}, true
}
