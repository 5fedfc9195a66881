package imaging

import "image"

// Grayscale converts an image to an 8-bit grayscale plane using ITU-R BT.601
// luminance weights (Y = 0.299*R + 0.587*G + 0.114*B).
//
// The returned image has bounds translated to the origin regardless of the
// source bounds, so callers can index it with 0-based pixel coordinates.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			v := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.Pix[y*gray.Stride+x] = uint8(v)
		}
	}
	return gray
}

// BlurGray applies a 5x5 Gaussian blur (sigma ≈ 1.4) to a grayscale plane.
//
// Used to suppress scan noise before corner detection. Border pixels use
// clamped (replicated) edge values.
func BlurGray(src *image.Gray) *image.Gray {
	kernel := [5][5]int{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273

	width := src.Bounds().Dx()
	height := src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := 0
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					sum += int(src.Pix[py*src.Stride+px]) * kernel[ky+2][kx+2]
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(sum / kernelSum)
		}
	}
	return dst
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
