package dedup

import (
	"image"
	"math/bits"
	"math/rand"
	"sort"

	"github.com/apvscan/apvscan/internal/imaging"
)

// Descriptor is a 256-bit binary feature descriptor stored as four 64-bit
// words, compared by Hamming distance.
type Descriptor [4]uint64

// Keypoint is one salient corner with its descriptor. Coordinates are in the
// source page's pixel space.
type Keypoint struct {
	X, Y int
	Desc Descriptor
}

// Signature is the ordered keypoint set extracted from one page. Keypoints
// are ordered by descending corner score, truncated to the configured
// feature budget.
type Signature struct {
	PageIndex int
	Keypoints []Keypoint
}

// HammingDistance returns the number of differing bits between two
// descriptors.
func HammingDistance(a, b Descriptor) int {
	return bits.OnesCount64(a[0]^b[0]) +
		bits.OnesCount64(a[1]^b[1]) +
		bits.OnesCount64(a[2]^b[2]) +
		bits.OnesCount64(a[3]^b[3])
}

// patchRadius is the half-size of the descriptor sampling patch. Keypoints
// closer than this to an image border are not usable.
const patchRadius = 15

// fastThreshold is the minimum absolute intensity difference for a circle
// pixel to count as brighter/darker than the center in FAST detection.
const fastThreshold = 20

// fastCircle is the standard 16-pixel Bresenham circle of radius 3 used by
// the FAST-9 segment test, in clockwise order.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// briefPattern holds the 256 point-pair offsets for the BRIEF descriptor.
// The pattern is generated once from a fixed seed so that descriptors are
// identical across runs and across pages.
var briefPattern = makeBriefPattern()

func makeBriefPattern() [256][4]int {
	rng := rand.New(rand.NewSource(0x0b5e55ed))
	var pattern [256][4]int
	for i := range pattern {
		pattern[i] = [4]int{
			rng.Intn(2*patchRadius+1) - patchRadius,
			rng.Intn(2*patchRadius+1) - patchRadius,
			rng.Intn(2*patchRadius+1) - patchRadius,
			rng.Intn(2*patchRadius+1) - patchRadius,
		}
	}
	return pattern
}

// ExtractSignature computes the keypoint signature of a page.
//
// The image is converted to grayscale and Gaussian-smoothed, FAST-9 corners
// are detected with 3x3 non-maximum suppression on the corner score, the
// strongest maxFeatures corners are kept, and a BRIEF descriptor is sampled
// for each from the smoothed plane.
//
// A near-blank page yields few or zero keypoints; that is a valid result,
// the caller treats such pages as not provably duplicate.
func ExtractSignature(pageIndex int, img image.Image, maxFeatures int) Signature {
	gray := imaging.BlurGray(imaging.Grayscale(img))
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()

	at := func(x, y int) int { return int(gray.Pix[y*gray.Stride+x]) }

	// Corner score per pixel; zero means not a corner.
	scores := make([]int, width*height)
	for y := patchRadius; y < height-patchRadius; y++ {
		for x := patchRadius; x < width-patchRadius; x++ {
			if s := fastScore(at, x, y); s > 0 {
				scores[y*width+x] = s
			}
		}
	}

	// 3x3 non-maximum suppression keeps one corner per local peak.
	type scored struct {
		x, y, score int
	}
	corners := make([]scored, 0, 1024)
	for y := patchRadius; y < height-patchRadius; y++ {
		for x := patchRadius; x < width-patchRadius; x++ {
			s := scores[y*width+x]
			if s == 0 {
				continue
			}
			isMax := true
			for dy := -1; dy <= 1 && isMax; dy++ {
				for dx := -1; dx <= 1 && isMax; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if scores[(y+dy)*width+(x+dx)] > s {
						isMax = false
					}
				}
			}
			if isMax {
				corners = append(corners, scored{x: x, y: y, score: s})
			}
		}
	}

	// Strongest first; ties broken by scan order for determinism.
	sort.SliceStable(corners, func(i, j int) bool {
		return corners[i].score > corners[j].score
	})
	if maxFeatures > 0 && len(corners) > maxFeatures {
		corners = corners[:maxFeatures]
	}

	keypoints := make([]Keypoint, 0, len(corners))
	for _, c := range corners {
		keypoints = append(keypoints, Keypoint{
			X:    c.x,
			Y:    c.y,
			Desc: briefDescriptor(at, c.x, c.y),
		})
	}

	return Signature{PageIndex: pageIndex, Keypoints: keypoints}
}

// fastScore runs the FAST-9 segment test at (x, y) and returns a corner
// score, or 0 if the pixel is not a corner.
//
// A pixel is a corner when at least 9 contiguous pixels on the radius-3
// circle are all brighter than center+threshold or all darker than
// center-threshold. The score is the sum of absolute differences over the
// circle, which non-maximum suppression then ranks.
func fastScore(at func(x, y int) int, x, y int) int {
	center := at(x, y)

	var brighter, darker uint16
	for i, off := range fastCircle {
		v := at(x+off[0], y+off[1])
		if v > center+fastThreshold {
			brighter |= 1 << uint(i)
		} else if v < center-fastThreshold {
			darker |= 1 << uint(i)
		}
	}

	if !hasContiguousArc(brighter, 9) && !hasContiguousArc(darker, 9) {
		return 0
	}

	score := 0
	for _, off := range fastCircle {
		d := at(x+off[0], y+off[1]) - center
		if d < 0 {
			d = -d
		}
		if d > fastThreshold {
			score += d - fastThreshold
		}
	}
	return score
}

// hasContiguousArc reports whether the 16-bit circular mask contains a run
// of at least n consecutive set bits, treating the mask as circular.
func hasContiguousArc(mask uint16, n int) bool {
	if mask == 0 {
		return false
	}
	// Unroll the circle to 32 bits to handle wraparound runs.
	extended := uint32(mask) | uint32(mask)<<16
	run := 0
	for i := 0; i < 32; i++ {
		if extended&(1<<uint(i)) != 0 {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// briefDescriptor samples the 256 fixed point pairs around (x, y) on the
// smoothed grayscale plane. Bit i is set when the first point of pair i is
// brighter than the second.
func briefDescriptor(at func(x, y int) int, x, y int) Descriptor {
	var d Descriptor
	for i, p := range briefPattern {
		if at(x+p[0], y+p[1]) > at(x+p[2], y+p[3]) {
			d[i/64] |= 1 << uint(i%64)
		}
	}
	return d
}
