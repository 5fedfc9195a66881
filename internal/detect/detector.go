package detect

import (
	"image"

	"github.com/apvscan/apvscan/internal/imaging"
)

// MaskParams holds the HSV bands used for color segmentation. Red straddles
// the hue wraparound and therefore needs two bands.
type MaskParams struct {
	RedLow        imaging.HSVRange
	RedHigh       imaging.HSVRange
	Yellow        imaging.HSVRange
	White         imaging.HSVRange
	SubsignYellow imaging.HSVRange
}

// GeometryParams holds the shape filters applied to border contours.
type GeometryParams struct {
	// MinArea is the minimum bounding-box area in square pixels.
	MinArea int
	// MaxAspect is the maximum max(w,h)/min(w,h) bounding-box aspect ratio.
	MaxAspect float64
	// MinFaceFrac is the minimum fraction of face-colored (yellow or white)
	// pixels inside the bounding box.
	MinFaceFrac float64
	// MinRimFrac is the minimum fraction of red-border pixels inside the
	// bounding box.
	MinRimFrac float64
	// Margin is the extra pixels cropped on each side of a detection.
	Margin int
}

// SubsignParams holds the geometry test for the secondary strong-yellow
// rectangular plate pass.
type SubsignParams struct {
	// MinArea is the minimum component pixel count.
	MinArea int
	// MinAspect and MaxAspect bound the bounding-box aspect ratio; distance
	// boards are wide rectangles.
	MinAspect float64
	MaxAspect float64
	// MinFill is the minimum fraction of the bounding box covered by the
	// component's pixels.
	MinFill float64
}

// Params bundles every detector tunable. Values are calibration data for
// 300 DPI plan scans; expose them through configuration rather than
// treating them as invariants.
type Params struct {
	Masks    MaskParams
	Geometry GeometryParams
	Subsign  SubsignParams
}

// DefaultParams returns the calibrated defaults.
func DefaultParams() Params {
	return Params{
		Masks: MaskParams{
			RedLow:        imaging.HSVRange{HueMin: 0, HueMax: 20, SatMin: 0.35, SatMax: 1, ValMin: 0.35, ValMax: 1},
			RedHigh:       imaging.HSVRange{HueMin: 340, HueMax: 360, SatMin: 0.35, SatMax: 1, ValMin: 0.35, ValMax: 1},
			Yellow:        imaging.HSVRange{HueMin: 30, HueMax: 80, SatMin: 0.31, SatMax: 1, ValMin: 0.39, ValMax: 1},
			White:         imaging.HSVRange{HueMin: 0, HueMax: 360, SatMin: 0, SatMax: 0.24, ValMin: 0.71, ValMax: 1},
			SubsignYellow: imaging.HSVRange{HueMin: 50, HueMax: 70, SatMin: 0.59, SatMax: 1, ValMin: 0.59, ValMax: 1},
		},
		Geometry: GeometryParams{
			MinArea:     6400, // 80x80 px at 300 DPI
			MaxAspect:   2.0,
			MinFaceFrac: 0.05,
			MinRimFrac:  0.05,
			Margin:      6,
		},
		Subsign: SubsignParams{
			MinArea:   700,
			MinAspect: 2.3,
			MaxAspect: 6.0,
			MinFill:   0.40,
		},
	}
}

// Region is one detected sign candidate cropped from a page.
//
// Bounds is the detection bounding box in the source page's pixel space,
// without the crop margin. Crop is the margin-padded cutout from the
// original page image; MarginApplied reports whether the full margin fit
// without clamping at a page edge.
type Region struct {
	SourcePage    int
	Bounds        image.Rectangle
	Crop          image.Image
	MarginApplied bool
	// Subsign marks regions found by the secondary yellow-plate pass.
	Subsign bool
}

// Detector finds sign regions on pages using a fixed parameter set.
// Detector is stateless across pages and safe for concurrent use.
type Detector struct {
	params Params
}

// NewDetector creates a detector. An all-zero Params falls back to
// DefaultParams.
func NewDetector(params Params) *Detector {
	if params.Geometry.MinArea == 0 && params.Geometry.MaxAspect == 0 {
		params = DefaultParams()
	}
	return &Detector{params: params}
}

// Detect returns the sign regions of one page, ordered deterministically:
// primary detections in contour scan order, then subsign detections. An
// empty slice is a valid result for a page with no sign-colored content.
func (d *Detector) Detect(pageIndex int, img image.Image) []Region {
	red := imaging.MaskAny(img, d.params.Masks.RedLow, d.params.Masks.RedHigh).Close(2)
	yellow := imaging.MaskAny(img, d.params.Masks.Yellow).Close(1)
	white := imaging.MaskAny(img, d.params.Masks.White).Close(1)

	face := yellow.Or(white)
	// The border ring is red minus any face-colored pixels, eroded once to
	// detach it from adjacent map linework.
	rim := red.AndNot(face).Erode(1)

	candidates := make([]Region, 0)
	for _, c := range FindComponents(rim) {
		if !d.plausibleSign(c, rim, face) {
			continue
		}
		candidates = append(candidates, Region{SourcePage: pageIndex, Bounds: c.Bounds})
	}

	candidates = append(candidates, d.detectSubsigns(pageIndex, img)...)
	candidates = dropContained(candidates)

	regions := candidates[:0]
	for _, r := range candidates {
		crop, full, err := imaging.CropMargin(img, r.Bounds, d.params.Geometry.Margin)
		if err != nil {
			// A box that passed the geometry checks is inside the page;
			// a failed crop means an empty intersection and is skipped.
			continue
		}
		r.Crop = crop
		r.MarginApplied = full
		regions = append(regions, r)
	}
	return regions
}

// plausibleSign applies the bounding-box geometry and color-fraction checks
// to a border contour.
func (d *Detector) plausibleSign(c Component, rim, face *imaging.Mask) bool {
	g := d.params.Geometry
	w := c.Bounds.Dx()
	h := c.Bounds.Dy()

	if w*h < g.MinArea {
		return false
	}
	if aspectRatio(w, h) > g.MaxAspect {
		return false
	}
	// A real sign shows both its face color and its red rim inside the box.
	if face.FractionSet(c.Bounds) < g.MinFaceFrac {
		return false
	}
	if rim.FractionSet(c.Bounds) < g.MinRimFrac {
		return false
	}
	return true
}

// detectSubsigns runs the secondary pass for strong-yellow rectangular
// distance boards. These have no red border, so the primary pass cannot
// see them.
func (d *Detector) detectSubsigns(pageIndex int, img image.Image) []Region {
	s := d.params.Subsign
	mask := imaging.MaskAny(img, d.params.Masks.SubsignYellow).Close(3)

	regions := make([]Region, 0)
	for _, c := range FindComponents(mask) {
		if c.Pixels < s.MinArea {
			continue
		}
		ar := aspectRatio(c.Bounds.Dx(), c.Bounds.Dy())
		if ar < s.MinAspect || ar > s.MaxAspect {
			continue
		}
		fill := float64(c.Pixels) / float64(c.Bounds.Dx()*c.Bounds.Dy())
		if fill < s.MinFill {
			continue
		}
		regions = append(regions, Region{SourcePage: pageIndex, Bounds: c.Bounds, Subsign: true})
	}
	return regions
}

// dropContained removes regions whose bounding box is fully contained in
// another region's box; the outer box is the true sign boundary and the
// inner one a marking on its face. Order of survivors is preserved.
func dropContained(regions []Region) []Region {
	kept := regions[:0]
	for i, r := range regions {
		contained := false
		for j, other := range regions {
			if i == j {
				continue
			}
			if r.Bounds != other.Bounds && r.Bounds.In(other.Bounds) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, r)
		}
	}
	return kept
}

// aspectRatio returns max(w,h)/min(w,h), guarding against zero dimensions.
func aspectRatio(w, h int) float64 {
	long, short := w, h
	if h > w {
		long, short = h, w
	}
	if short < 1 {
		short = 1
	}
	return float64(long) / float64(short)
}
