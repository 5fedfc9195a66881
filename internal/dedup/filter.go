package dedup

import "image"

// Params holds the duplicate-filter tunables. The defaults are calibrated
// for 300 DPI construction-plan scans.
type Params struct {
	// NFeatures is the per-page keypoint budget.
	NFeatures int
	// Ratio is the Lowe ratio-test threshold: a correspondence counts as a
	// good match only when bestDistance < Ratio * secondBestDistance.
	Ratio float64
	// MinGood is the good-match count at which a page is declared a
	// duplicate of a kept page.
	MinGood int
}

// DefaultParams returns the calibrated defaults (20000 features, ratio
// 0.75, 12000 good matches).
func DefaultParams() Params {
	return Params{NFeatures: 20000, Ratio: 0.75, MinGood: 12000}
}

// Decision records the duplicate verdict for one page.
//
// When IsDuplicate is true, MatchedAgainst is the index of an earlier page
// that was itself kept (never another duplicate). For kept pages
// MatchedAgainst is 0.
type Decision struct {
	PageIndex      int
	IsDuplicate    bool
	MatchedAgainst int
	GoodMatches    int
}

// Filter accumulates the kept-page set across a sequential filtering pass.
//
// Pages must be fed through Add in page order; the comparison semantics
// depend on it. Filter is not safe for concurrent use.
type Filter struct {
	params Params
	kept   []Signature
}

// NewFilter creates a filter with the given parameters. Zero or negative
// fields fall back to DefaultParams values.
func NewFilter(params Params) *Filter {
	def := DefaultParams()
	if params.NFeatures <= 0 {
		params.NFeatures = def.NFeatures
	}
	if params.Ratio <= 0 {
		params.Ratio = def.Ratio
	}
	if params.MinGood <= 0 {
		params.MinGood = def.MinGood
	}
	return &Filter{params: params}
}

// Add decides whether the page is a duplicate of an already-kept page and,
// if not, adds it to the kept set.
//
// A page with fewer than two keypoints cannot be proven duplicate and is
// always kept. When several kept pages reach the MinGood threshold the one
// with the highest match count wins; equal counts resolve to the earliest
// kept page, so re-runs are deterministic.
func (f *Filter) Add(pageIndex int, img image.Image) Decision {
	sig := ExtractSignature(pageIndex, img, f.params.NFeatures)
	return f.AddSignature(sig)
}

// AddSignature is Add for a precomputed signature.
func (f *Filter) AddSignature(sig Signature) Decision {
	decision := Decision{PageIndex: sig.PageIndex}

	if len(sig.Keypoints) >= 2 {
		bestCount := 0
		bestPage := 0
		for _, kept := range f.kept {
			if len(kept.Keypoints) < 2 {
				continue
			}
			count := countGoodMatches(sig, kept, f.params.Ratio)
			if count > bestCount {
				bestCount = count
				bestPage = kept.PageIndex
			}
		}
		if bestCount >= f.params.MinGood {
			decision.IsDuplicate = true
			decision.MatchedAgainst = bestPage
			decision.GoodMatches = bestCount
			return decision
		}
		decision.GoodMatches = bestCount
	}

	f.kept = append(f.kept, sig)
	return decision
}

// KeptCount returns the number of pages accepted as unique so far.
func (f *Filter) KeptCount() int { return len(f.kept) }

// countGoodMatches counts ratio-test survivors matching candidate
// descriptors into the kept page's descriptor set.
//
// For every candidate descriptor the two nearest kept descriptors by
// Hamming distance are found with a brute-force scan; the correspondence is
// good when the best distance is strictly below ratio times the second
// best. A kept set with a single descriptor cannot pass the ratio test.
func countGoodMatches(candidate, kept Signature, ratio float64) int {
	good := 0
	for _, kp := range candidate.Keypoints {
		best, second := -1, -1
		for _, other := range kept.Keypoints {
			d := HammingDistance(kp.Desc, other.Desc)
			switch {
			case best < 0 || d < best:
				second = best
				best = d
			case second < 0 || d < second:
				second = d
			}
		}
		if second < 0 {
			continue
		}
		if float64(best) < ratio*float64(second) {
			good++
		}
	}
	return good
}
