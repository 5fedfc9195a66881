package dedup

import (
	"image"
	"image/color"
	"math/rand"
	"testing"
)

// blankPage creates a uniform white page with no detectable features
func blankPage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

// texturedPage creates a white page scattered with black rectangles of
// varying sizes. The seed controls placement, so equal seeds yield
// pixel-identical pages and different seeds yield visually distinct ones.
func texturedPage(width, height int, seed int64) *image.RGBA {
	img := blankPage(width, height)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 60; i++ {
		x := rng.Intn(width - 20)
		y := rng.Intn(height - 20)
		w := 4 + rng.Intn(14)
		h := 4 + rng.Intn(14)
		for dy := 0; dy < h; dy++ {
			for dx := 0; dx < w; dx++ {
				img.Set(x+dx, y+dy, color.Black)
			}
		}
	}
	return img
}

func testParams() Params {
	return Params{NFeatures: 500, Ratio: 0.75, MinGood: 10}
}

func TestHammingDistance(t *testing.T) {
	var a, b Descriptor

	if got := HammingDistance(a, b); got != 0 {
		t.Errorf("distance of equal descriptors = %d, want 0", got)
	}

	b[0] = 0xFF
	if got := HammingDistance(a, b); got != 8 {
		t.Errorf("distance = %d, want 8", got)
	}

	b[3] = 1 << 63
	if got := HammingDistance(a, b); got != 9 {
		t.Errorf("distance across words = %d, want 9", got)
	}
}

func TestHasContiguousArc(t *testing.T) {
	tests := []struct {
		name string
		mask uint16
		n    int
		want bool
	}{
		{"empty", 0, 9, false},
		{"nine consecutive", 0x01FF, 9, true},
		{"eight consecutive", 0x00FF, 9, false},
		{"wraparound run", 0xF80F, 9, true},
		{"full circle", 0xFFFF, 9, true},
		{"scattered bits", 0x5555, 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasContiguousArc(tt.mask, tt.n); got != tt.want {
				t.Errorf("hasContiguousArc(%#04x, %d) = %v, want %v", tt.mask, tt.n, got, tt.want)
			}
		})
	}
}

func TestExtractSignature_BlankPage(t *testing.T) {
	sig := ExtractSignature(1, blankPage(200, 200), 500)
	if len(sig.Keypoints) != 0 {
		t.Errorf("blank page yielded %d keypoints, want 0", len(sig.Keypoints))
	}
}

func TestExtractSignature_TexturedPage(t *testing.T) {
	sig := ExtractSignature(1, texturedPage(300, 300, 1), 500)
	if len(sig.Keypoints) < 20 {
		t.Errorf("textured page yielded only %d keypoints", len(sig.Keypoints))
	}

	// Feature budget is honored
	capped := ExtractSignature(1, texturedPage(300, 300, 1), 10)
	if len(capped.Keypoints) != 10 {
		t.Errorf("capped extraction yielded %d keypoints, want 10", len(capped.Keypoints))
	}
}

func TestExtractSignature_Deterministic(t *testing.T) {
	a := ExtractSignature(1, texturedPage(300, 300, 7), 500)
	b := ExtractSignature(1, texturedPage(300, 300, 7), 500)

	if len(a.Keypoints) != len(b.Keypoints) {
		t.Fatalf("keypoint counts differ: %d vs %d", len(a.Keypoints), len(b.Keypoints))
	}
	for i := range a.Keypoints {
		if a.Keypoints[i] != b.Keypoints[i] {
			t.Fatalf("keypoint %d differs between identical runs", i)
		}
	}
}

func TestFilter_IdenticalPagesAreDuplicates(t *testing.T) {
	f := NewFilter(testParams())

	page := texturedPage(300, 300, 3)
	first := f.Add(1, page)
	second := f.Add(2, page)

	if first.IsDuplicate {
		t.Error("first page can never be a duplicate")
	}
	if !second.IsDuplicate {
		t.Fatalf("pixel-identical second page not marked duplicate (good matches: %d)", second.GoodMatches)
	}
	if second.MatchedAgainst != 1 {
		t.Errorf("MatchedAgainst = %d, want 1", second.MatchedAgainst)
	}
	if f.KeptCount() != 1 {
		t.Errorf("kept count = %d, want 1", f.KeptCount())
	}
}

func TestFilter_DistinctPagesAreKept(t *testing.T) {
	f := NewFilter(testParams())

	d1 := f.Add(1, texturedPage(300, 300, 11))
	d2 := f.Add(2, texturedPage(300, 300, 22))

	if d1.IsDuplicate || d2.IsDuplicate {
		t.Errorf("distinct pages marked duplicate: %+v %+v", d1, d2)
	}
	if f.KeptCount() != 2 {
		t.Errorf("kept count = %d, want 2", f.KeptCount())
	}
}

func TestFilter_BlankPageAutoUnique(t *testing.T) {
	f := NewFilter(testParams())

	f.Add(1, blankPage(200, 200))
	d2 := f.Add(2, blankPage(200, 200))

	// Featureless pages cannot be proven duplicate, so both are kept.
	if d2.IsDuplicate {
		t.Error("blank page must not be marked duplicate")
	}
	if f.KeptCount() != 2 {
		t.Errorf("kept count = %d, want 2", f.KeptCount())
	}
}

func TestFilter_DuplicateMatchesKeptPageOnly(t *testing.T) {
	f := NewFilter(testParams())

	page := texturedPage(300, 300, 5)
	f.Add(1, page)
	f.Add(2, page)
	third := f.Add(3, page)

	if !third.IsDuplicate {
		t.Fatal("third identical page not marked duplicate")
	}
	// Page 2 was dropped, so page 3 must match against the kept page 1.
	if third.MatchedAgainst != 1 {
		t.Errorf("MatchedAgainst = %d, want 1 (a kept page)", third.MatchedAgainst)
	}
}
