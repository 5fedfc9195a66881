package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apvscan/apvscan/internal/classify"
	"github.com/apvscan/apvscan/internal/dedup"
	"github.com/apvscan/apvscan/internal/detect"
	"github.com/apvscan/apvscan/internal/raster"
)

var (
	signRed    = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	signYellow = color.RGBA{R: 255, G: 200, B: 0, A: 255}
	paper      = color.RGBA{R: 250, G: 250, B: 250, A: 255}
)

// newPage creates a paper-colored page with seeded random dark linework in
// the top band, so every page has enough distinctive keypoints for the
// duplicate filter to tell pages apart.
func newPage(seed int64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 400, 500))
	for y := 0; y < 500; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, paper)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 120; i++ {
		bx := rng.Intn(380)
		by := rng.Intn(130)
		bw := 3 + rng.Intn(10)
		bh := 3 + rng.Intn(10)
		for y := by; y < by+bh && y < 140; y++ {
			for x := bx; x < bx+bw && x < 400; x++ {
				img.Set(x, y, color.RGBA{A: 255})
			}
		}
	}
	return img
}

// drawSign paints a red-bordered, yellow-faced sign covering rect.
func drawSign(img *image.RGBA, rect image.Rectangle) {
	const border = 8
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			onRim := x < rect.Min.X+border || x >= rect.Max.X-border ||
				y < rect.Min.Y+border || y >= rect.Max.Y-border
			if onRim {
				img.Set(x, y, signRed)
			} else {
				img.Set(x, y, signYellow)
			}
		}
	}
}

type fakeSource struct {
	pages []image.Image
	errs  map[int]error
}

func (f *fakeSource) PageCount() int { return len(f.pages) }

func (f *fakeSource) Page(index int) (image.Image, error) {
	if err := f.errs[index]; err != nil {
		return nil, err
	}
	return f.pages[index-1], nil
}

type fakePredictor struct {
	mu    sync.Mutex
	class string
	conf  float64
	errs  []error // consumed one per call, nil entries succeed
	calls int
}

func (f *fakePredictor) Predict(image.Image) (classify.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return classify.Prediction{}, err
		}
	}
	return classify.Prediction{Class: f.class, Confidence: f.conf}, nil
}

type fixedCounter struct {
	counts map[int]int // keyed by call order, 1-based
	err    error
	calls  int
}

func (f *fixedCounter) CountChars(image.Image) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[f.calls], nil
}

func testOptions() Options {
	return Options{
		MaxTextChars: 500,
		Dedup:        dedup.Params{NFeatures: 800, Ratio: 0.75, MinGood: 60},
		Detector:     detect.DefaultParams(),
	}
}

func TestRun_ThreePageScenario(t *testing.T) {
	// Page 1 has a sign, page 2 repeats page 1 exactly, page 3 is a
	// distinct drawing with its own sign.
	page1 := newPage(1)
	drawSign(page1, image.Rect(60, 200, 180, 320))
	page2 := newPage(1)
	drawSign(page2, image.Rect(60, 200, 180, 320))
	page3 := newPage(99)
	drawSign(page3, image.Rect(200, 250, 320, 370))

	src := &fakeSource{pages: []image.Image{page1, page2, page3}}
	pred := &fakePredictor{class: "110", conf: 0.97}
	p := New(testOptions(), pred, nil)

	results, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].PageIndex)
	assert.Equal(t, 3, results[1].PageIndex)
	for _, r := range results {
		assert.Equal(t, 0, r.RegionIndex)
		assert.Equal(t, "110", r.Class)
		assert.Equal(t, 0.97, r.Confidence)
		assert.NotNil(t, r.Crop)
	}
	assert.True(t, results[0].Bounds.Overlaps(image.Rect(60, 200, 180, 320)))
	assert.True(t, results[1].Bounds.Overlaps(image.Rect(200, 250, 320, 370)))
}

func TestRun_TextSheetSkipped(t *testing.T) {
	page1 := newPage(1)
	drawSign(page1, image.Rect(60, 200, 180, 320))
	page2 := newPage(2)
	drawSign(page2, image.Rect(80, 220, 200, 340))

	opts := testOptions()
	opts.Counter = &fixedCounter{counts: map[int]int{1: 600, 2: 20}}

	src := &fakeSource{pages: []image.Image{page1, page2}}
	p := New(opts, &fakePredictor{class: "142", conf: 0.8}, nil)

	results, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].PageIndex)
}

func TestRun_CounterFailureKeepsPage(t *testing.T) {
	page := newPage(1)
	drawSign(page, image.Rect(60, 200, 180, 320))

	opts := testOptions()
	opts.Counter = &fixedCounter{err: errors.New("ocr unavailable")}

	p := New(opts, &fakePredictor{class: "362_50", conf: 0.6}, nil)
	results, err := p.Run(context.Background(), &fakeSource{pages: []image.Image{page}})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestRun_InferenceFailureSkipsRegionOnly(t *testing.T) {
	page := newPage(1)
	drawSign(page, image.Rect(40, 180, 160, 300))
	drawSign(page, image.Rect(220, 330, 340, 450))

	pred := &fakePredictor{
		class: "110",
		conf:  0.9,
		errs:  []error{fmt.Errorf("%w: bad crop", classify.ErrInference), nil},
	}
	p := New(testOptions(), pred, nil)

	results, err := p.Run(context.Background(), &fakeSource{pages: []image.Image{page}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	// The surviving region still gets index zero.
	assert.Equal(t, 0, results[0].RegionIndex)
	assert.Equal(t, 2, pred.calls)
}

func TestRun_ModelFailureAborts(t *testing.T) {
	page := newPage(1)
	drawSign(page, image.Rect(60, 200, 180, 320))

	pred := &fakePredictor{errs: []error{fmt.Errorf("%w: corrupt weights", classify.ErrModel)}}
	p := New(testOptions(), pred, nil)

	_, err := p.Run(context.Background(), &fakeSource{pages: []image.Image{page}})
	require.Error(t, err)
	assert.ErrorIs(t, err, classify.ErrModel)
}

func TestRun_RenderFailureSkipsPage(t *testing.T) {
	page1 := newPage(1)
	drawSign(page1, image.Rect(60, 200, 180, 320))
	page3 := newPage(3)
	drawSign(page3, image.Rect(80, 220, 200, 340))

	src := &fakeSource{
		pages: []image.Image{page1, nil, page3},
		errs:  map[int]error{2: errors.New("render failed")},
	}
	p := New(testOptions(), &fakePredictor{class: "110", conf: 0.9}, nil)

	results, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].PageIndex)
	assert.Equal(t, 3, results[1].PageIndex)
}

func TestRun_DocumentFailureAborts(t *testing.T) {
	src := &fakeSource{
		pages: []image.Image{nil, nil},
		errs:  map[int]error{1: fmt.Errorf("%w: truncated file", raster.ErrDocument)},
	}
	p := New(testOptions(), &fakePredictor{}, nil)

	_, err := p.Run(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, raster.ErrDocument)
}

func TestRun_EmptyDocument(t *testing.T) {
	p := New(testOptions(), &fakePredictor{}, nil)
	results, err := p.Run(context.Background(), &fakeSource{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(testOptions(), &fakePredictor{}, nil)
	_, err := p.Run(ctx, &fakeSource{pages: []image.Image{newPage(1)}})
	assert.ErrorIs(t, err, context.Canceled)
}

// resultKey strips the crop so parallel and sequential runs can be
// compared by value.
type resultKey struct {
	page, region int
	bounds       image.Rectangle
	class        string
	conf         float64
}

func keysOf(results []Result) []resultKey {
	keys := make([]resultKey, 0, len(results))
	for _, r := range results {
		keys = append(keys, resultKey{r.PageIndex, r.RegionIndex, r.Bounds, r.Class, r.Confidence})
	}
	return keys
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	pages := make([]image.Image, 0, 4)
	for i := 0; i < 4; i++ {
		page := newPage(int64(10 + i))
		drawSign(page, image.Rect(50+20*i, 200, 170+20*i, 320))
		pages = append(pages, page)
	}
	src := &fakeSource{pages: pages}

	seq := New(testOptions(), &fakePredictor{class: "110", conf: 0.9}, nil)
	seqResults, err := seq.Run(context.Background(), src)
	require.NoError(t, err)
	require.NotEmpty(t, seqResults)

	opts := testOptions()
	opts.Workers = 3
	par := New(opts, &fakePredictor{class: "110", conf: 0.9}, nil)
	parResults, err := par.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, keysOf(seqResults), keysOf(parResults))
}
