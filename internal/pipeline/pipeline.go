package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/apvscan/apvscan/internal/classify"
	"github.com/apvscan/apvscan/internal/dedup"
	"github.com/apvscan/apvscan/internal/detect"
	"github.com/apvscan/apvscan/internal/ocr"
	"github.com/apvscan/apvscan/internal/raster"
)

// PageSource yields rendered page images by 1-based index.
// *raster.Document satisfies it; tests substitute in-memory fakes.
type PageSource interface {
	PageCount() int
	Page(index int) (image.Image, error)
}

// Predictor classifies a sign crop. *classify.Classifier satisfies it.
type Predictor interface {
	Predict(crop image.Image) (classify.Prediction, error)
}

// Options holds the run tunables.
type Options struct {
	// Counter estimates per-page character counts for the text-sheet
	// filter. nil disables the filter.
	Counter ocr.CharCounter
	// MaxTextChars is the estimate above which a page is skipped as a
	// text sheet.
	MaxTextChars int
	// Dedup parameterizes the duplicate-page filter.
	Dedup dedup.Params
	// Detector parameterizes sign-region detection.
	Detector detect.Params
	// Workers is the detection/classification fan-out; values below 1
	// run sequentially.
	Workers int
}

// Result is one classified sign region.
//
// RegionIndex numbers the classified regions of a page from zero; regions
// the classifier could not process do not consume an index. Results are
// ordered by (PageIndex, RegionIndex) regardless of worker count.
type Result struct {
	PageIndex     int
	RegionIndex   int
	Bounds        image.Rectangle
	Subsign       bool
	MarginApplied bool
	Class         string
	Confidence    float64
	Crop          image.Image
}

// Pipeline runs the full document scan. One Pipeline may serve multiple
// Run calls; each Run builds its own duplicate-filter state.
type Pipeline struct {
	opts      Options
	detector  *detect.Detector
	predictor Predictor
	log       *zap.Logger
}

// New creates a pipeline. A nil logger falls back to a no-op logger.
func New(opts Options, predictor Predictor, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		opts:      opts,
		detector:  detect.NewDetector(opts.Detector),
		predictor: predictor,
		log:       log,
	}
}

type keptPage struct {
	index int
	img   image.Image
}

// Run scans the document and returns every classified sign region.
//
// Page render failures and text-estimate failures are logged and the run
// continues; document failures, context cancellation, and classifier
// model failures abort with an error.
func (p *Pipeline) Run(ctx context.Context, src PageSource) ([]Result, error) {
	kept, err := p.selectPages(ctx, src)
	if err != nil {
		return nil, err
	}

	perPage := make([][]Result, len(kept))
	process := func(slot int) error {
		results, err := p.processPage(kept[slot])
		if err != nil {
			return err
		}
		perPage[slot] = results
		return nil
	}

	if p.opts.Workers <= 1 || len(kept) <= 1 {
		for slot := range kept {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := process(slot); err != nil {
				return nil, err
			}
		}
	} else if err := runParallel(ctx, len(kept), p.opts.Workers, process); err != nil {
		return nil, err
	}

	results := make([]Result, 0)
	for _, page := range perPage {
		results = append(results, page...)
	}
	return results, nil
}

// selectPages renders each page in order and applies the text-sheet and
// duplicate filters, returning the surviving pages with their images.
func (p *Pipeline) selectPages(ctx context.Context, src PageSource) ([]keptPage, error) {
	n := src.PageCount()
	filter := dedup.NewFilter(p.opts.Dedup)
	kept := make([]keptPage, 0, n)

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := src.Page(i)
		if err != nil {
			if errors.Is(err, raster.ErrDocument) {
				return nil, err
			}
			p.log.Warn("skipping unrenderable page", zap.Int("page", i), zap.Error(err))
			continue
		}

		if p.opts.Counter != nil {
			count, err := p.opts.Counter.CountChars(img)
			if err != nil {
				// A page we could not analyze is kept rather than
				// risking map content.
				p.log.Warn("text estimate failed, keeping page", zap.Int("page", i), zap.Error(err))
			} else if count > p.opts.MaxTextChars {
				p.log.Info("skipping text sheet", zap.Int("page", i), zap.Int("chars", count))
				continue
			}
		}

		decision := filter.Add(i, img)
		if decision.IsDuplicate {
			p.log.Info("skipping duplicate page",
				zap.Int("page", i),
				zap.Int("matched_against", decision.MatchedAgainst),
				zap.Int("good_matches", decision.GoodMatches))
			continue
		}

		kept = append(kept, keptPage{index: i, img: img})
	}

	p.log.Info("page selection done", zap.Int("total", n), zap.Int("kept", len(kept)))
	return kept, nil
}

// processPage detects and classifies the sign regions of one kept page.
func (p *Pipeline) processPage(page keptPage) ([]Result, error) {
	regions := p.detector.Detect(page.index, page.img)
	results := make([]Result, 0, len(regions))

	for _, region := range regions {
		pred, err := p.predictor.Predict(region.Crop)
		if err != nil {
			if errors.Is(err, classify.ErrInference) {
				p.log.Warn("skipping unclassifiable region",
					zap.Int("page", page.index),
					zap.Stringer("bounds", region.Bounds),
					zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("classifying page %d region %v: %w", page.index, region.Bounds, err)
		}

		results = append(results, Result{
			PageIndex:     page.index,
			RegionIndex:   len(results),
			Bounds:        region.Bounds,
			Subsign:       region.Subsign,
			MarginApplied: region.MarginApplied,
			Class:         pred.Class,
			Confidence:    pred.Confidence,
			Crop:          region.Crop,
		})
	}

	p.log.Debug("page processed",
		zap.Int("page", page.index),
		zap.Int("regions", len(regions)),
		zap.Int("classified", len(results)))
	return results, nil
}

// runParallel fans n jobs out over a bounded worker pool and returns the
// first job error, if any. Jobs write to disjoint slots, so no result
// synchronization is needed beyond the pool itself.
func runParallel(ctx context.Context, n, workers int, job func(slot int) error) error {
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// After a failure the workers keep draining the channel so
			// the producer never blocks.
			for slot := range jobs {
				if failed() {
					continue
				}
				if err := ctx.Err(); err != nil {
					setErr(err)
					continue
				}
				if err := job(slot); err != nil {
					setErr(err)
				}
			}
		}()
	}

	for slot := 0; slot < n; slot++ {
		jobs <- slot
	}
	close(jobs)
	wg.Wait()

	return firstErr
}
