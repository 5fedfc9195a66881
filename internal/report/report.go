// Package report writes the scan results: the prediction CSV and,
// optionally, the cropped sign images the rows refer to.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/apvscan/apvscan/internal/pipeline"
)

// CropFilename returns the stable filename of a result's crop. CSV rows
// and saved crop files use the same name, so rows can be traced back to
// images.
func CropFilename(r pipeline.Result) string {
	return fmt.Sprintf("page_%d_sign_%03d.png", r.PageIndex, r.RegionIndex)
}

// WriteCSV writes one row per classified region, in result order, with a
// filename/predicted_class/confidence header. Confidence is rounded to
// three decimals.
func WriteCSV(path string, results []pipeline.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	_ = w.Write([]string{"filename", "predicted_class", "confidence"})
	for _, r := range results {
		_ = w.Write([]string{CropFilename(r), r.Class, fmt.Sprintf("%.3f", r.Confidence)})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return f.Close()
}

// SaveCrops writes each result's crop as a PNG into dir, creating it if
// needed. Results without a crop image are skipped.
func SaveCrops(dir string, results []pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating crop directory: %w", err)
	}

	for _, r := range results {
		if r.Crop == nil {
			continue
		}
		path := filepath.Join(dir, CropFilename(r))
		if err := imaging.Save(r.Crop, path); err != nil {
			return fmt.Errorf("saving crop %s: %w", path, err)
		}
	}
	return nil
}
