package report

import (
	"encoding/csv"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apvscan/apvscan/internal/pipeline"
)

func sampleCrop() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 200, A: 255})
		}
	}
	return img
}

func sampleResults() []pipeline.Result {
	return []pipeline.Result{
		{PageIndex: 1, RegionIndex: 0, Class: "110", Confidence: 0.974, Crop: sampleCrop()},
		{PageIndex: 1, RegionIndex: 1, Class: "362_50", Confidence: 0.5, Crop: sampleCrop()},
		{PageIndex: 3, RegionIndex: 0, Class: "142", Confidence: 0.83333, Crop: sampleCrop()},
	}
}

func TestCropFilename(t *testing.T) {
	name := CropFilename(pipeline.Result{PageIndex: 12, RegionIndex: 4})
	assert.Equal(t, "page_12_sign_004.png", name)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "predictions.csv")
	require.NoError(t, WriteCSV(path, sampleResults()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"filename", "predicted_class", "confidence"}, rows[0])
	assert.Equal(t, []string{"page_1_sign_000.png", "110", "0.974"}, rows[1])
	assert.Equal(t, []string{"page_1_sign_001.png", "362_50", "0.500"}, rows[2])
	assert.Equal(t, []string{"page_3_sign_000.png", "142", "0.833"}, rows[3])
}

func TestWriteCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	require.NoError(t, WriteCSV(path, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1) // header only
}

func TestSaveCrops(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crops")
	results := sampleResults()
	results = append(results, pipeline.Result{PageIndex: 4, RegionIndex: 0}) // no crop

	require.NoError(t, SaveCrops(dir, results))

	for _, r := range results[:3] {
		f, err := os.Open(filepath.Join(dir, CropFilename(r)))
		require.NoError(t, err)
		img, _, err := image.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	}

	_, err := os.Stat(filepath.Join(dir, "page_4_sign_000.png"))
	assert.True(t, os.IsNotExist(err))
}
