//go:build tesseract

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"unicode"

	"github.com/otiai10/gosseract/v2"
)

// NewCounter returns the Tesseract-backed character counter. Requires a
// system Tesseract installation with language data.
func NewCounter() CharCounter {
	return &tesseractCounter{language: "eng"}
}

type tesseractCounter struct {
	language string
}

// CountChars runs OCR over the page and counts the non-whitespace runes of
// the recognized text.
func (t *tesseractCounter) CountChars(img image.Image) (int, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, fmt.Errorf("encoding page for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return 0, fmt.Errorf("setting OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("setting OCR image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return 0, fmt.Errorf("OCR failed: %w", err)
	}

	count := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count, nil
}
