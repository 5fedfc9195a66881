// Package raster renders PDF pages into in-memory images.
//
// Rendering goes through MuPDF (go-fitz). Pages are rendered lazily and by
// index, so the page sequence is restartable: any page can be rendered any
// number of times at the configured resolution. Nothing is written to disk.
package raster

import (
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// ErrDocument marks fatal document failures: the file is missing, not a
// valid PDF, or encrypted. A run cannot proceed past this.
var ErrDocument = errors.New("document read error")

// DefaultDPI is the rasterization resolution used when none is configured.
// Plan drawings need high resolution for the sign borders to survive
// thresholding.
const DefaultDPI = 300

// Document is an open PDF rendered at a fixed resolution. Pages are
// 1-based, matching the source PDF page order.
//
// A Document must be closed after use. Page rendering is not safe for
// concurrent use; the pipeline renders pages sequentially.
type Document struct {
	path string
	dpi  float64
	doc  *fitz.Document
}

// Open opens a PDF for rendering at the given resolution. dpi <= 0 falls
// back to DefaultDPI. Failures wrap ErrDocument with the offending path.
func Open(path string, dpi float64) (*Document, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocument, path, err)
	}
	return &Document{path: path, dpi: dpi, doc: doc}, nil
}

// Path returns the source file path.
func (d *Document) Path() string { return d.path }

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int { return d.doc.NumPage() }

// Page renders the page with the given 1-based index. An index outside
// [1, PageCount] is a caller bug and returns a plain error; a render
// failure on a valid index is page-recoverable for the caller.
func (d *Document) Page(index int) (image.Image, error) {
	if index < 1 || index > d.PageCount() {
		return nil, fmt.Errorf("page index %d out of range [1, %d]", index, d.PageCount())
	}
	img, err := d.doc.ImageDPI(index-1, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("rendering page %d of %s: %w", index, d.path, err)
	}
	return img, nil
}

// Close releases the underlying MuPDF document.
func (d *Document) Close() error {
	return d.doc.Close()
}
