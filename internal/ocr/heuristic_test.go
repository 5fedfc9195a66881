//go:build !tesseract

package ocr

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// blankPage creates a uniform white page
func blankPage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

// textPage fills a page with repeated lines of rendered text
func textPage(width, height int) *image.RGBA {
	img := blankPage(width, height)
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	line := "Arbeidsvarslingsplan skilt oversikt side innhold"
	for y := 16; y < height-16; y += 16 {
		drawer.Dot = fixed.P(8, y)
		drawer.DrawString(line)
	}
	return img
}

func TestCountChars_BlankPage(t *testing.T) {
	count, err := NewCounter().CountChars(blankPage(400, 400))
	if err != nil {
		t.Fatalf("CountChars failed: %v", err)
	}
	if count != 0 {
		t.Errorf("blank page estimated %d chars, want 0", count)
	}
}

func TestCountChars_TextSheetOutweighsBlank(t *testing.T) {
	counter := NewCounter()

	textCount, err := counter.CountChars(textPage(400, 400))
	if err != nil {
		t.Fatalf("CountChars failed: %v", err)
	}
	if textCount == 0 {
		t.Fatal("text-dense page estimated 0 chars")
	}

	sparse := blankPage(400, 400)
	// A couple of thin map lines only
	for x := 0; x < 400; x++ {
		sparse.Set(x, 200, color.Black)
	}
	sparseCount, err := counter.CountChars(sparse)
	if err != nil {
		t.Fatal(err)
	}
	if sparseCount >= textCount {
		t.Errorf("sparse linework (%d) should estimate fewer chars than a text sheet (%d)",
			sparseCount, textCount)
	}
}

func TestCountChars_Deterministic(t *testing.T) {
	counter := NewCounter()
	page := textPage(300, 300)

	a, err := counter.CountChars(page)
	if err != nil {
		t.Fatal(err)
	}
	b, err := counter.CountChars(page)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("repeated estimates differ: %d vs %d", a, b)
	}
}
