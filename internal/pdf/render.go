package pdf

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"
	"github.com/ledongthuc/pdf"
)

// Letter-size fallback when a page declares no MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
	pointsPerInch     = 72.0
)

// glyphWidthFactor approximates a glyph's advance when the font carries no widths.
const glyphWidthFactor = 0.5

// RenderFirstPage rasterises the layout of page 1 at the given DPI: text
// runs are painted as filled glyph boxes and path rectangles as filled
// areas on a white background. The result depends only on page geometry,
// so it is stable under recompression of the file.
func (d *Document) RenderFirstPage(dpi float64) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rendering %s: %v", d.path, r)
		}
	}()

	if d.reader.NumPage() < 1 {
		return nil, fmt.Errorf("rendering %s: no pages", d.path)
	}
	page := d.reader.Page(1)
	if page.V.IsNull() {
		return nil, fmt.Errorf("rendering %s: page 1 is empty", d.path)
	}

	width, height := mediaBox(page)
	scale := dpi / pointsPerInch
	dc := gg.NewContext(int(math.Ceil(width*scale)), int(math.Ceil(height*scale)))
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)

	content := page.Content()
	for _, r := range content.Rect {
		x := math.Min(r.Min.X, r.Max.X)
		y := math.Max(r.Min.Y, r.Max.Y)
		w := math.Abs(r.Max.X - r.Min.X)
		h := math.Abs(r.Max.Y - r.Min.Y)
		dc.DrawRectangle(x*scale, (height-y)*scale, w*scale, h*scale)
		dc.Fill()
	}
	for _, t := range content.Text {
		size := t.FontSize
		if size <= 0 {
			continue
		}
		w := t.W
		if w <= 0 {
			w = size * glyphWidthFactor * float64(len([]rune(t.S)))
		}
		// PDF y is the baseline; the box extends one em upward.
		dc.DrawRectangle(t.X*scale, (height-t.Y-size)*scale, w*scale, size*scale)
		dc.Fill()
	}

	return dc.Image(), nil
}

// RenderFirstPage opens the PDF at path and renders its first page.
func RenderFirstPage(path string, dpi float64) (image.Image, error) {
	doc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.RenderFirstPage(dpi)
}

// mediaBox returns the page size in points, looking at the page and then
// its parent node.
func mediaBox(page pdf.Page) (width, height float64) {
	box := page.V.Key("MediaBox")
	if box.IsNull() {
		box = page.V.Key("Parent").Key("MediaBox")
	}
	if box.IsNull() || box.Len() != 4 {
		return defaultPageWidth, defaultPageHeight
	}
	width = box.Index(2).Float64() - box.Index(0).Float64()
	height = box.Index(3).Float64() - box.Index(1).Float64()
	if width <= 0 || height <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return width, height
}
