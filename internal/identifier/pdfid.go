package identifier

import (
	"encoding/hex"
	"image"
	"os"

	"golang.org/x/image/draw"

	"github.com/matsen/litreview/internal/pdf"
)

// PDFIDPrefix starts every generated colrev_pdf_id.
const PDFIDPrefix = "cpid2:"

// PDFRenderDPI is the resolution of the first-page render that gets hashed.
const PDFRenderDPI = 200

// hashSide is the edge of the average-hash grid; the hash has hashSide² bits.
// A 16×16 grid gives the 256-bit hash that renders as the 64 hex digits of a
// cpid2 identifier.
const hashSide = 16

// PDFID computes the perceptual colrev_pdf_id of the PDF at path.
func PDFID(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &PDFError{Path: path, Err: ErrInvalidPDF, Msg: err.Error()}
	}
	if info.Size() == 0 {
		return "", &PDFError{Path: path, Err: ErrInvalidPDF, Msg: "zero size"}
	}

	doc, err := pdf.Open(path)
	if err != nil {
		return "", &PDFError{Path: path, Err: ErrInvalidPDF, Msg: err.Error()}
	}
	defer doc.Close()

	img, err := doc.RenderFirstPage(PDFRenderDPI)
	if err != nil {
		return "", &PDFError{Path: path, Err: ErrPDFHash, Msg: err.Error()}
	}

	sum := AverageHash(img)
	if isZero(sum) {
		return "", &PDFError{Path: path, Err: ErrPDFHash, Msg: "empty first page"}
	}
	return PDFIDPrefix + hex.EncodeToString(sum), nil
}

// AverageHash downsamples img to a 16x16 grayscale grid and sets one bit
// per cell that is brighter than the grid mean. Bits are packed row-major,
// most significant first.
func AverageHash(img image.Image) []byte {
	gray := image.NewGray(image.Rect(0, 0, hashSide, hashSide))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	var total int
	for _, p := range gray.Pix {
		total += int(p)
	}
	mean := total / len(gray.Pix)

	sum := make([]byte, hashSide*hashSide/8)
	for i, p := range gray.Pix {
		if int(p) > mean {
			sum[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return sum
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
