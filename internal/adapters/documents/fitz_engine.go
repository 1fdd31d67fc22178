package documents

import (
	"github.com/gen2brain/go-fitz"

	"github.com/careconnect/backend/internal/domain/providers"
)

// FitzEngine opens PDFs with MuPDF.
type FitzEngine struct{}

// NewFitzEngine returns the MuPDF-backed PDF engine.
func NewFitzEngine() *FitzEngine {
	return &FitzEngine{}
}

func (FitzEngine) Open(data []byte) (providers.PDFDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPage() int { return d.doc.NumPage() }

func (d *fitzDocument) Text(page int) (string, error) { return d.doc.Text(page) }

func (d *fitzDocument) RenderPNG(page int, dpi float64) ([]byte, error) {
	return d.doc.ImagePNG(page, dpi)
}

func (d *fitzDocument) Close() error { return d.doc.Close() }
