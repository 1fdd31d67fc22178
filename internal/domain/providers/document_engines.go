package providers

import "context"

// PDFDocument is an opened PDF.
type PDFDocument interface {
	NumPage() int
	// Text returns the native text layer of a page.
	Text(page int) (string, error)
	// RenderPNG rasterizes a page at the given resolution.
	RenderPNG(page int, dpi float64) ([]byte, error)
	Close() error
}

// PDFEngine opens PDF byte streams.
type PDFEngine interface {
	Open(data []byte) (PDFDocument, error)
}

// OCREngine recognizes text in a rendered page image.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte, language string) (string, error)
}
