package documents

import (
	"context"
	"errors"
	"strings"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/internal/infrastructure/observability"
)

// DefaultDPI is the rasterization resolution used for OCR.
const DefaultDPI = 300

var errNoOCREngine = errors.New("no OCR engine configured")

// Extractor turns PDF bytes into plain text. It prefers the native text layer
// and only rasterizes and OCRs when no page has any.
type Extractor struct {
	pdf      providers.PDFEngine
	ocr      providers.OCREngine
	language string
	dpi      float64
	metrics  *observability.Metrics
}

// NewExtractor builds an extractor. A nil OCR engine makes scanned documents
// end in ocr-error.
func NewExtractor(pdf providers.PDFEngine, ocr providers.OCREngine, language string, dpi float64, metrics *observability.Metrics) *Extractor {
	if language == "" {
		language = "eng"
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Extractor{pdf: pdf, ocr: ocr, language: language, dpi: dpi, metrics: metrics}
}

// Extract never fails; problems are reported through the returned mode.
func (e *Extractor) Extract(ctx context.Context, data []byte) entities.ExtractedText {
	result := e.extract(ctx, data)
	observability.RecordExtraction(ctx, e.metrics, string(result.Mode))
	return result
}

func (e *Extractor) extract(ctx context.Context, data []byte) entities.ExtractedText {
	logger := observability.LoggerFromContext(ctx)

	doc, err := e.pdf.Open(data)
	if err != nil {
		logger.Error().Err(err).Int("bytes", len(data)).Msg("unable to open PDF bytes")
		return entities.ExtractedText{Mode: entities.ExtractionModeUnreadable}
	}
	text, ok := nativeText(doc)
	doc.Close()
	if ok {
		return entities.ExtractedText{Text: text, Mode: entities.ExtractionModeDigital}
	}

	text, err = e.ocrDocument(ctx, data)
	if err != nil {
		logger.Error().Err(err).Str("language", e.language).Msg("OCR processing failed")
		return entities.ExtractedText{Mode: entities.ExtractionModeOCRError}
	}
	return entities.ExtractedText{Text: text, Mode: entities.ExtractionModeOCR}
}

// nativeText joins every page's text layer. ok is false when no page has any
// non-whitespace text, which is the only case that falls through to OCR.
func nativeText(doc providers.PDFDocument) (string, bool) {
	var chunks []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, text)
		}
	}
	if len(chunks) == 0 {
		return "", false
	}
	return strings.Join(chunks, "\n"), true
}

func (e *Extractor) ocrDocument(ctx context.Context, data []byte) (string, error) {
	if e.ocr == nil {
		return "", errNoOCREngine
	}

	doc, err := e.pdf.Open(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	logger := observability.LoggerFromContext(ctx)
	var chunks []string
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.RenderPNG(i, e.dpi)
		if err != nil {
			return "", err
		}
		text, err := e.ocr.Recognize(ctx, img, e.language)
		if err != nil {
			return "", err
		}
		logger.Debug().Int("page", i).Int("chars", len(text)).Msg("OCR ran for PDF page")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, text)
		}
	}
	return strings.Join(chunks, "\n"), nil
}
