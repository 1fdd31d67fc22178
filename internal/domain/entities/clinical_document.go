package entities

// ClinicalDocument is a PDF discovered in a patient's storage namespace.
// It is derived from a storage listing on every request and never persisted.
type ClinicalDocument struct {
	StoragePath string `json:"storagePath"`
	Name        string `json:"name"`
	CreatedAt   string `json:"createdAt"`
}

// ExtractionMode tags how document text was obtained.
type ExtractionMode string

const (
	ExtractionModeDigital    ExtractionMode = "digital"
	ExtractionModeOCR        ExtractionMode = "ocr"
	ExtractionModeUnreadable ExtractionMode = "unreadable"
	ExtractionModeOCRError   ExtractionMode = "ocr-error"
)

// ExtractedText is plain document text plus the mode that produced it.
type ExtractedText struct {
	Text string
	Mode ExtractionMode
}
