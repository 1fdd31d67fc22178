package documents

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/careconnect/backend/internal/domain/providers"
)

// NewOCREngine picks the tesseract CLI when a binary path is configured and
// the linked libtesseract otherwise.
func NewOCREngine(tesseractPath string) providers.OCREngine {
	if tesseractPath != "" {
		return &TesseractCLI{Path: tesseractPath}
	}
	return &GosseractEngine{}
}

// GosseractEngine runs OCR in-process through libtesseract. A client is
// created per call since gosseract clients are not safe for concurrent use.
type GosseractEngine struct{}

func (GosseractEngine) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(splitLanguages(language)...); err != nil {
		return "", fmt.Errorf("set OCR language %q: %w", language, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load page image: %w", err)
	}
	return client.Text()
}

// TesseractCLI shells out to a tesseract binary, feeding the page on stdin.
type TesseractCLI struct {
	Path string
}

func (t *TesseractCLI) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Path, "stdin", "stdout", "-l", language)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// splitLanguages turns "eng+fra" into the list gosseract expects.
func splitLanguages(language string) []string {
	var langs []string
	for _, l := range strings.Split(language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		return []string{"eng"}
	}
	return langs
}
