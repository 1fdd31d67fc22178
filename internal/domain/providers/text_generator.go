package providers

import (
	"context"
	"errors"
)

// ErrTextGenerationUnauthorized indicates the endpoint rejected the credential.
var ErrTextGenerationUnauthorized = errors.New("text generation unauthorized")

// GenerationParams controls a single generation request.
type GenerationParams struct {
	MaxNewTokens int
	Temperature  float64
}

// TextGenerator sends a prompt to a remote text-generation endpoint.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
