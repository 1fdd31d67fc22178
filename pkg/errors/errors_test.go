package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternalError("Failed to persist AI insight", cause)

	assert.Equal(t, "INTERNAL: Failed to persist AI insight: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", NewExtractionError("OCR engine failed while processing PDF"))

	assert.True(t, IsType(wrapped, ErrorTypeExtraction))
	assert.False(t, IsType(wrapped, ErrorTypeNotFound))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeInternal))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "No PDF found for this patient in storage bucket",
		Message(fmt.Errorf("wrap: %w", NewNotFoundError("No PDF found for this patient in storage bucket"))))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
