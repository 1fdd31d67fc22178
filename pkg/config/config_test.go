package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HF_API_TOKEN", "")
	t.Setenv("SUPABASE_PDF_BUCKET", "")
	t.Setenv("OCR_LANGUAGE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "patient-documents", cfg.Storage.Bucket)
	assert.Equal(t, "{patient_id}", cfg.Storage.PathTemplate)
	assert.Equal(t, 100, cfg.Storage.ListLimit)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Equal(t, float64(300), cfg.OCR.DPI)
	assert.Equal(t, 4000, cfg.Insights.MaxInputChars)
	assert.Equal(t, 800, cfg.Insights.ExcerptChars)
	assert.Equal(t, 256, cfg.Inference.MaxNewTokens)
	assert.Equal(t, 60*time.Second, cfg.Inference.Timeout)
	assert.Empty(t, cfg.Inference.APIToken)
	assert.Equal(t, 10*time.Minute, cfg.Redis.WarmInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SUPABASE_PDF_BUCKET", "scans")
	t.Setenv("SUPABASE_PDF_PATH_TEMPLATE", "patients/{patient_id}/docs")
	t.Setenv("TESSERACT_CMD", "/opt/tesseract/bin/tesseract")
	t.Setenv("HF_TIMEOUT_SECONDS", "15")
	t.Setenv("HF_TEMPERATURE", "0.05")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "scans", cfg.Storage.Bucket)
	assert.Equal(t, "patients/{patient_id}/docs", cfg.Storage.PathTemplate)
	assert.Equal(t, "/opt/tesseract/bin/tesseract", cfg.OCR.TesseractPath)
	assert.Equal(t, 15*time.Second, cfg.Inference.Timeout)
	assert.InDelta(t, 0.05, cfg.Inference.Temperature, 1e-9)
}

func TestLoad_RejectsNonPositiveInputCap(t *testing.T) {
	t.Setenv("INSIGHT_MAX_INPUT_CHARS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestStorageConfig_Enabled(t *testing.T) {
	assert.False(t, (&StorageConfig{URL: "https://x.supabase.co"}).Enabled())
	assert.True(t, (&StorageConfig{URL: "https://x.supabase.co", APIKey: "k"}).Enabled())
	assert.Equal(t, "https://x.supabase.co/storage/v1", (&StorageConfig{URL: "https://x.supabase.co"}).StorageEndpoint())
}

func TestLoad_Alerts(t *testing.T) {
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "token")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "1234")
	t.Setenv("RISK_ALERT_RECIPIENTS", " 2348000000001, ,2348000000002 ")
	t.Setenv("RISK_ALERT_MIN_SCORE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"2348000000001", "2348000000002"}, cfg.Alerts.Recipients)
	assert.Equal(t, 80, cfg.Alerts.MinScore)
	assert.True(t, cfg.Alerts.Enabled())

	t.Setenv("RISK_ALERT_MIN_SCORE", "101")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadWithSecrets_VaultDisabled(t *testing.T) {
	t.Setenv("VAULT_ENABLED", "false")

	calls := 0
	orig := loadDotEnv
	loadDotEnv = func() error {
		calls++
		return nil
	}
	defer func() { loadDotEnv = orig }()

	cfg, result, err := LoadWithSecrets(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.False(t, result.Enabled)
	assert.Equal(t, 1, calls, ".env is read once")

	_, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
