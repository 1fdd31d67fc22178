package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/careconnect/backend/pkg/secrets"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Inference InferenceConfig
	OCR       OCRConfig
	Insights  InsightsConfig
	OTEL      OTELConfig
	Alerts    AlertsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	PatientCacheTTL int
	WarmInterval    time.Duration
}

// StorageConfig holds object storage configuration for patient documents
type StorageConfig struct {
	URL          string
	APIKey       string
	Bucket       string
	PathTemplate string
	ListLimit    int
}

// InferenceConfig holds the remote text-generation endpoint configuration
type InferenceConfig struct {
	URL            string
	APIToken       string
	MaxNewTokens   int
	Temperature    float64
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// OCRConfig holds OCR engine configuration
type OCRConfig struct {
	Language      string
	TesseractPath string
	DPI           float64
}

// InsightsConfig holds pipeline limits
type InsightsConfig struct {
	MaxInputChars int
	ExcerptChars  int
	DefaultLimit  int
	LatestLimit   int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// AlertsConfig holds high-risk WhatsApp alert configuration
type AlertsConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	Recipients    []string
	MinScore      int
}

// Enabled reports whether alerts can be delivered.
func (c *AlertsConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != "" && len(c.Recipients) > 0
}

// LoadWithSecrets reads the .env file, exports Vault secrets into the
// environment when VAULT_ENABLED is set, then loads configuration.
func LoadWithSecrets(ctx context.Context) (*Config, secrets.Result, error) {
	_ = loadDotEnv()

	result, err := secrets.NewLoader(secrets.ConfigFromEnv()).Apply(ctx)
	if err != nil {
		return nil, result, fmt.Errorf("failed to load vault secrets: %w", err)
	}

	cfg, err := fromEnv()
	return cfg, result, err
}

// loadDotEnv is swapped in tests.
var loadDotEnv = func() error { return godotenv.Load() }

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	_ = loadDotEnv()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 5000),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		Redis: RedisConfig{
			Host:            getEnv("REDIS_HOST", "localhost"),
			Port:            getEnvAsInt("REDIS_PORT", 6379),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getEnvAsInt("REDIS_DB", 0),
			PatientCacheTTL: getEnvAsInt("PATIENT_CACHE_TTL_SECONDS", 300),
			WarmInterval:    time.Duration(getEnvAsInt("CACHE_WARM_INTERVAL_SECONDS", 600)) * time.Second,
		},
		Storage: StorageConfig{
			URL:          getEnv("SUPABASE_URL", ""),
			APIKey:       getEnv("SUPABASE_SERVICE_KEY", getEnv("SUPABASE_ANON_KEY", "")),
			Bucket:       getEnv("SUPABASE_PDF_BUCKET", "patient-documents"),
			PathTemplate: getEnv("SUPABASE_PDF_PATH_TEMPLATE", "{patient_id}"),
			ListLimit:    getEnvAsInt("STORAGE_LIST_LIMIT", 100),
		},
		Inference: InferenceConfig{
			URL:            getEnv("HF_INFERENCE_URL", "https://api-inference.huggingface.co/models/google/flan-t5-small"),
			APIToken:       getEnv("HF_API_TOKEN", ""),
			MaxNewTokens:   getEnvAsInt("HF_MAX_NEW_TOKENS", 256),
			Temperature:    getEnvAsFloat("HF_TEMPERATURE", 0.2),
			Timeout:        time.Duration(getEnvAsInt("HF_TIMEOUT_SECONDS", 60)) * time.Second,
			RateLimitRPS:   getEnvAsFloat("HF_RATE_LIMIT_RPS", 1),
			RateLimitBurst: getEnvAsInt("HF_RATE_LIMIT_BURST", 5),
		},
		OCR: OCRConfig{
			Language:      getEnv("OCR_LANGUAGE", "eng"),
			TesseractPath: getEnv("TESSERACT_CMD", ""),
			DPI:           getEnvAsFloat("OCR_DPI", 300),
		},
		Insights: InsightsConfig{
			MaxInputChars: getEnvAsInt("INSIGHT_MAX_INPUT_CHARS", 4000),
			ExcerptChars:  getEnvAsInt("INSIGHT_EXCERPT_CHARS", 800),
			DefaultLimit:  getEnvAsInt("INSIGHT_DEFAULT_LIMIT", 5),
			LatestLimit:   getEnvAsInt("INSIGHT_LATEST_LIMIT", 100),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "careconnect-insights"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Alerts: AlertsConfig{
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			APIVersion:    getEnv("WHATSAPP_API_VERSION", "v20.0"),
			Recipients:    getEnvAsList("RISK_ALERT_RECIPIENTS"),
			MinScore:      getEnvAsInt("RISK_ALERT_MIN_SCORE", 80),
		},
	}

	if cfg.Insights.MaxInputChars <= 0 {
		return nil, fmt.Errorf("INSIGHT_MAX_INPUT_CHARS must be positive, got %d", cfg.Insights.MaxInputChars)
	}
	if cfg.Alerts.MinScore < 0 || cfg.Alerts.MinScore > 100 {
		return nil, fmt.Errorf("RISK_ALERT_MIN_SCORE must be between 0 and 100, got %d", cfg.Alerts.MinScore)
	}
	if cfg.OCR.DPI <= 0 {
		return nil, fmt.Errorf("OCR_DPI must be positive, got %v", cfg.OCR.DPI)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a storage endpoint is configured
func (c *StorageConfig) Enabled() bool {
	return c.URL != "" && c.APIKey != ""
}

// StorageEndpoint returns the storage REST base URL for the configured project
func (c *StorageConfig) StorageEndpoint() string {
	return c.URL + "/storage/v1"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
