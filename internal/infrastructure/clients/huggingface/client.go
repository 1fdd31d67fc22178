package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/pkg/config"
)

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

var errMissingGeneratedText = errors.New("inference response missing generated_text")

// Client calls a hosted text-generation endpoint using the Inference API
// wire format.
type Client struct {
	url        string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ providers.TextGenerator = (*Client)(nil)

// NewClient creates a client for cfg. A token is required.
func NewClient(cfg *config.InferenceConfig) (*Client, error) {
	if cfg == nil || cfg.APIToken == "" {
		return nil, errors.New("inference api token is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("inference url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		url:        cfg.URL,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}, nil
}

// newLimiter returns nil when rps is negative, which disables limiting.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps < 0 {
		return nil
	}
	if rps == 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type generationParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

type generationRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters generationParameters `json:"parameters"`
}

type generationResult struct {
	GeneratedText string `json:"generated_text"`
	Data          string `json:"data"`
	Error         string `json:"error"`
}

// Generate posts prompt and returns the raw generated text.
func (c *Client) Generate(ctx context.Context, prompt string, params providers.GenerationParams) (string, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordRequest(ctx, 0, 0, err)
			return "", err
		}
		recordRateLimitWait(ctx, time.Since(waitStart))
	}

	body, err := json.Marshal(generationRequest{
		Inputs: prompt,
		Parameters: generationParameters{
			MaxNewTokens: params.MaxNewTokens,
			Temperature:  params.Temperature,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordRequest(ctx, 0, time.Since(start), err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("inference request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		recordRequest(ctx, resp.StatusCode, time.Since(start), err)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: %v", providers.ErrTextGenerationUnauthorized, err)
		}
		return "", err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		recordRequest(ctx, resp.StatusCode, time.Since(start), err)
		return "", err
	}

	text, err := decodeGeneratedText(raw)
	recordRequest(ctx, resp.StatusCode, time.Since(start), err)
	return text, err
}

// decodeGeneratedText accepts either a list of results or a single object.
func decodeGeneratedText(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errMissingGeneratedText
	}

	var result generationResult
	if trimmed[0] == '[' {
		var results []generationResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return "", fmt.Errorf("decode inference response: %w", err)
		}
		if len(results) == 0 {
			return "", errMissingGeneratedText
		}
		result = results[0]
	} else if err := json.Unmarshal(trimmed, &result); err != nil {
		return "", fmt.Errorf("decode inference response: %w", err)
	}

	if result.Error != "" {
		return "", fmt.Errorf("inference endpoint error: %s", result.Error)
	}
	text := result.GeneratedText
	if text == "" {
		text = result.Data
	}
	if text == "" {
		return "", errMissingGeneratedText
	}
	return text, nil
}

type inferenceMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	metricsOnce sync.Once
	metrics     *inferenceMetrics
)

func ensureMetrics() *inferenceMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/careconnect/backend/huggingface")

		requestCount, err := meter.Int64Counter("ai.inference.request.count",
			metric.WithDescription("Number of text-generation requests"))
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram("ai.inference.request.duration",
			metric.WithDescription("Text-generation request duration in milliseconds"),
			metric.WithUnit("ms"))
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter("ai.inference.request.errors",
			metric.WithDescription("Number of failed text-generation requests"))
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram("ai.inference.rate_limit.wait",
			metric.WithDescription("Time spent waiting for the inference rate limiter in milliseconds"),
			metric.WithUnit("ms"))
		if err != nil {
			return
		}

		metrics = &inferenceMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			rateLimitWait:   rateLimitWait,
		}
	})
	return metrics
}

func recordRequest(ctx context.Context, statusCode int, duration time.Duration, err error) {
	m := ensureMetrics()
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("ai.provider", "huggingface")}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordRateLimitWait(ctx context.Context, wait time.Duration) {
	if m := ensureMetrics(); m != nil {
		m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()),
			metric.WithAttributes(attribute.String("ai.provider", "huggingface")))
	}
}
