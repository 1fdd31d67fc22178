// Package secrets loads deployment secrets (database password, storage key,
// model token) from a HashiCorp Vault KV mount into the process environment
// before configuration is read.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// VaultConfig describes where the KV secret lives.
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	// Overwrite replaces variables that are already set in the environment.
	Overwrite bool
}

// Result reports what an Apply call did.
type Result struct {
	Enabled bool
	Path    string
	Loaded  []string
	Skipped []string
}

// ConfigFromEnv reads VAULT_* variables.
func ConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     os.Getenv("VAULT_MOUNT"),
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = v
	}
	if ms, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// Loader fetches one KV secret.
type Loader struct {
	cfg        VaultConfig
	httpClient *http.Client
	setenv     func(key, value string) error
	lookupEnv  func(key string) (string, bool)
}

// NewLoader creates a loader that writes into the process environment.
func NewLoader(cfg VaultConfig) *Loader {
	return &Loader{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		setenv:     os.Setenv,
		lookupEnv:  os.LookupEnv,
	}
}

// Fetch returns the key/value pairs stored at the configured path.
func (l *Loader) Fetch(ctx context.Context) (map[string]string, error) {
	if l.cfg.Addr == "" || l.cfg.Token == "" || l.cfg.Path == "" {
		return nil, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	url, err := secretURL(l.cfg.Addr, l.cfg.Mount, l.cfg.Path, l.cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", l.cfg.Token)
	if l.cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", l.cfg.Namespace)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode vault response: %w", err)
	}

	data := payload.Data
	if l.cfg.KVVersion != 1 {
		inner, ok := data["data"]
		if !ok {
			return nil, errors.New("vault response missing data for KV v2")
		}
		data = nil
		if err := json.Unmarshal(inner, &data); err != nil {
			return nil, fmt.Errorf("decode vault KV v2 data: %w", err)
		}
	}
	if data == nil {
		return nil, errors.New("vault response has no data")
	}

	out := make(map[string]string, len(data))
	for key, raw := range data {
		out[key] = stringify(raw)
	}
	return out, nil
}

// Apply fetches the secret and exports each pair as an environment variable.
// It is a no-op when Vault is disabled.
func (l *Loader) Apply(ctx context.Context) (Result, error) {
	result := Result{Enabled: l.cfg.Enabled, Path: l.cfg.Path}
	if !l.cfg.Enabled {
		return result, nil
	}

	values, err := l.Fetch(ctx)
	if err != nil {
		return result, err
	}

	for key, value := range values {
		if current, ok := l.lookupEnv(key); ok && current != "" && !l.cfg.Overwrite {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		if err := l.setenv(key, value); err != nil {
			return result, fmt.Errorf("set %s: %w", key, err)
		}
		result.Loaded = append(result.Loaded, key)
	}
	return result, nil
}

func secretURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

// stringify renders a JSON value as an environment string. Strings are
// unquoted; everything else keeps its JSON form.
func stringify(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
