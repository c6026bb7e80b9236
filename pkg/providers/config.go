package providers

import (
	"strings"
	"time"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 50
	DefaultLanguage = "en"
)

// ProviderConfig holds per-provider connection settings. The zero value is invalid.
type ProviderConfig struct {
	apiKey   string
	baseURL  string
	timeout  time.Duration
	pageSize int
	language string
}

// NewProviderConfig applies defaults for zero timeout, page size and language.
func NewProviderConfig(apiKey, baseURL string, timeout time.Duration, pageSize int, language string) ProviderConfig {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultLanguage
	}
	return ProviderConfig{
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout:  timeout,
		pageSize: pageSize,
		language: language,
	}
}

func (c ProviderConfig) APIKey() string         { return c.apiKey }
func (c ProviderConfig) BaseURL() string        { return c.baseURL }
func (c ProviderConfig) Timeout() time.Duration { return c.timeout }
func (c ProviderConfig) PageSize() int          { return c.pageSize }
func (c ProviderConfig) Language() string       { return c.language }

// IsValid reports whether both the API key and base URL are present.
func (c ProviderConfig) IsValid() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// Endpoint joins the base URL and a path.
func (c ProviderConfig) Endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
