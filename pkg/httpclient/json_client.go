package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const maxSnippet = 500

// Query renders a URL query string.
type Query interface {
	Encode() string
}

// JSONClient performs GET requests that are expected to return JSON.
// Failures are logged and reported as ok=false, never as errors.
type JSONClient struct {
	client  Client
	log     Logger
	headers map[string]string
}

// NewJSONClient wraps a transport. A nil client gets a resty client with a 30s ceiling.
func NewJSONClient(client Client, log Logger) *JSONClient {
	if client == nil {
		client = NewRestyClient(30 * time.Second)
	}
	return &JSONClient{
		client: client,
		log:    EnsureLogger(log),
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "samvad-news-ingest/1.0",
		},
	}
}

// GetJSON fetches endpoint with the encoded query appended.
func (c *JSONClient) GetJSON(ctx context.Context, endpoint string, query Query, timeout time.Duration) (payload json.RawMessage, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.ErrorObj("http request panicked", "request", map[string]any{
				"url":   endpoint,
				"panic": fmt.Sprint(r),
			})
			payload, ok = nil, false
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	full := endpoint
	if query != nil {
		if qs := query.Encode(); qs != "" {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			full = endpoint + sep + qs
		}
	}

	resp, err := c.client.Get(ctx, full, c.headers)
	if err != nil {
		c.log.ErrorObj("http request failed", "request", map[string]any{
			"url":   redactURL(full),
			"error": redactError(err, full),
		})
		return nil, false
	}

	body := bytes.TrimSpace(resp.Body())
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		c.log.ErrorObj("http request failed", "request", map[string]any{
			"url":    redactURL(full),
			"status": status,
			"body":   Snippet(body),
		})
		return nil, false
	}

	if len(body) == 0 {
		return json.RawMessage("{}"), true
	}
	if !json.Valid(body) {
		c.log.ErrorObj("http response is not valid json", "request", map[string]any{
			"url":    redactURL(full),
			"status": status,
			"body":   Snippet(body),
		})
		return nil, false
	}

	return json.RawMessage(body), true
}

// Snippet trims body to at most 500 characters for logging.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty>"
	}
	r := []rune(s)
	if len(r) > maxSnippet {
		return string(r[:maxSnippet]) + "..."
	}
	return s
}

// redactURL drops the query string, which carries API keys.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// redactError removes the full request URL from transport errors.
func redactError(err error, full string) string {
	msg := err.Error()
	if full == "" {
		return msg
	}
	return strings.ReplaceAll(msg, full, redactURL(full))
}
