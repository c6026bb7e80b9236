package providers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"
)

// fakeGetter records the last request and replays a canned payload.
type fakeGetter struct {
	payload string
	ok      bool

	mu      sync.Mutex
	calls   int
	url     string
	query   string
	timeout time.Duration
}

func (f *fakeGetter) GetJSON(_ context.Context, url string, query httpclient.Query, timeout time.Duration) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.url = url
	if query != nil {
		f.query = query.Encode()
	}
	f.timeout = timeout
	if !f.ok {
		return nil, false
	}
	return json.RawMessage(f.payload), true
}

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg})
}

func (r *recordingLogger) InfoObj(msg, _ string, _ interface{})  { r.add("info", msg) }
func (r *recordingLogger) DebugObj(msg, _ string, _ interface{}) { r.add("debug", msg) }
func (r *recordingLogger) WarnObj(msg, _ string, _ interface{})  { r.add("warn", msg) }
func (r *recordingLogger) ErrorObj(msg, _ string, _ interface{}) { r.add("error", msg) }

func (r *recordingLogger) count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

// mockHTTPClient is a transport level fake used to exercise providers through JSONClient.
type mockHTTPClient struct {
	t         *testing.T
	expectURL string
	status    int
	body      string
}

type mockResponse struct {
	body       []byte
	statusCode int
}

func (r mockResponse) Body() []byte    { return r.body }
func (r mockResponse) StatusCode() int { return r.statusCode }

func (m mockHTTPClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	if m.expectURL != "" && url != m.expectURL {
		m.t.Fatalf("expected url %q, got %q", m.expectURL, url)
	}
	if headers["Accept"] != "application/json" {
		m.t.Fatalf("expected json accept header, got %q", headers["Accept"])
	}
	status := m.status
	if status == 0 {
		status = 200
	}
	return mockResponse{body: []byte(m.body), statusCode: status}, nil
}

func fixedClock() time.Time {
	return time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
}

func validConfig(base string) ProviderConfig {
	return NewProviderConfig("test-key", base, 7*time.Second, 0, "")
}
