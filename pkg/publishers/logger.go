package publishers

import "github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"

// Logger aliases the shared logging surface.
type Logger = httpclient.Logger

func ensureLogger(log Logger) Logger {
	return httpclient.EnsureLogger(log)
}
