package providers

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeResultsNestedPath(t *testing.T) {
	out, recErrs, err := decodeResults[map[string]any](json.RawMessage(`{"response":{"results":[{"a":1},{"a":2}]}}`), "response", "results")
	if err != nil || len(out) != 2 || len(recErrs) != 0 {
		t.Fatalf("unexpected result %v recErrs=%v err=%v", out, recErrs, err)
	}

	if _, _, err := decodeResults[map[string]any](json.RawMessage(`{"response":"oops"}`), "response", "results"); err == nil {
		t.Fatalf("expected error when intermediate node is not an object")
	}
	if _, _, err := decodeResults[map[string]any](json.RawMessage(`{"results":"text"}`), "results"); err == nil {
		t.Fatalf("expected error for string results")
	}
	if _, _, err := decodeResults[map[string]any](json.RawMessage(`{"results":null}`), "results"); err == nil {
		t.Fatalf("expected error for null results")
	}
}

type decodeItem struct {
	Title  string `json:"title"`
	Count  int    `json:"count"`
	Nested struct {
		Name string `json:"name"`
	} `json:"nested"`
}

func TestDecodeResultsKeepsSiblingsOfMalformedRecord(t *testing.T) {
	payload := json.RawMessage(`{"items":[
		{"title":"good","count":1},
		{"title":"bad types","count":"many","nested":[]},
		42,
		{"title":"also good","nested":{"name":"n"}}
	]}`)

	out, recErrs, err := decodeResults[decodeItem](payload, "items")
	if err != nil {
		t.Fatalf("decodeResults: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d: %#v", len(out), out)
	}
	if out[1].Title != "bad types" || out[1].Count != 0 || out[1].Nested.Name != "" {
		t.Fatalf("malformed fields should fall back to zero values: %#v", out[1])
	}
	if out[2].Nested.Name != "n" {
		t.Fatalf("unexpected sibling %#v", out[2])
	}
	if len(recErrs) != 2 {
		t.Fatalf("expected 2 record errors, got %v", recErrs)
	}
}

func TestWarnRecordsLogsOnce(t *testing.T) {
	log := &recordingLogger{}
	warnRecords(log, "newsapi", nil)
	if log.count("warn") != 0 {
		t.Fatalf("no errors should log nothing")
	}
	warnRecords(log, "newsapi", []error{json.Unmarshal([]byte("x"), new(int))})
	if log.count("warn") != 1 {
		t.Fatalf("expected one warning")
	}
}

func TestParseTimestamp(t *testing.T) {
	now := fixedClock()
	cases := map[string]time.Time{
		"2025-01-02T03:04:05Z":      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"2025-01-02T03:04:05+0000":  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"2025-01-02T08:34:05+05:30": time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"":                          now,
		"yesterday-ish":             now,
	}
	for raw, want := range cases {
		if got := parseTimestamp(raw, now); !got.Equal(want) {
			t.Fatalf("parseTimestamp(%q) = %v, want %v", raw, got, want)
		}
	}
}
