package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	untitled      = "Untitled"
	unknownAuthor = "Unknown"
)

// decodeResults extracts the array under path from payload and decodes each
// record on its own. It fails only when the field is missing, null or not an
// array. A record whose fields have unexpected types keeps the fields that do
// decode; a record that is not an object is skipped. Both are reported in
// recordErrs so the caller can warn without losing the sibling records.
func decodeResults[T any](payload json.RawMessage, path ...string) (items []T, recordErrs []error, err error) {
	cur := payload
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil, nil, fmt.Errorf("decode %q envelope: %w", key, err)
		}
		next, ok := obj[key]
		if !ok {
			return nil, nil, fmt.Errorf("missing %q in response", key)
		}
		cur = next
	}

	trimmed := bytes.TrimSpace(cur)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil, fmt.Errorf("%q is not an array", strings.Join(path, "."))
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode %q items: %w", strings.Join(path, "."), err)
	}

	items = make([]T, 0, len(raws))
	for i, raw := range raws {
		item, ok, err := decodeRecord[T](raw)
		if err != nil {
			recordErrs = append(recordErrs, fmt.Errorf("record %d: %w", i, err))
		}
		if ok {
			items = append(items, item)
		}
	}
	return items, recordErrs, nil
}

// decodeRecord decodes raw into T. On a type mismatch it retries with only the
// top-level fields that decode cleanly, so bad fields fall back to zero values.
func decodeRecord[T any](raw json.RawMessage) (T, bool, error) {
	var item T
	err := json.Unmarshal(raw, &item)
	if err == nil {
		return item, true, nil
	}

	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return item, false, err
	}
	kept := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		single, mErr := json.Marshal(map[string]json.RawMessage{k: v})
		if mErr != nil {
			continue
		}
		var trial T
		if json.Unmarshal(single, &trial) == nil {
			kept[k] = v
		}
	}
	filtered, mErr := json.Marshal(kept)
	if mErr != nil {
		return item, false, err
	}
	var lenient T
	if json.Unmarshal(filtered, &lenient) != nil {
		return item, false, err
	}
	return lenient, true, err
}

// warnRecords reports per-record decode problems without failing the page.
func warnRecords(log Logger, providerID string, errs []error) {
	if len(errs) == 0 {
		return
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	log.WarnObj("provider returned malformed records", "provider", logFields(providerID, map[string]any{
		"count":  len(errs),
		"errors": msgs,
	}))
}

// parseTimestamp parses any common date layout, falling back to now.
func parseTimestamp(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return now
	}
	return t.UTC()
}

// orDefault returns s trimmed, or fallback when s is blank.
func orDefault(s, fallback string) string {
	if v := strings.TrimSpace(s); v != "" {
		return v
	}
	return fallback
}

func defaultPage(p int) int {
	if p <= 0 {
		return 1
	}
	return p
}

// logFields builds the common structured payload for provider log lines.
func logFields(providerID string, extra map[string]any) map[string]any {
	out := map[string]any{"provider": providerID}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
