package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Identifiers of the built-in providers. They double as the source api_identifier.
const (
	NewsAPIID  = "newsapi"
	GuardianID = "guardian"
	NYTimesID  = "nytimes"
)

// Settings is one entry of the providers registry file.
type Settings struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Enabled        *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	APIKey         string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	PageSize       int    `json:"page_size,omitempty" yaml:"page_size,omitempty"`
	Language       string `json:"language,omitempty" yaml:"language,omitempty"`
}

type registry struct {
	Providers []Settings `json:"providers" yaml:"providers"`
}

// IsEnabled reports whether the provider should be built. Missing means enabled.
func (s Settings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Config converts the settings into the immutable provider config.
func (s Settings) Config() ProviderConfig {
	return NewProviderConfig(s.APIKey, s.BaseURL,
		time.Duration(s.TimeoutSeconds)*time.Second, s.PageSize, s.Language)
}

// DefaultSettings returns the built-in registry: one entry per known provider, without keys.
func DefaultSettings() []Settings {
	return []Settings{
		{ID: NewsAPIID, Name: "NewsAPI", BaseURL: "https://newsapi.org/v2"},
		{ID: GuardianID, Name: "The Guardian", BaseURL: "https://content.guardianapis.com"},
		{ID: NYTimesID, Name: "New York Times", BaseURL: "https://api.nytimes.com/svc"},
	}
}

// LoadSettings returns the built-in defaults overlaid with the entries in path.
// A missing file is not an error.
func LoadSettings(path string) ([]Settings, error) {
	defaults := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, fmt.Errorf("open providers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(reg.Providers))
	for i := range reg.Providers {
		s := sanitizeSettings(reg.Providers[i])
		if s.ID == "" {
			return nil, fmt.Errorf("provider[%d]: id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		reg.Providers[i] = s
	}

	return mergeSettings(defaults, reg.Providers), nil
}

func parseRegistry(data []byte, ext string) (registry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registry{}, errors.New("providers file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registry, error) {
	var reg registry
	if err := fn(data, &reg); err != nil {
		return registry{}, fmt.Errorf("decode %s providers: %w", name, err)
	}
	return reg, nil
}

func sanitizeSettings(s Settings) Settings {
	s.ID = strings.ToLower(strings.TrimSpace(s.ID))
	s.Name = strings.TrimSpace(s.Name)
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	s.Language = strings.TrimSpace(s.Language)
	return s
}

// mergeSettings overlays file entries on defaults by id. Unknown ids are appended.
func mergeSettings(base, overlay []Settings) []Settings {
	out := make([]Settings, len(base))
	copy(out, base)

	idx := make(map[string]int, len(out))
	for i, s := range out {
		idx[s.ID] = i
	}

	for _, o := range overlay {
		i, ok := idx[o.ID]
		if !ok {
			idx[o.ID] = len(out)
			out = append(out, o)
			continue
		}
		cur := out[i]
		if o.Name != "" {
			cur.Name = o.Name
		}
		if o.Enabled != nil {
			cur.Enabled = o.Enabled
		}
		if o.APIKey != "" {
			cur.APIKey = o.APIKey
		}
		if o.BaseURL != "" {
			cur.BaseURL = o.BaseURL
		}
		if o.TimeoutSeconds > 0 {
			cur.TimeoutSeconds = o.TimeoutSeconds
		}
		if o.PageSize > 0 {
			cur.PageSize = o.PageSize
		}
		if o.Language != "" {
			cur.Language = o.Language
		}
		out[i] = cur
	}
	return out
}

// LookupFunc resolves an environment style key such as NEWSAPI_KEY.
type LookupFunc func(key string) (string, bool)

// ApplyOverrides applies {ID}_KEY, {ID}_BASE_URL, {ID}_TIMEOUT, {ID}_PAGE_SIZE
// and {ID}_LANGUAGE overrides. Malformed numbers are reported together.
func ApplyOverrides(settings []Settings, lookup LookupFunc) ([]Settings, error) {
	if lookup == nil {
		return settings, nil
	}

	out := make([]Settings, len(settings))
	var errs []error
	for i, s := range settings {
		prefix := strings.ToUpper(s.ID) + "_"
		if v, ok := lookupTrimmed(lookup, prefix+"KEY"); ok {
			s.APIKey = v
		}
		if v, ok := lookupTrimmed(lookup, prefix+"BASE_URL"); ok {
			s.BaseURL = v
		}
		if v, ok := lookupTrimmed(lookup, prefix+"LANGUAGE"); ok {
			s.Language = v
		}
		if v, ok := lookupTrimmed(lookup, prefix+"TIMEOUT"); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				errs = append(errs, fmt.Errorf("invalid %sTIMEOUT %q (must be positive seconds)", prefix, v))
			} else {
				s.TimeoutSeconds = n
			}
		}
		if v, ok := lookupTrimmed(lookup, prefix+"PAGE_SIZE"); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				errs = append(errs, fmt.Errorf("invalid %sPAGE_SIZE %q (must be positive)", prefix, v))
			} else {
				s.PageSize = n
			}
		}
		out[i] = s
	}
	return out, errors.Join(errs...)
}

func lookupTrimmed(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
