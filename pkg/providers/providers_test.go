package providers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSettingsYAMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "providers.yaml")
	content := `
providers:
  - id: guardian
    base_url: https://guardian.test/
    timeout_seconds: 12
    page_size: 20
  - id: nytimes
    enabled: false
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write providers file: %v", err)
	}

	settings, err := LoadSettings(file)
	if err != nil {
		t.Fatalf("LoadSettings returned error: %v", err)
	}
	if len(settings) != 3 {
		t.Fatalf("expected 3 settings, got %d", len(settings))
	}

	g := settings[1]
	if g.ID != GuardianID || g.Name != "The Guardian" {
		t.Fatalf("unexpected guardian entry %#v", g)
	}
	cfg := g.Config()
	if cfg.BaseURL() != "https://guardian.test" || cfg.Timeout() != 12*time.Second || cfg.PageSize() != 20 || cfg.Language() != "en" {
		t.Fatalf("unexpected guardian config %#v", cfg)
	}
	if settings[2].IsEnabled() {
		t.Fatalf("nytimes should be disabled")
	}
	if !settings[0].IsEnabled() {
		t.Fatalf("newsapi should default to enabled")
	}
}

func TestLoadSettingsJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "providers.json")
	if err := os.WriteFile(file, []byte(`{"providers":[{"id":"NewsAPI","language":"de"}]}`), 0o644); err != nil {
		t.Fatalf("write providers file: %v", err)
	}

	settings, err := LoadSettings(file)
	if err != nil {
		t.Fatalf("LoadSettings returned error: %v", err)
	}
	if settings[0].Language != "de" {
		t.Fatalf("expected language override, got %q", settings[0].Language)
	}
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settings) != len(DefaultSettings()) {
		t.Fatalf("expected defaults")
	}
}

func TestLoadSettingsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "providers.yaml")
	content := `
providers:
  - id: guardian
  - id: Guardian
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write providers file: %v", err)
	}

	if _, err := LoadSettings(file); err == nil {
		t.Fatalf("expected duplicate provider error, got nil")
	}
}

func TestLoadSettingsRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "providers.json")
	if err := os.WriteFile(file, []byte("providers: ["), 0o644); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	if _, err := LoadSettings(file); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyOverrides(t *testing.T) {
	env := map[string]string{
		"NEWSAPI_KEY":       " abc ",
		"NEWSAPI_PAGE_SIZE": "25",
		"GUARDIAN_KEY":      "g-key",
		"GUARDIAN_TIMEOUT":  "5",
		"NYTIMES_BASE_URL":  "https://nyt.test/svc",
		"NYTIMES_LANGUAGE":  "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	settings, err := ApplyOverrides(DefaultSettings(), lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg := settings[0].Config(); cfg.APIKey() != "abc" || cfg.PageSize() != 25 || !cfg.IsValid() {
		t.Fatalf("unexpected newsapi config %#v", cfg)
	}
	if cfg := settings[1].Config(); cfg.Timeout() != 5*time.Second || !cfg.IsValid() {
		t.Fatalf("unexpected guardian config %#v", cfg)
	}
	if cfg := settings[2].Config(); cfg.BaseURL() != "https://nyt.test/svc" || cfg.IsValid() {
		t.Fatalf("nytimes has no key and must be invalid: %#v", cfg)
	}
}

func TestApplyOverridesReportsBadNumbers(t *testing.T) {
	lookup := func(k string) (string, bool) {
		switch k {
		case "NEWSAPI_TIMEOUT":
			return "soon", true
		case "GUARDIAN_PAGE_SIZE":
			return "-1", true
		}
		return "", false
	}
	_, err := ApplyOverrides(DefaultSettings(), lookup)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "NEWSAPI_TIMEOUT") || !strings.Contains(err.Error(), "GUARDIAN_PAGE_SIZE") {
		t.Fatalf("expected both problems reported: %v", err)
	}
}

func TestProviderConfigDefaultsAndValidity(t *testing.T) {
	cfg := NewProviderConfig(" key ", "https://x.test//", 0, 0, "")
	if cfg.Timeout() != DefaultTimeout || cfg.PageSize() != DefaultPageSize || cfg.Language() != DefaultLanguage {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
	if cfg.Endpoint("/search") != "https://x.test/search" {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint("/search"))
	}
	if !cfg.IsValid() {
		t.Fatalf("expected valid config")
	}
	if (ProviderConfig{}).IsValid() {
		t.Fatalf("zero config must be invalid")
	}
}
