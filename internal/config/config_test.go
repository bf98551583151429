package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Crawl.ListingURL = "https://example.com/posts"
	return cfg
}

// --- Default Tests ---

func TestDefaultConfigValidates(t *testing.T) {
	cfg := validConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Crawl.Mode != ModeDetail {
		t.Errorf("expected detail mode default, got %s", cfg.Crawl.Mode)
	}
	if cfg.Crawl.BatchSize != 2 {
		t.Errorf("expected batch size 2, got %d", cfg.Crawl.BatchSize)
	}
	if !cfg.Crawl.RespectRobots {
		t.Error("robots should be respected by default")
	}
}

// --- Validation Tests ---

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing listing url", func(c *Config) { c.Crawl.ListingURL = "" }, "listing_url"},
		{"bad listing scheme", func(c *Config) { c.Crawl.ListingURL = "ftp://example.com" }, "listing_url"},
		{"bad mode", func(c *Config) { c.Crawl.Mode = "breadth" }, "mode"},
		{"zero max items", func(c *Config) { c.Crawl.MaxItems = 0 }, "max_items"},
		{"zero max links", func(c *Config) { c.Crawl.MaxLinks = 0 }, "max_links"},
		{"negative delay", func(c *Config) { c.Crawl.BaseDelay = -time.Second }, "base_delay"},
		{"zero batch", func(c *Config) { c.Crawl.BatchSize = 0 }, "batch_size"},
		{"zero pages", func(c *Config) { c.Crawl.Pages = 0 }, "pages"},
		{"listing without page param", func(c *Config) { c.Crawl.Mode = ModeListing; c.Crawl.PageParam = "" }, "page_param"},
		{"bad selector type", func(c *Config) { c.Selector.Type = "regex" }, "selector.type"},
		{"empty schema", func(c *Config) { c.Schema.Fields = nil }, "schema.fields"},
		{"duplicate field", func(c *Config) { c.Schema.Fields = []string{"title", "title"} }, "duplicate"},
		{"undeclared required", func(c *Config) { c.Schema.Required = []string{"price"} }, "required"},
		{"undeclared key field", func(c *Config) { c.Schema.KeyField = "id" }, "key_field"},
		{"bad engine", func(c *Config) { c.Fetcher.Engine = "curl" }, "engine"},
		{"zero timeout", func(c *Config) { c.Fetcher.Timeout = 0 }, "timeout"},
		{"bad provider", func(c *Config) { c.LLM.Provider = "bard" }, "provider"},
		{"missing model", func(c *Config) { c.LLM.Model = "" }, "model"},
		{"missing output", func(c *Config) { c.Storage.Output = "" }, "output"},
		{"mongo uri without db", func(c *Config) { c.Storage.MongoURI = "mongodb://x"; c.Storage.MongoDatabase = "" }, "mongo_database"},
		{"postgres dsn without table", func(c *Config) { c.Storage.PostgresDSN = "postgres://x"; c.Storage.PostgresTable = "" }, "postgres_table"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		err := Validate(cfg)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q should mention %q", tc.name, err, tc.want)
		}
	}
}

func TestValidateClampsRefreshFactor(t *testing.T) {
	cfg := validConfig()
	cfg.Crawl.RefreshFactor = -0.5
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Crawl.RefreshFactor != 0 {
		t.Errorf("negative factor should clamp to 0, got %v", cfg.Crawl.RefreshFactor)
	}

	cfg.Crawl.RefreshFactor = 1.7
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Crawl.RefreshFactor != 1 {
		t.Errorf("factor above 1 should clamp to 1, got %v", cfg.Crawl.RefreshFactor)
	}
}

func TestValidateLinkFieldOnlyInDetailMode(t *testing.T) {
	cfg := validConfig()
	cfg.Crawl.Mode = ModeListing
	cfg.Schema.Fields = []string{"name", "location"}
	cfg.Schema.Required = []string{"name"}
	cfg.Schema.KeyField = "name"
	cfg.Schema.LabelField = "name"
	cfg.Schema.LinkField = ""

	if err := Validate(cfg); err != nil {
		t.Errorf("listing mode should not require a link field: %v", err)
	}

	cfg.Crawl.Mode = ModeDetail
	if err := Validate(cfg); err == nil {
		t.Error("detail mode without a declared link field should fail")
	}
}

// --- Schema Normalization Tests ---

func TestNormalizeSchemaDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Schema = SchemaConfig{Fields: []string{"title", "author", "link"}}

	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if len(cfg.Schema.Required) != 3 {
		t.Errorf("required should default to all fields, got %v", cfg.Schema.Required)
	}
	if cfg.Schema.KeyField != "link" {
		t.Errorf("key field should prefer link, got %q", cfg.Schema.KeyField)
	}
	if cfg.Schema.LabelField != "title" {
		t.Errorf("label field should prefer title, got %q", cfg.Schema.LabelField)
	}
	if cfg.Schema.LinkField != "link" {
		t.Errorf("link field should pick declared link, got %q", cfg.Schema.LinkField)
	}
}

func TestNormalizeSchemaNamePreference(t *testing.T) {
	cfg := validConfig()
	cfg.Crawl.Mode = ModeListing
	cfg.Schema = SchemaConfig{Fields: []string{"name", "location", "price"}}

	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Schema.KeyField != "name" {
		t.Errorf("key field should fall back to name, got %q", cfg.Schema.KeyField)
	}
	if cfg.Schema.LabelField != "name" {
		t.Errorf("label field should fall back to name, got %q", cfg.Schema.LabelField)
	}
	if cfg.Schema.LinkField != "" {
		t.Errorf("no declared link field means none, got %q", cfg.Schema.LinkField)
	}
}

func TestNormalizeSchemaFirstFieldFallback(t *testing.T) {
	cfg := validConfig()
	cfg.Crawl.Mode = ModeListing
	cfg.Schema = SchemaConfig{Fields: []string{"venue", "city"}}

	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Schema.KeyField != "venue" || cfg.Schema.LabelField != "venue" {
		t.Errorf("both roles should fall back to first field, got key=%q label=%q",
			cfg.Schema.KeyField, cfg.Schema.LabelField)
	}
}

// --- URL Validation Tests ---

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://example.com/path"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	if err := ValidateURL("ftp://example.com"); err == nil {
		t.Error("ftp scheme should be rejected")
	}
	if err := ValidateURL("https://"); err == nil {
		t.Error("missing host should be rejected")
	}
}

// --- Loader Tests ---

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grazegoat.yaml")
	content := `crawl:
  listing_url: https://example.com/venues
  mode: listing
  max_items: 7
  base_delay: 2s
  respect_robots: false
schema:
  fields:
    - name
    - location
  required:
    - name
llm:
  model: mistral
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Crawl.ListingURL != "https://example.com/venues" {
		t.Errorf("listing url not loaded: %q", cfg.Crawl.ListingURL)
	}
	if cfg.Crawl.Mode != ModeListing {
		t.Errorf("mode not loaded: %q", cfg.Crawl.Mode)
	}
	if cfg.Crawl.MaxItems != 7 {
		t.Errorf("max items not loaded: %d", cfg.Crawl.MaxItems)
	}
	if cfg.Crawl.BaseDelay != 2*time.Second {
		t.Errorf("duration not decoded: %v", cfg.Crawl.BaseDelay)
	}
	if cfg.Crawl.RespectRobots {
		t.Error("respect_robots false not loaded")
	}
	if len(cfg.Schema.Fields) != 2 || cfg.Schema.Fields[0] != "name" {
		t.Errorf("schema fields not loaded: %v", cfg.Schema.Fields)
	}
	if cfg.LLM.Model != "mistral" {
		t.Errorf("llm model not loaded: %q", cfg.LLM.Model)
	}

	// Untouched keys keep their defaults.
	if cfg.Crawl.BatchSize != 2 {
		t.Errorf("batch size default lost: %d", cfg.Crawl.BatchSize)
	}
	if cfg.Fetcher.Engine != "http" {
		t.Errorf("fetcher engine default lost: %q", cfg.Fetcher.Engine)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GRAZEGOAT_CRAWL_MAX_ITEMS", "3")
	t.Setenv("GRAZEGOAT_LLM_API_KEY", "sk-test")
	t.Setenv("GRAZEGOAT_CRAWL_LISTING_URL", "https://example.com/from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Crawl.MaxItems != 3 {
		t.Errorf("env override not applied: %d", cfg.Crawl.MaxItems)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key env not applied: %q", cfg.LLM.APIKey)
	}
	if cfg.Crawl.ListingURL != "https://example.com/from-env" {
		t.Errorf("listing url env not applied: %q", cfg.Crawl.ListingURL)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("explicitly named missing config file should error")
	}
}

// --- Schema Helper Tests ---

func TestSchemaHas(t *testing.T) {
	s := SchemaConfig{Fields: []string{"title", "link"}}
	if !s.Has("title") {
		t.Error("expected to find title")
	}
	if s.Has("price") {
		t.Error("price is not declared")
	}
}
