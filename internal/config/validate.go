package config

import (
	"fmt"
	"net/url"
)

// Validate normalizes and checks the configuration. Normalization happens
// first so callers can rely on the post-Validate values: the refresh factor
// is clamped into [0,1] and empty schema role fields fall back to the
// declared field list.
func Validate(cfg *Config) error {
	if cfg.Crawl.RefreshFactor < 0 {
		cfg.Crawl.RefreshFactor = 0
	}
	if cfg.Crawl.RefreshFactor > 1 {
		cfg.Crawl.RefreshFactor = 1
	}
	normalizeSchema(&cfg.Schema)

	if cfg.Crawl.ListingURL == "" {
		return fmt.Errorf("crawl.listing_url is required")
	}
	if err := ValidateURL(cfg.Crawl.ListingURL); err != nil {
		return fmt.Errorf("crawl.listing_url: %w", err)
	}
	if cfg.Crawl.Mode != ModeDetail && cfg.Crawl.Mode != ModeListing {
		return fmt.Errorf("crawl.mode must be 'detail' or 'listing', got %q", cfg.Crawl.Mode)
	}
	if cfg.Crawl.MaxItems < 1 {
		return fmt.Errorf("crawl.max_items must be >= 1, got %d", cfg.Crawl.MaxItems)
	}
	if cfg.Crawl.MaxLinks < 1 {
		return fmt.Errorf("crawl.max_links must be >= 1, got %d", cfg.Crawl.MaxLinks)
	}
	if cfg.Crawl.BaseDelay < 0 {
		return fmt.Errorf("crawl.base_delay must be >= 0")
	}
	if cfg.Crawl.BatchSize < 1 {
		return fmt.Errorf("crawl.batch_size must be >= 1, got %d", cfg.Crawl.BatchSize)
	}
	if cfg.Crawl.Pages < 1 {
		return fmt.Errorf("crawl.pages must be >= 1, got %d", cfg.Crawl.Pages)
	}
	if cfg.Crawl.Mode == ModeListing && cfg.Crawl.PageParam == "" {
		return fmt.Errorf("crawl.page_param is required in listing mode")
	}

	if cfg.Selector.Type != "css" && cfg.Selector.Type != "xpath" {
		return fmt.Errorf("selector.type must be 'css' or 'xpath', got %q", cfg.Selector.Type)
	}

	if len(cfg.Schema.Fields) == 0 {
		return fmt.Errorf("schema.fields must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Schema.Fields))
	for _, f := range cfg.Schema.Fields {
		if f == "" {
			return fmt.Errorf("schema.fields must not contain empty names")
		}
		if seen[f] {
			return fmt.Errorf("schema.fields contains duplicate field %q", f)
		}
		seen[f] = true
	}
	for _, f := range cfg.Schema.Required {
		if !seen[f] {
			return fmt.Errorf("schema.required field %q is not declared in schema.fields", f)
		}
	}
	if !seen[cfg.Schema.KeyField] {
		return fmt.Errorf("schema.key_field %q is not declared in schema.fields", cfg.Schema.KeyField)
	}
	if !seen[cfg.Schema.LabelField] {
		return fmt.Errorf("schema.label_field %q is not declared in schema.fields", cfg.Schema.LabelField)
	}
	if cfg.Crawl.Mode == ModeDetail && !seen[cfg.Schema.LinkField] {
		return fmt.Errorf("schema.link_field %q is not declared in schema.fields", cfg.Schema.LinkField)
	}

	if cfg.Fetcher.Engine != "http" && cfg.Fetcher.Engine != "browser" {
		return fmt.Errorf("fetcher.engine must be 'http' or 'browser', got %q", cfg.Fetcher.Engine)
	}
	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	validProviders := map[string]bool{
		"ollama": true, "openai": true, "custom": true,
	}
	if !validProviders[cfg.LLM.Provider] {
		return fmt.Errorf("llm.provider %q is not supported (valid: ollama, openai, custom)", cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.MaxContentChars < 1 {
		return fmt.Errorf("llm.max_content_chars must be >= 1")
	}

	if cfg.Storage.Output == "" {
		return fmt.Errorf("storage.output is required")
	}
	if cfg.Storage.MongoURI != "" {
		if cfg.Storage.MongoDatabase == "" || cfg.Storage.MongoCollection == "" {
			return fmt.Errorf("storage.mongo_database and storage.mongo_collection are required when mongo_uri is set")
		}
	}
	if cfg.Storage.PostgresDSN != "" && cfg.Storage.PostgresTable == "" {
		return fmt.Errorf("storage.postgres_table is required when postgres_dsn is set")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// normalizeSchema fills empty role fields from the declared field list: the
// required set defaults to all fields, the key/label fall back to "link" and
// "title" when declared, else to the first field.
func normalizeSchema(s *SchemaConfig) {
	if len(s.Fields) == 0 {
		return
	}
	if len(s.Required) == 0 {
		s.Required = append([]string(nil), s.Fields...)
	}
	if s.KeyField == "" {
		s.KeyField = pickField(s.Fields, "link", "name")
	}
	if s.LabelField == "" {
		s.LabelField = pickField(s.Fields, "title", "name")
	}
	if s.LinkField == "" && s.Has("link") {
		s.LinkField = "link"
	}
}

// pickField returns the first preferred name present in fields, else the
// first field.
func pickField(fields []string, preferred ...string) string {
	for _, p := range preferred {
		for _, f := range fields {
			if f == p {
				return f
			}
		}
	}
	return fields[0]
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
