package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support, e.g. GRAZEGOAT_LLM_API_KEY
	v.SetEnvPrefix("GRAZEGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("grazegoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".grazegoat"))
		}
		v.AddConfigPath("/etc/grazegoat")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper. Every key is registered,
// including ones whose default is empty, so AutomaticEnv can bind them
// during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawl.listing_url", cfg.Crawl.ListingURL)
	v.SetDefault("crawl.mode", cfg.Crawl.Mode)
	v.SetDefault("crawl.max_items", cfg.Crawl.MaxItems)
	v.SetDefault("crawl.max_links", cfg.Crawl.MaxLinks)
	v.SetDefault("crawl.base_delay", cfg.Crawl.BaseDelay)
	v.SetDefault("crawl.refresh_factor", cfg.Crawl.RefreshFactor)
	v.SetDefault("crawl.batch_size", cfg.Crawl.BatchSize)
	v.SetDefault("crawl.pages", cfg.Crawl.Pages)
	v.SetDefault("crawl.page_param", cfg.Crawl.PageParam)
	v.SetDefault("crawl.page_param_always", cfg.Crawl.PageParamAlways)
	v.SetDefault("crawl.no_results_marker", cfg.Crawl.NoResultsMarker)
	v.SetDefault("crawl.respect_robots", cfg.Crawl.RespectRobots)
	v.SetDefault("crawl.session", cfg.Crawl.Session)
	v.SetDefault("crawl.seed", cfg.Crawl.Seed)

	v.SetDefault("selector.container", cfg.Selector.Container)
	v.SetDefault("selector.type", cfg.Selector.Type)
	v.SetDefault("selector.stoplist", cfg.Selector.Stoplist)
	v.SetDefault("selector.same_host", cfg.Selector.SameHost)

	v.SetDefault("schema.fields", cfg.Schema.Fields)
	v.SetDefault("schema.required", cfg.Schema.Required)
	v.SetDefault("schema.key_field", cfg.Schema.KeyField)
	v.SetDefault("schema.label_field", cfg.Schema.LabelField)
	v.SetDefault("schema.link_field", cfg.Schema.LinkField)

	v.SetDefault("fetcher.engine", cfg.Fetcher.Engine)
	v.SetDefault("fetcher.timeout", cfg.Fetcher.Timeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.headless", cfg.Fetcher.Headless)

	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.endpoint", cfg.LLM.Endpoint)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)
	v.SetDefault("llm.temperature", cfg.LLM.Temperature)
	v.SetDefault("llm.timeout", cfg.LLM.Timeout)
	v.SetDefault("llm.instruction", cfg.LLM.Instruction)
	v.SetDefault("llm.max_content_chars", cfg.LLM.MaxContentChars)

	v.SetDefault("storage.output", cfg.Storage.Output)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)
	v.SetDefault("storage.postgres_table", cfg.Storage.PostgresTable)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
}
