package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Crawl modes.
const (
	ModeDetail  = "detail"
	ModeListing = "listing"
)

// Config is the root configuration for GrazeGoat.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"    yaml:"crawl"`
	Selector SelectorConfig `mapstructure:"selector" yaml:"selector"`
	Schema   SchemaConfig   `mapstructure:"schema"   yaml:"schema"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// CrawlConfig controls the crawl loop.
type CrawlConfig struct {
	ListingURL      string        `mapstructure:"listing_url"       yaml:"listing_url"`
	Mode            string        `mapstructure:"mode"              yaml:"mode"` // detail, listing
	MaxItems        int           `mapstructure:"max_items"         yaml:"max_items"`
	MaxLinks        int           `mapstructure:"max_links"         yaml:"max_links"`
	BaseDelay       time.Duration `mapstructure:"base_delay"        yaml:"base_delay"`
	RefreshFactor   float64       `mapstructure:"refresh_factor"    yaml:"refresh_factor"`
	BatchSize       int           `mapstructure:"batch_size"        yaml:"batch_size"`
	Pages           int           `mapstructure:"pages"             yaml:"pages"`
	PageParam       string        `mapstructure:"page_param"        yaml:"page_param"`
	PageParamAlways bool          `mapstructure:"page_param_always" yaml:"page_param_always"`
	NoResultsMarker string        `mapstructure:"no_results_marker" yaml:"no_results_marker"`
	RespectRobots   bool          `mapstructure:"respect_robots"    yaml:"respect_robots"`
	Session         string        `mapstructure:"session"           yaml:"session"`
	Seed            int64         `mapstructure:"seed"              yaml:"seed"`
}

// SelectorConfig controls link discovery and content narrowing.
type SelectorConfig struct {
	Container string   `mapstructure:"container" yaml:"container"`
	Type      string   `mapstructure:"type"      yaml:"type"` // css, xpath
	Stoplist  []string `mapstructure:"stoplist"  yaml:"stoplist"`
	SameHost  bool     `mapstructure:"same_host" yaml:"same_host"`
}

// SchemaConfig declares the record shape. Fields gives the output column
// order; Required is the subset that must be non-empty for a record to be
// persisted.
type SchemaConfig struct {
	Fields     []string `mapstructure:"fields"      yaml:"fields"`
	Required   []string `mapstructure:"required"    yaml:"required"`
	KeyField   string   `mapstructure:"key_field"   yaml:"key_field"`
	LabelField string   `mapstructure:"label_field" yaml:"label_field"`
	LinkField  string   `mapstructure:"link_field"  yaml:"link_field"`
}

// Has reports whether the schema declares the given field.
func (s SchemaConfig) Has(field string) bool {
	for _, f := range s.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Engine          string        `mapstructure:"engine"            yaml:"engine"` // http, browser
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	Headless        bool          `mapstructure:"headless"          yaml:"headless"`
}

// LLMConfig controls the extraction model.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"          yaml:"provider"` // ollama, openai, custom
	Endpoint        string        `mapstructure:"endpoint"          yaml:"endpoint"`
	Model           string        `mapstructure:"model"             yaml:"model"`
	APIKey          string        `mapstructure:"api_key"           yaml:"api_key"`
	MaxTokens       int           `mapstructure:"max_tokens"        yaml:"max_tokens"`
	Temperature     float64       `mapstructure:"temperature"       yaml:"temperature"`
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	Instruction     string        `mapstructure:"instruction"       yaml:"instruction"`
	MaxContentChars int           `mapstructure:"max_content_chars" yaml:"max_content_chars"`
}

// StorageConfig controls output targets. The CSV file is always the primary
// store; Mongo and Postgres mirrors activate when their connection strings
// are set.
type StorageConfig struct {
	Output          string `mapstructure:"output"           yaml:"output"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
	PostgresDSN     string `mapstructure:"postgres_dsn"     yaml:"postgres_dsn"`
	PostgresTable   string `mapstructure:"postgres_table"   yaml:"postgres_table"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DefaultConfig returns a Config with sensible defaults. The schema defaults
// match the blog flavor (title/body/link keyed on the link).
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Mode:            ModeDetail,
			MaxItems:        10,
			MaxLinks:        25,
			BaseDelay:       5 * time.Second,
			RefreshFactor:   0.3,
			BatchSize:       2,
			Pages:           1,
			PageParam:       "page",
			NoResultsMarker: "No Results Found",
			RespectRobots:   true,
		},
		Selector: SelectorConfig{
			Type:     "css",
			Stoplist: []string{"next", "previous", "view all"},
			SameHost: true,
		},
		Schema: SchemaConfig{
			Fields:     []string{"title", "body", "link"},
			Required:   []string{"title", "body", "link"},
			KeyField:   "link",
			LabelField: "title",
			LinkField:  "link",
		},
		Fetcher: FetcherConfig{
			Engine:          "http",
			Timeout:         30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			Headless: true,
		},
		LLM: LLMConfig{
			Provider:        "ollama",
			Endpoint:        "http://localhost:11434",
			Model:           "llama3",
			MaxTokens:       2048,
			Temperature:     0.1,
			Timeout:         120 * time.Second,
			MaxContentChars: 12000,
		},
		Storage: StorageConfig{
			Output:          "grazegoat_records.csv",
			MongoDatabase:   "grazegoat",
			MongoCollection: "records",
			PostgresTable:   "records",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
