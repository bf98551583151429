// Package grazegoat provides a public API for embedding GrazeGoat as a
// library.
//
// Example usage:
//
//	g := grazegoat.New(
//	    grazegoat.WithMaxItems(20),
//	    grazegoat.WithOutput("posts.csv"),
//	    grazegoat.WithDelay(3*time.Second),
//	    grazegoat.WithLLM("ollama", "llama3", "http://localhost:11434"),
//	)
//
//	if err := g.Run(ctx, "https://blog.example.com"); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(g.Stats())
//
// Each Run merges into the configured CSV: new items are appended,
// already-saved items are skipped except for a randomly sampled refresh
// share, so repeated runs accumulate a deduplicated data set.
package grazegoat

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/crawler"
	"github.com/IshaanNene/GrazeGoat/internal/discovery"
	"github.com/IshaanNene/GrazeGoat/internal/extract"
	"github.com/IshaanNene/GrazeGoat/internal/fetcher"
	"github.com/IshaanNene/GrazeGoat/internal/markdown"
	"github.com/IshaanNene/GrazeGoat/internal/pipeline"
	"github.com/IshaanNene/GrazeGoat/internal/store"
)

// Grazer is the high-level API for using GrazeGoat as a library.
type Grazer struct {
	cfg    *config.Config
	logger *slog.Logger
	crawl  *crawler.Crawler
}

// Option configures a Grazer.
type Option func(*config.Config)

// WithMode selects the crawl mode: "detail" (follow item links) or
// "listing" (read items straight off numbered listing pages).
func WithMode(mode string) Option {
	return func(c *config.Config) { c.Crawl.Mode = mode }
}

// WithMaxItems caps how many items one run processes.
func WithMaxItems(n int) Option {
	return func(c *config.Config) { c.Crawl.MaxItems = n }
}

// WithMaxLinks caps how many links discovery collects from the listing.
func WithMaxLinks(n int) Option {
	return func(c *config.Config) { c.Crawl.MaxLinks = n }
}

// WithDelay sets the base politeness delay between fetches.
func WithDelay(d time.Duration) Option {
	return func(c *config.Config) { c.Crawl.BaseDelay = d }
}

// WithRefreshFactor sets the fraction of already-saved items to refresh
// per run (0 = never, 1 = always).
func WithRefreshFactor(f float64) Option {
	return func(c *config.Config) { c.Crawl.RefreshFactor = f }
}

// WithSeed pins the random source so shuffle order, refresh sampling
// and delay jitter replay deterministically.
func WithSeed(seed int64) Option {
	return func(c *config.Config) { c.Crawl.Seed = seed }
}

// WithPages sets how many numbered listing pages a listing-mode run
// walks.
func WithPages(n int) Option {
	return func(c *config.Config) { c.Crawl.Pages = n }
}

// WithRobots toggles robots.txt enforcement (on by default).
func WithRobots(enabled bool) Option {
	return func(c *config.Config) { c.Crawl.RespectRobots = enabled }
}

// WithOutput sets the output CSV path.
func WithOutput(path string) Option {
	return func(c *config.Config) { c.Storage.Output = path }
}

// WithSchema declares the record fields (output column order) and the
// identity key field. The required set resets to all fields; use
// WithRequired to narrow it.
func WithSchema(fields []string, keyField string) Option {
	return func(c *config.Config) {
		c.Schema.Fields = fields
		c.Schema.Required = nil
		c.Schema.KeyField = keyField
		c.Schema.LabelField = ""
		c.Schema.LinkField = ""
	}
}

// WithRequired narrows the set of fields a record must fill to be
// persisted.
func WithRequired(fields ...string) Option {
	return func(c *config.Config) { c.Schema.Required = fields }
}

// WithSelector sets the container selector and its type ("css" or
// "xpath") used for link discovery and content narrowing.
func WithSelector(container, selType string) Option {
	return func(c *config.Config) {
		c.Selector.Container = container
		if selType != "" {
			c.Selector.Type = selType
		}
	}
}

// WithStoplist replaces the navigation-label stoplist used to filter
// discovered links.
func WithStoplist(labels ...string) Option {
	return func(c *config.Config) { c.Selector.Stoplist = labels }
}

// WithLLM sets the extraction model. Endpoint may be empty to keep the
// provider default.
func WithLLM(provider, model, endpoint string) Option {
	return func(c *config.Config) {
		c.LLM.Provider = provider
		c.LLM.Model = model
		if endpoint != "" {
			c.LLM.Endpoint = endpoint
		}
	}
}

// WithLLMAPIKey sets the API key sent to openai-compatible providers.
func WithLLMAPIKey(key string) Option {
	return func(c *config.Config) { c.LLM.APIKey = key }
}

// WithEngine selects the fetch engine: "http" or "browser".
func WithEngine(engine string) Option {
	return func(c *config.Config) { c.Fetcher.Engine = engine }
}

// WithMongoMirror enables the MongoDB mirror store.
func WithMongoMirror(uri, database, collection string) Option {
	return func(c *config.Config) {
		c.Storage.MongoURI = uri
		c.Storage.MongoDatabase = database
		c.Storage.MongoCollection = collection
	}
}

// WithPostgresMirror enables the Postgres mirror store.
func WithPostgresMirror(dsn, table string) Option {
	return func(c *config.Config) {
		c.Storage.PostgresDSN = dsn
		c.Storage.PostgresTable = table
	}
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// New creates a Grazer with the given options.
func New(opts ...Option) *Grazer {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &Grazer{
		cfg:    cfg,
		logger: logger,
	}
}

// Run crawls the given listing URL to completion, merging extracted
// records into the configured output. It blocks until the run finishes
// or ctx is cancelled; pending records are saved on the way out either
// way.
func (g *Grazer) Run(ctx context.Context, listingURL string) error {
	g.cfg.Crawl.ListingURL = listingURL
	if err := config.Validate(g.cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	crawl := crawler.New(g.cfg, g.logger)

	sess, err := fetcher.NewSession(crawl.Session())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	f, err := fetcher.New(g.cfg, sess, g.logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			g.logger.Error("fetcher close error", "error", err)
		}
	}()

	disc, err := discovery.New(g.cfg.Selector, g.logger)
	if err != nil {
		return fmt.Errorf("create discoverer: %w", err)
	}

	st, err := store.New(g.cfg, g.logger)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			g.logger.Error("store close error", "error", err)
		}
	}()

	llm := extract.NewLLMClient(g.cfg.LLM, g.logger)
	conv := markdown.NewConverter()

	crawl.SetFetcher(f)
	crawl.SetDiscoverer(disc)
	crawl.SetExtractor(extract.NewItemExtractor(f, llm, conv, g.cfg, g.logger))
	crawl.SetPageExtractor(extract.NewListingExtractor(llm, conv, g.cfg, g.logger))
	crawl.SetPipeline(pipeline.ForSchema(g.cfg.Schema, g.logger))
	crawl.SetStore(st)

	g.crawl = crawl
	return crawl.Run(ctx)
}

// Stats returns the last run's counters.
func (g *Grazer) Stats() map[string]any {
	if g.crawl != nil {
		return g.crawl.Stats().Snapshot()
	}
	return nil
}

// Session returns the last run's session id, empty before the first
// run.
func (g *Grazer) Session() string {
	if g.crawl != nil {
		return g.crawl.Session()
	}
	return ""
}
