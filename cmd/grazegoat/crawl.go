package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/crawler"
	"github.com/IshaanNene/GrazeGoat/internal/discovery"
	"github.com/IshaanNene/GrazeGoat/internal/extract"
	"github.com/IshaanNene/GrazeGoat/internal/fetcher"
	"github.com/IshaanNene/GrazeGoat/internal/markdown"
	"github.com/IshaanNene/GrazeGoat/internal/pipeline"
	"github.com/IshaanNene/GrazeGoat/internal/store"
)

var (
	crawlURL      string
	crawlMode     string
	maxItems      int
	crawlDelay    string
	outputPath    string
	refreshFactor float64
	crawlSeed     int64
	fetchEngine   string
	crawlPages    int
	llmModel      string
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl a listing page and extract records",
		Long: `Crawl the configured listing page, follow item links in random order
and extract structured records with the configured LLM. Records merge
into the output CSV by identity key: new items are appended, while
already-saved items are skipped except for a randomly sampled refresh
share controlled by --refresh-factor.

In listing mode the records are read straight off numbered listing
pages instead of visiting each item's own page.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawl,
	}

	cmd.Flags().StringVar(&crawlURL, "url", "", "listing page URL (overrides config)")
	cmd.Flags().StringVar(&crawlMode, "mode", "", "crawl mode: detail or listing")
	cmd.Flags().IntVarP(&maxItems, "max-items", "m", 0, "maximum items to process this run")
	cmd.Flags().StringVar(&crawlDelay, "delay", "", "base politeness delay between fetches (e.g. 5s)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output CSV path")
	cmd.Flags().Float64Var(&refreshFactor, "refresh-factor", -1, "fraction of already-saved items to refresh (0..1)")
	cmd.Flags().Int64Var(&crawlSeed, "seed", 0, "random seed (0 = time-based)")
	cmd.Flags().StringVar(&fetchEngine, "engine", "", "fetch engine: http or browser")
	cmd.Flags().IntVar(&crawlPages, "pages", 0, "listing pages to walk in listing mode")
	cmd.Flags().StringVar(&llmModel, "model", "", "LLM model name")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCrawlOverrides(cfg, args)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	// Health check up front — 30s timeout to ride out an Ollama model
	// cold start. A dead endpoint in detail mode degrades every record
	// to a fallback entry, which is rarely what was wanted.
	llm := extract.NewLLMClient(cfg.LLM, logger)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 30*time.Second)
	pingErr := llm.Ping(pingCtx)
	cancelPing()
	if pingErr != nil {
		fmt.Printf("⚠️  LLM not reachable: %v\n", pingErr)
		if cfg.Crawl.Mode == config.ModeListing {
			return fmt.Errorf("listing mode needs a working LLM: %w", pingErr)
		}
		fmt.Println("   Continuing anyway: failed extractions degrade to fallback records")
	} else {
		fmt.Printf("✅ LLM connected: %s/%s @ %s\n", cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.Endpoint)
	}

	crawl := crawler.New(cfg, logger)

	sess, err := fetcher.NewSession(crawl.Session())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	f, err := fetcher.New(cfg, sess, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("fetcher close error", "error", err)
		}
	}()

	disc, err := discovery.New(cfg.Selector, logger)
	if err != nil {
		return fmt.Errorf("create discoverer: %w", err)
	}

	st, err := store.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()

	conv := markdown.NewConverter()
	crawl.SetFetcher(f)
	crawl.SetDiscoverer(disc)
	crawl.SetExtractor(extract.NewItemExtractor(f, llm, conv, cfg, logger))
	crawl.SetPageExtractor(extract.NewListingExtractor(llm, conv, cfg, logger))
	crawl.SetPipeline(pipeline.ForSchema(cfg.Schema, logger))
	crawl.SetStore(st)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	start := time.Now()
	runErr := crawl.Run(ctx)
	stats := crawl.Stats().Snapshot()

	if runErr != nil {
		fmt.Printf("\n⚠️  Crawl ended early after %s: %v\n", time.Since(start).Round(time.Millisecond), runErr)
	} else {
		fmt.Printf("\n✅ Crawl complete in %s\n", time.Since(start).Round(time.Millisecond))
	}
	fmt.Printf("   Processed: %v (%v new, %v refreshed, %v failed)\n",
		stats["processed"], stats["succeeded_new"], stats["refreshed"], stats["failed"])
	fmt.Printf("   Skipped:   %v already saved\n", stats["skipped"])
	fmt.Printf("   Output:    %s\n", cfg.Storage.Output)

	return runErr
}

// applyCrawlOverrides applies command-line flag values to the config. A
// positional URL argument wins over the --url flag.
func applyCrawlOverrides(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Crawl.ListingURL = args[0]
	} else if crawlURL != "" {
		cfg.Crawl.ListingURL = crawlURL
	}
	if crawlMode != "" {
		cfg.Crawl.Mode = strings.ToLower(crawlMode)
	}
	if maxItems > 0 {
		cfg.Crawl.MaxItems = maxItems
	}
	if crawlDelay != "" {
		if d, err := time.ParseDuration(crawlDelay); err == nil {
			cfg.Crawl.BaseDelay = d
		}
	}
	if outputPath != "" {
		cfg.Storage.Output = outputPath
	}
	if refreshFactor >= 0 {
		cfg.Crawl.RefreshFactor = refreshFactor
	}
	if crawlSeed != 0 {
		cfg.Crawl.Seed = crawlSeed
	}
	if fetchEngine != "" {
		cfg.Fetcher.Engine = strings.ToLower(fetchEngine)
	}
	if crawlPages > 0 {
		cfg.Crawl.Pages = crawlPages
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}
