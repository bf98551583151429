package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/GrazeGoat/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "grazegoat",
		Short: "GrazeGoat — incremental LLM-backed site grazer",
		Long: `GrazeGoat crawls a listing page, follows item links and extracts
structured records with an LLM, merging the results into a deduplicated
CSV file that survives and feeds repeated runs.

Features:
  • Incremental crawling: already-saved items are skipped, with a random
    sample refreshed on every run
  • LLM extraction via Ollama (local), OpenAI-compatible APIs, or a
    custom endpoint
  • CSS and XPath link discovery with navigation filtering
  • HTTP and headless-browser fetching
  • Deduplicated merge-on-write CSV output, plus optional MongoDB and
    Postgres mirrors
  • Jittered politeness delay and randomized visit order`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("GrazeGoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting the
// effective configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Crawl:\n")
			fmt.Printf("  Listing URL:      %s\n", cfg.Crawl.ListingURL)
			fmt.Printf("  Mode:             %s\n", cfg.Crawl.Mode)
			fmt.Printf("  Max Items:        %d\n", cfg.Crawl.MaxItems)
			fmt.Printf("  Max Links:        %d\n", cfg.Crawl.MaxLinks)
			fmt.Printf("  Base Delay:       %s\n", cfg.Crawl.BaseDelay)
			fmt.Printf("  Refresh Factor:   %.2f\n", cfg.Crawl.RefreshFactor)
			fmt.Printf("  Batch Size:       %d\n", cfg.Crawl.BatchSize)
			fmt.Printf("  Pages:            %d\n", cfg.Crawl.Pages)
			fmt.Printf("  Respect Robots:   %v\n", cfg.Crawl.RespectRobots)
			fmt.Printf("\nSelector:\n")
			fmt.Printf("  Type:             %s\n", cfg.Selector.Type)
			fmt.Printf("  Container:        %s\n", cfg.Selector.Container)
			fmt.Printf("  Stoplist:         %s\n", strings.Join(cfg.Selector.Stoplist, ", "))
			fmt.Printf("  Same Host Only:   %v\n", cfg.Selector.SameHost)
			fmt.Printf("\nSchema:\n")
			fmt.Printf("  Fields:           %s\n", strings.Join(cfg.Schema.Fields, ", "))
			fmt.Printf("  Required:         %s\n", strings.Join(cfg.Schema.Required, ", "))
			fmt.Printf("  Key Field:        %s\n", cfg.Schema.KeyField)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Engine:           %s\n", cfg.Fetcher.Engine)
			fmt.Printf("  Timeout:          %s\n", cfg.Fetcher.Timeout)
			fmt.Printf("  Max Body Size:    %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  User Agents:      %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("\nLLM:\n")
			fmt.Printf("  Provider:         %s\n", cfg.LLM.Provider)
			fmt.Printf("  Model:            %s\n", cfg.LLM.Model)
			fmt.Printf("  Endpoint:         %s\n", cfg.LLM.Endpoint)
			fmt.Printf("  Max Content:      %d chars\n", cfg.LLM.MaxContentChars)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Output CSV:       %s\n", cfg.Storage.Output)
			fmt.Printf("  Mongo Mirror:     %v\n", cfg.Storage.MongoURI != "")
			fmt.Printf("  Postgres Mirror:  %v\n", cfg.Storage.PostgresDSN != "")
			fmt.Printf("\nLogging:\n")
			fmt.Printf("  Level:            %s\n", cfg.Logging.Level)
			fmt.Printf("  Format:           %s\n", cfg.Logging.Format)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config. The
// --log-level and --log-format flags override the config; --verbose
// forces debug level.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	if logLevel != "" {
		cfg.Level = logLevel
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	out := os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}
