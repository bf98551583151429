package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// Fetcher is the interface for all page fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New creates the fetcher selected by fetcher.engine.
func New(cfg *config.Config, sess *Session, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Fetcher.Engine {
	case "http":
		return NewHTTPFetcher(cfg, sess, logger)
	case "browser":
		return NewBrowserFetcher(cfg, sess, logger)
	default:
		return nil, fmt.Errorf("unsupported fetcher engine %q", cfg.Fetcher.Engine)
	}
}
