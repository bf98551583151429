// Package crawler implements the incremental crawl-and-dedupe loop: a
// listing page is discovered once, items are visited in randomized
// order with a jittered politeness delay, previously saved items are
// refreshed only for a sampled fraction of the run, and accepted
// records are merged into the store in small batches.
package crawler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// State represents the crawler's current lifecycle state.
type State int32

const (
	StateInit State = iota
	StateDiscovering
	StateIterating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDiscovering:
		return "discovering"
	case StateIterating:
		return "iterating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats tracks run counters. The crawl loop is strictly sequential, so
// plain ints are enough; Snapshot is read once the run has finished.
type Stats struct {
	Processed    int
	SucceededNew int
	Refreshed    int
	Skipped      int
	Failed       int
	Session      string
	Mode         string
	StartTime    time.Time
}

// Snapshot returns the counters as a map for the summary log.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"processed":     s.Processed,
		"succeeded_new": s.SucceededNew,
		"refreshed":     s.Refreshed,
		"skipped":       s.Skipped,
		"failed":        s.Failed,
		"session":       s.Session,
		"mode":          s.Mode,
		"elapsed":       time.Since(s.StartTime).String(),
	}
}

// Fetcher retrieves pages.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
}

// Discoverer extracts item links from a listing page.
type Discoverer interface {
	Discover(resp *types.Response, limit int) ([]types.LinkEntry, error)
}

// Extractor produces a record for one discovered entry. It never
// fails; the worst case is a fallback record built from the entry.
type Extractor interface {
	Extract(ctx context.Context, entry types.LinkEntry, session string) *types.Record
}

// PageExtractor produces all records found on one listing page, plus a
// count of results the collaborator flagged as failed.
type PageExtractor interface {
	ExtractPage(ctx context.Context, resp *types.Response) ([]*types.Record, int, error)
}

// Pipeline validates records before persistence.
type Pipeline interface {
	Process(rec *types.Record) (*types.Record, error)
}

// Store persists validated records and reports previously saved keys.
type Store interface {
	ExistingKeys(ctx context.Context) (map[string]struct{}, error)
	Merge(ctx context.Context, records []*types.Record, appendMode bool) error
}

// Crawler is the sequential crawl orchestrator.
type Crawler struct {
	cfg        *config.Config
	fetcher    Fetcher
	discoverer Discoverer
	extractor  Extractor
	pages      PageExtractor
	pipeline   Pipeline
	store      Store
	robots     *Robots

	rng     *rand.Rand
	session string
	state   atomic.Int32
	stats   *Stats
	logger  *slog.Logger
}

// New creates a Crawler. Collaborators are attached with the Set
// methods before Run. The random source is seeded from crawl.seed so
// shuffle order, refresh sampling and delay jitter replay under a
// pinned seed; a zero seed falls back to the clock.
func New(cfg *config.Config, logger *slog.Logger) *Crawler {
	seed := cfg.Crawl.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	session := cfg.Crawl.Session
	if session == "" {
		session = uuid.NewString()
	}

	return &Crawler{
		cfg:     cfg,
		robots:  NewRobots(cfg.Crawl.RespectRobots),
		rng:     rand.New(rand.NewSource(seed)),
		session: session,
		stats:   &Stats{Session: session, Mode: cfg.Crawl.Mode},
		logger:  logger.With("component", "crawler"),
	}
}

// SetFetcher attaches the page fetcher.
func (c *Crawler) SetFetcher(f Fetcher) { c.fetcher = f }

// SetDiscoverer attaches the link discoverer used in detail mode.
func (c *Crawler) SetDiscoverer(d Discoverer) { c.discoverer = d }

// SetExtractor attaches the per-item extractor used in detail mode.
func (c *Crawler) SetExtractor(e Extractor) { c.extractor = e }

// SetPageExtractor attaches the listing-page extractor used in listing
// mode.
func (c *Crawler) SetPageExtractor(p PageExtractor) { c.pages = p }

// SetPipeline attaches the validation pipeline.
func (c *Crawler) SetPipeline(p Pipeline) { c.pipeline = p }

// SetStore attaches the persistence backend.
func (c *Crawler) SetStore(s Store) { c.store = s }

// Session returns the run's session id, shared with the fetcher so
// browser pages and cookies persist across the run.
func (c *Crawler) Session() string { return c.session }

// GetState returns the current lifecycle state.
func (c *Crawler) GetState() State { return State(c.state.Load()) }

// Stats returns the run counters.
func (c *Crawler) Stats() *Stats { return c.stats }

func (c *Crawler) setState(s State) {
	c.state.Store(int32(s))
	c.logger.Debug("state transition", "state", s.String())
}

// runState carries the per-run dedupe sets and the pending batch.
type runState struct {
	existing map[string]struct{}
	seen     map[string]struct{}
	pending  []*types.Record
}

// Run executes one crawl to completion and returns the first fatal
// error, if any. Fetch and extraction failures inside the loop are
// absorbed into the counters; only discovery failure, a primary store
// write failure and context cancellation end a run early — and even
// then pending records get a final save attempt.
func (c *Crawler) Run(ctx context.Context) error {
	c.stats.StartTime = time.Now()
	c.setState(StateInit)

	c.logger.Info("crawl starting",
		"session", c.session,
		"mode", c.cfg.Crawl.Mode,
		"url", c.cfg.Crawl.ListingURL,
		"max_items", c.cfg.Crawl.MaxItems,
		"refresh_factor", c.cfg.Crawl.RefreshFactor,
	)

	existing, err := c.store.ExistingKeys(ctx)
	if err != nil {
		// A store that cannot be read should not block a fresh run.
		c.logger.Warn("existing keys unavailable, starting empty", "error", err)
		existing = make(map[string]struct{})
	}
	c.logger.Info("existing records loaded", "count", len(existing))

	run := &runState{
		existing: existing,
		seen:     make(map[string]struct{}),
	}

	var runErr error
	switch c.cfg.Crawl.Mode {
	case config.ModeListing:
		runErr = c.runListing(ctx, run)
	default:
		runErr = c.runDetail(ctx, run)
	}

	// Whatever happened above, pending records must not be lost.
	if err := c.flush(ctx, run); err != nil {
		c.logger.Error("final save failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		c.setState(StateFailed)
		c.logger.Error("crawl finished with error", "error", runErr, "stats", c.stats.Snapshot())
		return runErr
	}

	c.setState(StateDone)
	c.logger.Info("crawl complete", "stats", c.stats.Snapshot())
	return nil
}

// accept validates the record, updates the counters and appends it to
// the pending batch. Returns false when the record was rejected.
func (c *Crawler) accept(run *runState, rec *types.Record, known bool) bool {
	validated, err := c.pipeline.Process(rec)
	if err != nil {
		c.stats.Failed++
		c.logger.Warn("record rejected", "source", rec.Source, "fallback", rec.Fallback, "error", err)
		return false
	}
	if validated == nil {
		c.stats.Failed++
		c.logger.Warn("record dropped by pipeline", "source", rec.Source)
		return false
	}

	if known {
		c.stats.Refreshed++
	} else {
		c.stats.SucceededNew++
	}
	run.pending = append(run.pending, validated)
	return true
}

// maybeFlush saves the pending batch once it reaches the configured
// size; the final partial batch is flushed by Run.
func (c *Crawler) maybeFlush(ctx context.Context, run *runState) error {
	if len(run.pending) >= c.cfg.Crawl.BatchSize {
		return c.flush(ctx, run)
	}
	return nil
}

// flush merges the pending batch into the store and clears it. On
// failure the batch is retained so the error-path save can retry once.
func (c *Crawler) flush(ctx context.Context, run *runState) error {
	if len(run.pending) == 0 {
		return nil
	}
	if err := c.store.Merge(ctx, run.pending, true); err != nil {
		return err
	}
	c.logger.Info("batch saved", "records", len(run.pending))
	run.pending = run.pending[:0]
	return nil
}

// sleep applies the jittered politeness delay: base_delay scaled by a
// uniform draw from [0.8, 1.2). A robots.txt Crawl-delay larger than
// the configured base raises it. Cancellation cuts the wait short.
func (c *Crawler) sleep(ctx context.Context) error {
	base := c.cfg.Crawl.BaseDelay
	if d := c.robots.CrawlDelay(c.cfg.Crawl.ListingURL); d > base {
		base = d
	}
	if base <= 0 {
		return nil
	}
	jitter := 0.8 + 0.4*c.rng.Float64()
	delay := time.Duration(float64(base) * jitter)
	c.logger.Debug("politeness delay", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
