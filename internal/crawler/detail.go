package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// runDetail crawls in detail mode: discover item links on the listing
// page, shuffle them, then fetch and extract one item per link.
func (c *Crawler) runDetail(ctx context.Context, run *runState) error {
	c.setState(StateDiscovering)

	entries, err := c.discover(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		c.logger.Info("no links discovered, nothing to do")
		return nil
	}

	// Randomized visit order gives every already-saved item an equal
	// chance of being sampled for a refresh across repeated runs.
	c.rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	c.logger.Info("links discovered", "count", len(entries))

	c.setState(StateIterating)

	for _, entry := range entries {
		if c.stats.Processed >= c.cfg.Crawl.MaxItems {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Entries without a target never reach fetching and count
		// toward nothing. The same goes for targets robots.txt puts
		// off limits.
		if entry.Target == "" {
			continue
		}
		if !c.robots.Allowed(entry.Target) {
			c.logger.Debug("target disallowed by robots.txt", "target", entry.Target)
			continue
		}
		key := c.entryKey(entry)
		if key == "" {
			continue
		}
		if _, ok := run.seen[key]; ok {
			c.logger.Debug("duplicate entry skipped", "key", key)
			continue
		}
		run.seen[key] = struct{}{}

		_, known := run.existing[key]
		if known {
			if r := c.rng.Float64(); r >= c.cfg.Crawl.RefreshFactor {
				c.stats.Skipped++
				c.logger.Debug("existing record kept", "key", key, "draw", r)
				continue
			}
			c.logger.Debug("existing record sampled for refresh", "key", key)
		}

		// The very first fetch of a run goes out immediately.
		if c.stats.Processed > 0 {
			if err := c.sleep(ctx); err != nil {
				return err
			}
		}

		c.logger.Info("fetching item",
			"label", entry.Label,
			"target", entry.Target,
			"processed", c.stats.Processed,
		)
		rec := c.extractor.Extract(ctx, entry, c.session)
		c.stats.Processed++

		if !c.accept(run, rec, known) {
			continue
		}
		if err := c.maybeFlush(ctx, run); err != nil {
			return err
		}
	}

	return nil
}

// discover fetches the listing page and extracts item links. A fetch
// failure here is fatal: the run ends with nothing written.
func (c *Crawler) discover(ctx context.Context) ([]types.LinkEntry, error) {
	if !c.robots.Allowed(c.cfg.Crawl.ListingURL) {
		return nil, fmt.Errorf("%w: listing disallowed by robots.txt", types.ErrDiscoveryFailed)
	}
	req, err := types.NewRequest(c.cfg.Crawl.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDiscoveryFailed, err)
	}
	req.Tag = "listing"
	req.Session = c.session

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDiscoveryFailed, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: listing page returned status %d", types.ErrDiscoveryFailed, resp.StatusCode)
	}

	entries, err := c.discoverer.Discover(resp, c.cfg.Crawl.MaxLinks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDiscoveryFailed, err)
	}
	return entries, nil
}

// entryKey projects a discovered entry onto the schema's identity
// field: the label when the key field is the label field, the target
// otherwise. Record identity after extraction still comes from the
// record itself.
func (c *Crawler) entryKey(entry types.LinkEntry) string {
	if c.cfg.Schema.KeyField == c.cfg.Schema.LabelField {
		return strings.TrimSpace(entry.Label)
	}
	return entry.Target
}
