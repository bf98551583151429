package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// runListing crawls in listing mode: walk numbered listing pages and
// extract every item directly from each page, without visiting detail
// pages. Pagination stops at the configured page count, at a page
// carrying the no-results marker, or at a page that yields nothing.
func (c *Crawler) runListing(ctx context.Context, run *runState) error {
	c.setState(StateIterating)

	for page := 1; page <= c.cfg.Crawl.Pages; page++ {
		if c.stats.Processed >= c.cfg.Crawl.MaxItems {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if page > 1 {
			if err := c.sleep(ctx); err != nil {
				return err
			}
		}

		pageURL, err := c.pageURL(page)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrDiscoveryFailed, err)
		}
		if !c.robots.Allowed(pageURL) {
			if page == 1 {
				return fmt.Errorf("%w: listing disallowed by robots.txt", types.ErrDiscoveryFailed)
			}
			c.logger.Info("page disallowed by robots.txt, stopping pagination", "page", page)
			break
		}
		req, err := types.NewRequest(pageURL)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrDiscoveryFailed, err)
		}
		req.Tag = "listing"
		req.Session = c.session

		c.logger.Info("fetching listing page", "page", page, "url", pageURL)
		resp, err := c.fetcher.Fetch(ctx, req)
		if err == nil && !resp.IsSuccess() {
			err = fmt.Errorf("listing page returned status %d", resp.StatusCode)
		}
		if err != nil {
			// An unreachable first page means the whole run has nothing
			// to work with; a later page just ends pagination early.
			if page == 1 {
				return fmt.Errorf("%w: %v", types.ErrDiscoveryFailed, err)
			}
			c.logger.Warn("listing page fetch failed, stopping pagination", "page", page, "error", err)
			break
		}

		if resp.Contains(c.cfg.Crawl.NoResultsMarker) {
			c.logger.Info("no-results marker found, stopping pagination", "page", page)
			break
		}

		records, flagged, err := c.pages.ExtractPage(ctx, resp)
		if err != nil {
			if page == 1 {
				return fmt.Errorf("%w: %v", types.ErrDiscoveryFailed, err)
			}
			c.logger.Warn("listing extraction failed, stopping pagination", "page", page, "error", err)
			break
		}
		if len(records) == 0 && flagged == 0 {
			c.logger.Info("empty listing page, stopping pagination", "page", page)
			break
		}

		for _, rec := range records {
			if c.stats.Processed >= c.cfg.Crawl.MaxItems {
				break
			}

			key := rec.Key(c.cfg.Schema.KeyField)
			if key == "" {
				continue
			}
			if _, ok := run.seen[key]; ok {
				c.logger.Debug("duplicate record skipped", "key", key)
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
			}

			c.stats.Processed++
			if !c.accept(run, rec, known) {
				continue
			}
			if err := c.maybeFlush(ctx, run); err != nil {
				return err
			}
		}

		// Results the extraction collaborator flagged as failed still
		// count against the run budget.
		for i := 0; i < flagged && c.stats.Processed < c.cfg.Crawl.MaxItems; i++ {
			c.stats.Processed++
			c.stats.Failed++
		}
	}

	return nil
}

// pageURL builds the listing URL for a page by setting the page query
// parameter. Page 1 keeps the configured URL untouched unless
// page_param_always is set.
func (c *Crawler) pageURL(page int) (string, error) {
	if page <= 1 && !c.cfg.Crawl.PageParamAlways {
		return c.cfg.Crawl.ListingURL, nil
	}
	u, err := url.Parse(c.cfg.Crawl.ListingURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(c.cfg.Crawl.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
