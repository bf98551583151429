package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// BrowserFetcher implements Fetcher using a headless browser via Rod, for
// listings that only render their content client-side. Pages are keyed by
// session so consecutive requests in one crawl reuse a single tab, the way
// one visitor would browse.
type BrowserFetcher struct {
	browser *rod.Browser
	cfg     *config.FetcherConfig
	sess    *Session
	logger  *slog.Logger
	pages   map[string]*rod.Page
}

// NewBrowserFetcher launches a Chromium instance and connects to it.
func NewBrowserFetcher(cfg *config.Config, sess *Session, logger *slog.Logger) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(cfg.Fetcher.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf := &BrowserFetcher{
		browser: browser,
		cfg:     &cfg.Fetcher,
		sess:    sess,
		logger:  logger.With("component", "browser_fetcher"),
		pages:   make(map[string]*rod.Page),
	}

	bf.logger.Info("browser fetcher ready",
		"headless", cfg.Fetcher.Headless,
		"session", sess.ID,
	)

	return bf, nil
}

// Fetch navigates to a URL and returns the rendered page content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	page, err := bf.sessionPage(req.Session)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	page = page.Context(ctx)

	if ua := req.Headers.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	timeout := bf.cfg.Timeout
	if err := page.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	// Wait for client-side rendering to settle
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	// Rod doesn't easily expose status codes; a rendered page counts as 200
	duration := time.Since(start)
	resp := types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	return resp, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	for _, page := range bf.pages {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

// sessionPage returns the tab for a session, creating it on first use with
// the stealth patches applied.
func (bf *BrowserFetcher) sessionPage(session string) (*rod.Page, error) {
	if session == "" {
		session = bf.sess.ID
	}
	if page, ok := bf.pages[session]; ok {
		return page, nil
	}

	page, err := stealth.Page(bf.browser)
	if err != nil {
		return nil, fmt.Errorf("stealth page: %w", err)
	}
	bf.pages[session] = page
	return page, nil
}
