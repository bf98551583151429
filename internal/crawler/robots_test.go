package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IshaanNene/GrazeGoat/internal/pipeline"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

const sampleRobots = `# robots.txt for example.com
User-agent: googlebot
Disallow: /google-only/

User-agent: *
Disallow: /private/
Disallow: /*?page=
Allow: /private/open
Crawl-delay: 1.5

User-agent: GrazeGoat/1.0
Disallow: /secret/
`

// robotsServer serves the given robots.txt body and counts how many
// times it was fetched.
func robotsServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &fetches
}

// --- Parser Tests ---

func TestParseRobotsTxt(t *testing.T) {
	rules := parseRobotsTxt(sampleRobots)

	want := []string{"/private/", "/*?page=", "/secret/"}
	if len(rules.disallowed) != len(want) {
		t.Fatalf("disallowed = %v, want %v", rules.disallowed, want)
	}
	for i, p := range want {
		if rules.disallowed[i] != p {
			t.Errorf("disallowed[%d] = %q, want %q", i, rules.disallowed[i], p)
		}
	}

	// The googlebot group is not ours.
	for _, p := range rules.disallowed {
		if p == "/google-only/" {
			t.Error("foreign agent group must be ignored")
		}
	}

	if len(rules.allowed) != 1 || rules.allowed[0] != "/private/open" {
		t.Errorf("allowed = %v", rules.allowed)
	}
	if rules.crawlDelay != 1500*time.Millisecond {
		t.Errorf("crawl delay = %v, want 1.5s", rules.crawlDelay)
	}
}

func TestParseRobotsTxtEmpty(t *testing.T) {
	rules := parseRobotsTxt("")
	if len(rules.disallowed) != 0 || len(rules.allowed) != 0 || rules.crawlDelay != 0 {
		t.Errorf("empty file should yield empty rules: %+v", rules)
	}
}

// --- Pattern Tests ---

func TestMatchRobotsPattern(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/private/", "/private/data", true},
		{"/private/", "/public", false},
		{"/private", "/private-extra", true}, // prefix match, per the standard
		{"/exact$", "/exact", true},
		{"/exact$", "/exact/sub", false},
		{"/*.pdf$", "/docs/manual.pdf", true},
		{"/*.pdf$", "/docs/manual.pdf.html", false},
		{"/*?page=", "/venues?page=2", true},
		{"/*?page=", "/venues", false},
		{"/a*b*c", "/aXbYc", true},
		{"/a*b*c", "/aXbY", false},
		{"", "/anything", false},
	}

	for _, c := range cases {
		if got := matchRobotsPattern(c.pattern, c.path); got != c.want {
			t.Errorf("match(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

// --- Policy Tests ---

func TestRobotsAllowed(t *testing.T) {
	srv, fetches := robotsServer(t, `User-agent: *
Disallow: /private/
Allow: /private/open
Crawl-delay: 2
`)

	r := NewRobots(true)

	if !r.Allowed(srv.URL + "/public") {
		t.Error("unmentioned path should be allowed")
	}
	if r.Allowed(srv.URL + "/private/data") {
		t.Error("disallowed path should be blocked")
	}
	if !r.Allowed(srv.URL + "/private/open/doc") {
		t.Error("allow rule should override the disallow")
	}
	if d := r.CrawlDelay(srv.URL + "/anything"); d != 2*time.Second {
		t.Errorf("crawl delay = %v, want 2s", d)
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", n)
	}
}

func TestRobotsQueryStringMatching(t *testing.T) {
	srv, _ := robotsServer(t, `User-agent: *
Disallow: /*?page=
`)

	r := NewRobots(true)
	if !r.Allowed(srv.URL + "/venues") {
		t.Error("bare listing path should be allowed")
	}
	if r.Allowed(srv.URL + "/venues?page=2") {
		t.Error("paginated URL should match the query pattern")
	}
}

func TestRobotsMissingFileAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	r := NewRobots(true)
	if !r.Allowed(srv.URL + "/private/data") {
		t.Error("a missing robots.txt allows everything")
	}
	if d := r.CrawlDelay(srv.URL); d != 0 {
		t.Errorf("crawl delay = %v, want 0", d)
	}
}

func TestRobotsDisabledNeverFetches(t *testing.T) {
	srv, fetches := robotsServer(t, "User-agent: *\nDisallow: /\n")

	r := NewRobots(false)
	if !r.Allowed(srv.URL + "/anything") {
		t.Error("disabled policy should allow everything")
	}
	if d := r.CrawlDelay(srv.URL); d != 0 {
		t.Errorf("crawl delay = %v, want 0", d)
	}
	if n := fetches.Load(); n != 0 {
		t.Errorf("disabled policy fetched robots.txt %d times", n)
	}
}

func TestRobotsCrawlDelayReadsCacheOnly(t *testing.T) {
	srv, fetches := robotsServer(t, "User-agent: *\nCrawl-delay: 3\n")

	r := NewRobots(true)
	// CrawlDelay never triggers a fetch; before the first Allowed call
	// the host is unknown and the delay is zero.
	if d := r.CrawlDelay(srv.URL + "/page"); d != 0 {
		t.Errorf("crawl delay before consulting = %v, want 0", d)
	}
	if n := fetches.Load(); n != 0 {
		t.Errorf("CrawlDelay triggered %d fetches", n)
	}

	r.Allowed(srv.URL + "/page")
	if d := r.CrawlDelay(srv.URL + "/page"); d != 3*time.Second {
		t.Errorf("crawl delay after consulting = %v, want 3s", d)
	}
}

func TestRobotsBadURLAllowed(t *testing.T) {
	r := NewRobots(true)
	if !r.Allowed("://broken") {
		t.Error("unparsable URL should fall through to allowed")
	}
	if !r.Allowed("relative/path") {
		t.Error("hostless URL should fall through to allowed")
	}
}

// --- Crawler Integration Tests ---

func TestDetailSkipsDisallowedTarget(t *testing.T) {
	srv, _ := robotsServer(t, "User-agent: *\nDisallow: /blocked/\n")

	cfg := testConfig()
	cfg.Crawl.RespectRobots = true
	cfg.Crawl.ListingURL = srv.URL + "/posts"

	entries := []types.LinkEntry{
		{Label: "Blocked", Target: srv.URL + "/blocked/item"},
		{Label: "Open", Target: srv.URL + "/posts/open"},
	}
	store := newMemStore("link")
	c := New(cfg, testLogger)
	c.SetFetcher(&fakeFetcher{pages: map[string]string{cfg.Crawl.ListingURL: "<html>listing</html>"}})
	c.SetDiscoverer(&fakeDiscoverer{entries: entries})
	x := &fakeExtractor{}
	c.SetExtractor(x)
	c.SetPipeline(pipeline.ForSchema(cfg.Schema, testLogger))
	c.SetStore(store)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	s := c.Stats()
	if s.Processed != 1 || len(x.visited) != 1 {
		t.Errorf("blocked target should be skipped before fetching: processed=%d visits=%d",
			s.Processed, len(x.visited))
	}
	if s.Skipped != 0 || s.Failed != 0 {
		t.Errorf("a robots skip counts toward nothing: %+v", s)
	}
	if len(x.visited) == 1 && x.visited[0] != srv.URL+"/posts/open" {
		t.Errorf("wrong target visited: %s", x.visited[0])
	}
}

func TestDetailListingDisallowedFatal(t *testing.T) {
	srv, _ := robotsServer(t, "User-agent: *\nDisallow: /posts\n")

	cfg := testConfig()
	cfg.Crawl.RespectRobots = true
	cfg.Crawl.ListingURL = srv.URL + "/posts"

	store := newMemStore("link")
	c, _ := newDetailCrawler(cfg, makeEntries(2), store)

	if err := c.Run(context.Background()); !errors.Is(err, types.ErrDiscoveryFailed) {
		t.Errorf("disallowed listing should be fatal, got %v", err)
	}
}

func TestListingDisallowedPageStopsPagination(t *testing.T) {
	srv, _ := robotsServer(t, "User-agent: *\nDisallow: /*?page=\n")

	cfg := listingTestConfig()
	cfg.Crawl.RespectRobots = true
	cfg.Crawl.ListingURL = srv.URL + "/venues"
	base := cfg.Crawl.ListingURL

	f := &fakeFetcher{pages: map[string]string{
		base:             "<html>page 1</html>",
		base + "?page=2": "<html>page 2</html>",
	}}
	px := &fakePageExtractor{pages: map[string]pageResult{
		base:             venuePage("A", "B"),
		base + "?page=2": venuePage("C"),
	}}
	store := newMemStore("name")
	c := newListingCrawler(cfg, f, px, store)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("a disallowed later page should stop quietly: %v", err)
	}
	if c.Stats().Processed != 2 {
		t.Errorf("page 1 results should survive, processed %d", c.Stats().Processed)
	}
	if len(f.calls) != 1 {
		t.Errorf("the disallowed page must not be fetched: %v", f.calls)
	}
}
