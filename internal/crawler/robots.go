package crawler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Robots fetches, caches and enforces robots.txt rules. One instance serves
// a whole run; rules are fetched lazily per host on the first Allowed call.
// A robots.txt that cannot be fetched allows everything.
type Robots struct {
	enabled bool
	cache   map[string]*robotsRules
	mu      sync.Mutex
	client  *http.Client
}

type robotsRules struct {
	disallowed []string
	allowed    []string
	crawlDelay time.Duration
}

// NewRobots creates a robots.txt policy. When disabled every URL is allowed
// and no robots.txt is ever fetched.
func NewRobots(enabled bool) *Robots {
	return &Robots{
		enabled: enabled,
		cache:   make(map[string]*robotsRules),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Allowed reports whether the URL may be fetched under its host's
// robots.txt.
func (r *Robots) Allowed(rawURL string) bool {
	if !r.enabled {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	rules := r.rulesFor(u.Scheme + "://" + u.Host)
	if rules == nil {
		return true
	}

	// Patterns match against the path with the query string appended, so
	// rules like "Disallow: /*?page=" work.
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	// Allow rules override disallow rules.
	for _, pattern := range rules.allowed {
		if matchRobotsPattern(pattern, path) {
			return true
		}
	}
	for _, pattern := range rules.disallowed {
		if matchRobotsPattern(pattern, path) {
			return false
		}
	}
	return true
}

// CrawlDelay returns the Crawl-delay declared for the URL's host, zero when
// none is declared or the host has not been consulted yet.
func (r *Robots) CrawlDelay(rawURL string) time.Duration {
	if !r.enabled {
		return 0
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0
	}

	r.mu.Lock()
	rules, ok := r.cache[u.Scheme+"://"+u.Host]
	r.mu.Unlock()
	if !ok || rules == nil {
		return 0
	}
	return rules.crawlDelay
}

func (r *Robots) rulesFor(origin string) *robotsRules {
	r.mu.Lock()
	rules, ok := r.cache[origin]
	r.mu.Unlock()
	if ok {
		return rules
	}

	rules = r.fetch(origin)
	r.mu.Lock()
	r.cache[origin] = rules
	r.mu.Unlock()
	return rules
}

func (r *Robots) fetch(origin string) *robotsRules {
	resp, err := r.client.Get(origin + "/robots.txt")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}
	return parseRobotsTxt(string(body))
}

// parseRobotsTxt reads the rule groups addressed to us ("*" or a grazegoat
// agent token).
func parseRobotsTxt(content string) *robotsRules {
	rules := &robotsRules{}
	ours := false

	for _, line := range strings.Split(content, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch key {
		case "user-agent":
			agent := strings.ToLower(value)
			ours = agent == "*" || strings.Contains(agent, "grazegoat")
		case "disallow":
			if ours && value != "" {
				rules.disallowed = append(rules.disallowed, value)
			}
		case "allow":
			if ours && value != "" {
				rules.allowed = append(rules.allowed, value)
			}
		case "crawl-delay":
			if ours {
				var delay float64
				if _, err := fmt.Sscanf(value, "%f", &delay); err == nil {
					rules.crawlDelay = time.Duration(delay * float64(time.Second))
				}
			}
		}
	}

	return rules
}

// matchRobotsPattern matches a path against a robots.txt pattern with
// * and $ wildcards.
func matchRobotsPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}

	mustEnd := strings.HasSuffix(pattern, "$")
	if mustEnd {
		pattern = pattern[:len(pattern)-1]
	}

	if strings.Contains(pattern, "*") {
		return matchWildcard(pattern, path, mustEnd)
	}

	if mustEnd {
		return path == pattern
	}
	return strings.HasPrefix(path, pattern)
}

func matchWildcard(pattern, path string, mustEnd bool) bool {
	parts := strings.Split(pattern, "*")
	pos := 0

	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}

	if mustEnd {
		return pos == len(path)
	}
	return true
}
