package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request represents a single page fetch. The crawl loop is sequential, so
// there is no priority or retry bookkeeping here; a request is built,
// fetched once, and discarded.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Tag categorizes the request ("listing" or "detail").
	Tag string

	// Session groups requests that should reuse one browser page.
	Session string

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a Request for the given URL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidURL, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:       u,
		Headers:   make(http.Header),
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
