package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrDiscoveryFailed  = errors.New("listing discovery failed")
	ErrNoResults        = errors.New("no results marker found")
	ErrIncompleteRecord = errors.New("record missing required fields")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrEmptyResponse    = errors.New("empty response body")
	ErrCrawlStopped     = errors.New("crawl has been stopped")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ExtractError wraps failures inside the item extractor. Stage is one of
// "fetch", "convert", "llm", "parse", "result".
type ExtractError struct {
	URL   string
	Stage string
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract error for %s at stage %q: %v", e.URL, e.Stage, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// StoreError wraps errors from a storage backend. Op is one of "connect",
// "read", "write", "keys", "close".
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PipelineError wraps errors from a validation stage.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
