package fetcher

import (
	"fmt"
	"net/http/cookiejar"

	"github.com/google/uuid"
)

// Session carries the identity of one crawl run: a stable id used for
// logging and for browser page reuse, plus the cookie jar shared by every
// fetch in the run so listing and detail requests look like one visitor.
type Session struct {
	ID  string
	Jar *cookiejar.Jar
}

// NewSession creates a Session. An empty id gets a generated one.
func NewSession(id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Session{ID: id, Jar: jar}, nil
}
