package scraper

import (
	"fmt"
	"net/http"
)

// Event is emitted during extraction for progress tracking.
type Event struct {
	Type  string // "fetching", "done", "error"
	URL   string
	Units int   // only for "done" events
	Err   error // only for "error" events
}

// FetchError reports a network or transport failure for one page.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d (%s): %v", e.URL, e.Status, http.StatusText(e.Status), e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a page whose structure could not be understood.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
