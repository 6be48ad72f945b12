package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Gaurav-Gosain/coursedl/course"
)

// NewCollector returns the synchronous collector shared by the session and
// the page fetcher. Clones share its HTTP client and cookie jar.
func NewCollector(client *http.Client, userAgent string) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.UserAgent(userAgent),
	)
	if client != nil {
		c.SetClient(client)
	}
	c.SetRequestTimeout(30 * time.Second)
	return c
}

// CollyFetcher fetches pages through clones of a base collector.
type CollyFetcher struct {
	Collector *colly.Collector
	BaseURL   string // used to resolve relative links in parsed pages
}

// NewCollyFetcher returns a fetcher that parses unit pages relative to baseURL.
func NewCollyFetcher(c *colly.Collector, baseURL string) *CollyFetcher {
	return &CollyFetcher{Collector: c, BaseURL: baseURL}
}

// Do performs one request and returns the response body.
func (f *CollyFetcher) Do(ctx context.Context, method, url string, body io.Reader, headers http.Header) ([]byte, error) {
	c := f.Collector.Clone()
	c.AllowURLRevisit = true
	c.Context = ctx

	var (
		respBody []byte
		status   int
	)
	c.OnResponse(func(r *colly.Response) {
		respBody = r.Body
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	// colly sets a User-Agent on the header it is given.
	var hdr http.Header
	if headers != nil {
		hdr = headers.Clone()
	}

	if err := c.Request(method, url, body, nil, hdr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, &FetchError{URL: url, Status: status, Err: err}
	}
	return respBody, nil
}

// Fetch GETs url and returns the body.
func (f *CollyFetcher) Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	return f.Do(ctx, http.MethodGet, url, nil, headers)
}

// FetchUnits implements PageFetcher.
func (f *CollyFetcher) FetchUnits(ctx context.Context, url string, headers http.Header) ([]course.Unit, error) {
	body, err := f.Fetch(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	units, err := ParseUnits(body, f.BaseURL)
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}
	return units, nil
}
