package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"charm.land/log/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
)

// HTTPClient performs direct file and subtitle downloads with the session's
// client and headers.
type HTTPClient struct {
	Client  *http.Client
	Headers http.Header // shared read-only
}

func (c *HTTPClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.Headers != nil {
		req.Header = c.Headers.Clone()
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp, nil
}

// Fetch streams url into dest, replacing any existing file. The body goes to
// a temporary file that is renamed into place once complete.
func (c *HTTPClient) Fetch(ctx context.Context, url, dest string) error {
	start := time.Now()

	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer pending.Cleanup()

	n, err := io.Copy(pending, resp.Body)
	if err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", dest, err)
	}

	log.FromContext(ctx).Debug("Fetched", "url", url, "size", humanize.Bytes(uint64(n)), "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// Languages returns the transcript languages listed at url.
func (c *HTTPClient) Languages(ctx context.Context, url string) ([]string, error) {
	var langs []string
	if err := c.getJSON(ctx, url, &langs); err != nil {
		return nil, err
	}
	return langs, nil
}

// Transcript downloads an edX transcript and returns it in SRT form.
func (c *HTTPClient) Transcript(ctx context.Context, url string) (string, error) {
	var t Transcript
	if err := c.getJSON(ctx, url, &t); err != nil {
		return "", err
	}
	return t.SRT(), nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Transcript is the edX transcript document: parallel lists of start and end
// times in milliseconds and caption text.
type Transcript struct {
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
	Text  []string  `json:"text"`
}

// SRT renders the transcript as SubRip, skipping empty captions.
func (t Transcript) SRT() string {
	n := min(len(t.Start), len(t.End), len(t.Text))

	var b strings.Builder
	seq := 0
	for i := 0; i < n; i++ {
		if strings.TrimSpace(t.Text[i]) == "" {
			continue
		}
		seq++
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", seq, srtTime(t.Start[i]), srtTime(t.End[i]), t.Text[i])
	}
	return b.String()
}

func srtTime(ms float64) string {
	d := time.Duration(ms * float64(time.Millisecond))
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, d/time.Millisecond)
}
