package scraper

import (
	"context"
	"net/http"

	"charm.land/log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Gaurav-Gosain/coursedl/course"
)

// DefaultWorkers is the number of pages fetched in parallel when none is set.
const DefaultWorkers = 20

// PageFetcher fetches a subsection page and turns it into units.
type PageFetcher interface {
	FetchUnits(ctx context.Context, url string, headers http.Header) ([]course.Unit, error)
}

// Extractor fans subsection URLs out to a fixed pool of workers.
type Extractor struct {
	Fetcher PageFetcher
	Headers http.Header // shared read-only by every worker
	Workers int
	OnEvent func(Event) // optional; called from worker goroutines
}

func (x *Extractor) emit(e Event) {
	if x.OnEvent != nil {
		x.OnEvent(e)
	}
}

// ExtractAll fetches and parses every URL and returns the units keyed by URL.
//
// The first fetch or parse failure cancels the batch and is returned; no
// partial map is produced.
func (x *Extractor) ExtractAll(ctx context.Context, urls []string) (course.AllUnits, error) {
	urls = course.Unique(urls)
	if len(urls) == 0 {
		return course.AllUnits{}, nil
	}

	workers := x.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	workers = min(workers, len(urls))

	// Each worker writes only to the slot of the index it received.
	slots := make([][]course.Unit, len(urls))
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				units, err := x.extract(gctx, urls[i])
				if err != nil {
					return err
				}
				slots[i] = units
			}
			return nil
		})
	}

feed:
	for i := range urls {
		select {
		case jobs <- i:
		case <-gctx.Done():
			break feed
		}
	}
	close(jobs)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := make(course.AllUnits, len(urls))
	for i, u := range urls {
		all[u] = slots[i]
	}
	return all, nil
}

func (x *Extractor) extract(ctx context.Context, url string) ([]course.Unit, error) {
	log.FromContext(ctx).Debug("Processing", "url", url)
	x.emit(Event{Type: "fetching", URL: url})

	units, err := x.Fetcher.FetchUnits(ctx, url, x.Headers)
	if err != nil {
		x.emit(Event{Type: "error", URL: url, Err: err})
		return nil, err
	}
	if units == nil {
		units = []course.Unit{}
	}

	x.emit(Event{Type: "done", URL: url, Units: len(units)})
	return units, nil
}
