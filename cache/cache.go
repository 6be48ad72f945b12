// Package cache persists extracted units between runs so that subsection
// pages already parsed are never fetched again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"charm.land/log/v2"
	"github.com/google/renameio/v2"

	"github.com/Gaurav-Gosain/coursedl/course"
)

// DefaultFilename is the cache file used when none is configured.
const DefaultFilename = "edx-dl.cache"

// Extractor is the part of the scraper the reconciler needs.
type Extractor interface {
	ExtractAll(ctx context.Context, urls []string) (course.AllUnits, error)
}

// CorruptError reports a cache file that exists but cannot be decoded.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Load reads the cache at path. A missing file yields an empty map.
func Load(path string) (course.AllUnits, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return course.AllUnits{}, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}

	units := course.AllUnits{}
	if err := json.Unmarshal(b, &units); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	if units == nil {
		// A file holding "null" decodes to a nil map.
		units = course.AllUnits{}
	}
	return units, nil
}

// Write replaces the cache at path with units. The file is swapped in
// atomically so an interrupted run leaves the previous cache intact.
func Write(ctx context.Context, path string, units course.AllUnits) error {
	log.FromContext(ctx).Info("Writing cache", "urls", len(units), "path", path)

	b, err := json.Marshal(units)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// ExtractWithCache returns the units of every URL, fetching only those not
// already in the cache at path. The cache itself is not updated; call Write.
func ExtractWithCache(ctx context.Context, path string, urls []string, x Extractor) (course.AllUnits, error) {
	cached, err := Load(path)
	if err != nil {
		return nil, err
	}

	var fresh []string
	for _, u := range urls {
		if _, ok := cached[u]; !ok {
			fresh = append(fresh, u)
		}
	}
	log.FromContext(ctx).Info("Loading from cache", "urls", len(cached), "path", path, "new", len(fresh))

	extracted, err := x.ExtractAll(ctx, fresh)
	if err != nil {
		return nil, err
	}

	all := make(course.AllUnits, len(cached)+len(extracted))
	for u, units := range cached {
		all[u] = units
	}
	for u, units := range extracted {
		all[u] = units
	}
	return all, nil
}
