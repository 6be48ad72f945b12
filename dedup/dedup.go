// Package dedup removes resources that appear more than once across a
// course tree, keeping the first occurrence.
package dedup

import (
	"sort"

	"github.com/Gaurav-Gosain/coursedl/course"
)

// Result is the outcome of Deduplicate.
type Result struct {
	Filtered    course.AllUnits
	TotalBefore int
	TotalAfter  int
}

// Removed is the number of URLs dropped as duplicates.
func (r Result) Removed() int {
	return r.TotalBefore - r.TotalAfter
}

// Deduplicate rewrites every unit so each video, mp4 and resource URL is kept
// by exactly one unit: the first one met when visiting the subsections in
// order, then any remaining keys of all in sorted order. Subtitle URLs are
// carried through untouched. Units left without media are dropped.
func Deduplicate(all course.AllUnits, order []string) Result {
	claimed := make(map[string]bool)
	filtered := make(course.AllUnits, len(all))

	for _, key := range Traversal(all, order) {
		filtered[key] = reduce(all[key], claimed)
	}

	return Result{
		Filtered:    filtered,
		TotalBefore: Count(all),
		TotalAfter:  Count(filtered),
	}
}

// Traversal returns the keys of all in deduplication order.
func Traversal(all course.AllUnits, order []string) []string {
	keys := make([]string, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, k := range order {
		if _, ok := all[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	var rest []string
	for k := range all {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func reduce(units []course.Unit, claimed map[string]bool) []course.Unit {
	reduced := make([]course.Unit, 0, len(units))
	for _, u := range units {
		out := course.Unit{
			AvailableSubsURL: u.AvailableSubsURL,
			SubTemplateURL:   u.SubTemplateURL,
		}
		if u.VideoYoutubeURL != nil && !claimed[*u.VideoYoutubeURL] {
			claimed[*u.VideoYoutubeURL] = true
			out.VideoYoutubeURL = u.VideoYoutubeURL
		}
		out.MP4URLs = claim(u.MP4URLs, claimed)
		out.ResourcesURLs = claim(u.ResourcesURLs, claimed)
		if out.HasMedia() {
			reduced = append(reduced, out)
		}
	}
	return reduced
}

func claim(urls []string, claimed map[string]bool) []string {
	kept := []string{}
	for _, u := range urls {
		if claimed[u] {
			continue
		}
		claimed[u] = true
		kept = append(kept, u)
	}
	return kept
}

// Count is the number of URLs held by the units, subtitle URLs included.
func Count(all course.AllUnits) int {
	n := 0
	for _, units := range all {
		for _, u := range units {
			if u.VideoYoutubeURL != nil {
				n++
			}
			if u.AvailableSubsURL != nil {
				n++
			}
			if u.SubTemplateURL != nil {
				n++
			}
			n += len(u.MP4URLs) + len(u.ResourcesURLs)
		}
	}
	return n
}
