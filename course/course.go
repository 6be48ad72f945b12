package course

// Course is an enrolled course as listed on the dashboard.
type Course struct {
	ID    string
	Name  string
	URL   string
	State string // "Started", "Not yet", ...
}

// SubSection is the finest navigable page of a course. URL is the key used
// for fetching and caching.
type SubSection struct {
	Name string
	URL  string
}

// Section groups subsections. Position is 1-based page order.
type Section struct {
	Position    int
	Name        string
	SubSections []SubSection
}

// Unit is one downloadable item found on a subsection page.
//
// Optional fields are pointers so that an absent value survives a cache round
// trip distinct from an empty one.
type Unit struct {
	VideoYoutubeURL  *string  `json:"video_youtube_url"`
	AvailableSubsURL *string  `json:"available_subs_url"`
	SubTemplateURL   *string  `json:"sub_template_url"`
	MP4URLs          []string `json:"mp4_urls"`
	ResourcesURLs    []string `json:"resources_urls"`
}

// HasMedia reports whether the unit carries anything downloadable on its own.
func (u Unit) HasMedia() bool {
	return u.VideoYoutubeURL != nil || len(u.MP4URLs) > 0 || len(u.ResourcesURLs) > 0
}

// AllUnits maps a subsection URL to the units found on that page.
type AllUnits map[string][]Unit

// Len returns the total number of units across all subsections.
func (a AllUnits) Len() int {
	n := 0
	for _, units := range a {
		n += len(units)
	}
	return n
}

// Str returns a pointer to s, for filling optional Unit fields.
func Str(s string) *string {
	return &s
}

// Unique returns urls without repeats, keeping the first occurrence.
func Unique(urls []string) []string {
	if len(urls) == 0 {
		return urls
	}
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
