package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Gaurav-Gosain/coursedl/course"
)

// YouTubeWatchURL is the prefix for video ids found in edX stream lists.
const YouTubeWatchURL = "https://youtube.com/watch?v="

// langPlaceholder is the language marker in newer edX transcript URLs.
const langPlaceholder = "__lang__"

// streamRE pulls the normal-speed YouTube id out of "0.75:id1,1.00:id2".
var streamRE = regexp.MustCompile(`1\.0+:([\w-]{11})`)

type videoMetadata struct {
	Streams                     string   `json:"streams"`
	Sources                     []string `json:"sources"`
	TranscriptTranslationURL    string   `json:"transcriptTranslationUrl"`
	TranscriptAvailableLangsURL string   `json:"transcriptAvailableTranslationsUrl"`
}

// ParseUnits extracts the units of a subsection page.
//
// Sequence pages embed each vertical as escaped HTML in a seq_contents_N
// element; every such fragment yields at most one unit. Pages without
// fragments are treated as a single fragment.
func ParseUnits(body []byte, baseURL string) ([]course.Unit, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var fragments []string
	doc.Find(`[id^="seq_contents_"]`).Each(func(_ int, s *goquery.Selection) {
		if f := strings.TrimSpace(s.Text()); f != "" {
			fragments = append(fragments, f)
		}
	})
	if len(fragments) == 0 {
		fragments = []string{string(body)}
	}

	units := []course.Unit{}
	for i, f := range fragments {
		u, err := parseFragment(f, baseURL)
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", i+1, err)
		}
		if u.HasMedia() {
			units = append(units, u)
		}
	}
	return units, nil
}

func parseFragment(fragment, baseURL string) (course.Unit, error) {
	var u course.Unit

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return u, err
	}

	var metaErr error
	doc.Find("[data-metadata]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var m videoMetadata
		if err := json.Unmarshal([]byte(s.AttrOr("data-metadata", "")), &m); err != nil {
			metaErr = fmt.Errorf("video metadata: %w", err)
			return false
		}
		applyMetadata(&u, m, baseURL)
		return true
	})
	if metaErr != nil {
		return u, metaErr
	}

	// Older pages carry the same data as individual attributes.
	doc.Find("[data-streams]").Each(func(_ int, s *goquery.Selection) {
		m := videoMetadata{
			Streams:                     s.AttrOr("data-streams", ""),
			TranscriptTranslationURL:    s.AttrOr("data-transcript-translation-url", ""),
			TranscriptAvailableLangsURL: s.AttrOr("data-transcript-available-translations-url", ""),
		}
		if raw := s.AttrOr("data-sources", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &m.Sources); err != nil {
				m.Sources = strings.Split(raw, ",")
			}
		}
		applyMetadata(&u, m, baseURL)
	})

	links, err := resourceLinks(fragment, baseURL)
	if err != nil {
		return u, fmt.Errorf("resource links: %w", err)
	}
	u.ResourcesURLs = course.Unique(append(u.ResourcesURLs, links...))
	u.MP4URLs = course.Unique(u.MP4URLs)
	return u, nil
}

func applyMetadata(u *course.Unit, m videoMetadata, baseURL string) {
	if u.VideoYoutubeURL == nil {
		if match := streamRE.FindStringSubmatch(m.Streams); match != nil {
			u.VideoYoutubeURL = course.Str(YouTubeWatchURL + match[1])
		}
	}
	if u.AvailableSubsURL == nil && m.TranscriptAvailableLangsURL != "" {
		u.AvailableSubsURL = course.Str(resolve(baseURL, m.TranscriptAvailableLangsURL))
	}
	if u.SubTemplateURL == nil && m.TranscriptTranslationURL != "" {
		tmpl := resolve(baseURL, m.TranscriptTranslationURL)
		if strings.Contains(tmpl, langPlaceholder) {
			tmpl = strings.ReplaceAll(tmpl, langPlaceholder, "%s")
		} else {
			tmpl = strings.TrimSuffix(tmpl, "/") + "/%s"
		}
		u.SubTemplateURL = course.Str(tmpl)
	}
	for _, src := range m.Sources {
		src = strings.TrimSpace(src)
		if strings.HasSuffix(strings.ToLower(src), ".mp4") && strings.HasPrefix(src, "http") {
			u.MP4URLs = append(u.MP4URLs, src)
		}
	}
}

// ParseCourses extracts the enrolled courses from the dashboard page.
// Courses without a link have not started yet.
func ParseCourses(body []byte, baseURL string) ([]course.Course, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var courses []course.Course
	doc.Find("article.course").Each(func(_ int, s *goquery.Selection) {
		c := course.Course{
			Name:  strings.TrimSpace(s.Find("h3").First().Text()),
			State: "Not yet",
		}
		if href, ok := s.Find("a[href]").First().Attr("href"); ok {
			c.ID = strings.TrimSuffix(strings.TrimPrefix(href, "/courses/"), "/info")
			c.URL = resolve(baseURL, href)
			c.State = course.StateStarted
		}
		courses = append(courses, c)
	})
	return courses, nil
}

// ParseSections extracts the chapters and their subsections from a
// courseware page. Positions follow page order starting at 1.
func ParseSections(body []byte, baseURL string) ([]course.Section, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var sections []course.Section
	doc.Find("div.chapter").Each(func(i int, s *goquery.Selection) {
		sec := course.Section{
			Position: i + 1,
			Name:     strings.TrimSpace(s.Find("h3").First().Text()),
		}
		s.Find("ul li").Each(func(_ int, li *goquery.Selection) {
			a := li.Find("a[href]").First()
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			name := strings.TrimSpace(li.Find("p").First().Text())
			if name == "" {
				name = strings.TrimSpace(a.Text())
			}
			sec.SubSections = append(sec.SubSections, course.SubSection{
				Name: name,
				URL:  resolve(baseURL, href),
			})
		})
		sections = append(sections, sec)
	})
	return sections, nil
}

func resolve(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
