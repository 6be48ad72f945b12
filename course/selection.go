package course

import (
	"sort"
	"strconv"
	"strings"
)

// StateStarted is the dashboard state of courses that can be downloaded.
const StateStarted = "Started"

// CourseSelection is a course together with the sections chosen for it.
type CourseSelection struct {
	Course   Course
	Sections []Section
}

// Selection is the ordered set of courses and sections to process.
type Selection []CourseSelection

// Started keeps the courses whose state is StateStarted.
func Started(courses []Course) []Course {
	var out []Course
	for _, c := range courses {
		if c.State == StateStarted {
			out = append(out, c)
		}
	}
	return out
}

// SelectByURL returns the available courses whose URL is in urls, in the
// order the courses are available.
func SelectByURL(available []Course, urls []string) []Course {
	want := make(map[string]bool, len(urls))
	for _, u := range urls {
		want[strings.TrimSpace(u)] = true
	}
	var out []Course
	for _, c := range available {
		if want[c.URL] {
			out = append(out, c)
		}
	}
	return out
}

// SortSections orders sections by ascending position.
func SortSections(sections []Section) {
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Position < sections[j].Position
	})
}

// FilterSections returns the single section at the 1-based index, or every
// section when index is empty, not a number or out of range.
func FilterSections(index string, sections []Section) []Section {
	index = strings.TrimSpace(index)
	if index == "" {
		return sections
	}
	n, err := strconv.Atoi(index)
	if err != nil || n < 1 || n > len(sections) {
		return sections
	}
	return []Section{sections[n-1]}
}

// Filter applies FilterSections to every course of the selection.
func (s Selection) Filter(index string) Selection {
	out := make(Selection, 0, len(s))
	for _, cs := range s {
		out = append(out, CourseSelection{
			Course:   cs.Course,
			Sections: FilterSections(index, cs.Sections),
		})
	}
	return out
}

// SubSectionURLs flattens the selection into subsection URLs in traversal
// order: course, then section, then subsection.
func (s Selection) SubSectionURLs() []string {
	var urls []string
	for _, cs := range s {
		for _, sec := range cs.Sections {
			for _, sub := range sec.SubSections {
				urls = append(urls, sub.URL)
			}
		}
	}
	return urls
}
