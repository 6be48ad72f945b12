package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gaurav-Gosain/coursedl/course"
	"github.com/Gaurav-Gosain/coursedl/dedup"
)

func fixture() (course.Selection, course.AllUnits) {
	sel := course.Selection{{
		Course: course.Course{ID: "go101", Name: "Intro to Go", URL: "https://x/courses/go101/info"},
		Sections: []course.Section{
			{Position: 1, Name: "Week 1", SubSections: []course.SubSection{{Name: "Basics", URL: "/s1"}}},
			{Position: 2, Name: "Week 2", SubSections: []course.SubSection{{Name: "Empty", URL: "/s2"}}},
		},
	}}
	units := course.AllUnits{
		"/s1": {
			{VideoYoutubeURL: course.Str("https://youtube.com/watch?v=abc"), SubTemplateURL: course.Str("https://x/t/%s")},
			{ResourcesURLs: []string{"https://x/notes.pdf"}},
		},
	}
	return sel, units
}

func TestReports(t *testing.T) {
	sel, units := fixture()
	reports := Reports(sel, units)
	require.Len(t, reports, 2)

	r := reports[0]
	assert.Equal(t, "Intro to Go / 01-Week_1", r.Title())
	assert.Equal(t, 2, r.Units)
	assert.Equal(t, 3, r.URLs)
	assert.Equal(t, "2 units, 3 urls", r.Detail())
	assert.Contains(t, r.Markdown, "### Basics")
	assert.Contains(t, r.Markdown, "video: <https://youtube.com/watch?v=abc>")
	assert.Contains(t, r.Markdown, "resource: <https://x/notes.pdf>")

	assert.Equal(t, 0, reports[1].Units)
	assert.Contains(t, reports[1].Markdown, "No downloadable units.")
	assert.Contains(t, Report(reports), "\n---\n")
}

func TestMenus(t *testing.T) {
	sel, _ := fixture()

	assert.Contains(t, CourseList([]course.Course{sel[0].Course}), "1. **Intro to Go** `go101`")
	assert.Contains(t, SectionsMenu(sel), "2 sections so far")
	assert.Contains(t, SectionsMenu(sel), "2. Download Week 2 videos")

	tree := SelectionTree(sel)
	assert.Contains(t, tree, "# Downloading Intro to Go `go101`")
	assert.Contains(t, tree, "- **Section 01**: Week 1\n  - Basics\n")
}

func TestDedupSummary(t *testing.T) {
	assert.Equal(t, "Removed 3 duplicated urls from 8 in total", DedupSummary(dedup.Result{TotalBefore: 8, TotalAfter: 5}))
}

func TestWriteFiles(t *testing.T) {
	sel, units := fixture()
	dir := t.TempDir()
	require.NoError(t, WriteFiles(Reports(sel, units), dir))

	got, err := os.ReadFile(filepath.Join(dir, "Intro to Go", "01-Week_1.md"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "## Week 1")
	assert.FileExists(t, filepath.Join(dir, "Intro to Go", "02-Week_2.md"))
}

func TestRenderTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTerminal(&buf, "# Hello\n\nworld", 40))
	assert.Contains(t, buf.String(), "world")
}
