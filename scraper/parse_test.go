package scraper

import (
	"html"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gaurav-Gosain/coursedl/course"
)

const base = "https://courses.edx.org"

const videoVertical = `<div class="xblock">
<div class="video" data-metadata='{"streams":"0.75:aaaaaaaaaaa,1.00:dQw4w9WgXcQ","sources":["https://cdn.edx.org/v/lecture1.mp4","https://cdn.edx.org/v/lecture1.mp4","https://cdn.edx.org/v/lecture1.webm"],"transcriptTranslationUrl":"/courses/X/xblock/video/handler/transcript/translation/__lang__","transcriptAvailableTranslationsUrl":"/courses/X/xblock/video/handler/transcript/available_translations"}'></div>
<p>Slides: <a href="/static/slides1.pdf">slides</a> and <a href="/static/slides1.pdf">again</a></p>
<p><a href="https://example.com/about">about</a></p>
</div>`

const legacyVertical = `<div class="video" data-streams="1.0:abcdefghijk" data-sources='["https://cdn.edx.org/old.mp4"]' data-transcript-translation-url="/transcript/translation" data-transcript-available-translations-url="/transcript/available"></div>`

func seqPage(verticals ...string) []byte {
	page := `<html><body><div class="sequence">`
	for i, v := range verticals {
		page += `<div id="seq_contents_` + string(rune('0'+i)) + `" class="seq_contents">` + html.EscapeString(v) + `</div>`
	}
	return []byte(page + `</div></body></html>`)
}

func TestParseUnits_SequenceFragments(t *testing.T) {
	units, err := ParseUnits(seqPage(videoVertical, `<p>just text</p>`, legacyVertical), base)
	require.NoError(t, err)
	require.Len(t, units, 2, "text-only vertical is dropped")

	first := units[0]
	require.NotNil(t, first.VideoYoutubeURL)
	assert.Equal(t, YouTubeWatchURL+"dQw4w9WgXcQ", *first.VideoYoutubeURL)
	assert.Equal(t, []string{"https://cdn.edx.org/v/lecture1.mp4"}, first.MP4URLs)
	assert.Equal(t, []string{base + "/static/slides1.pdf"}, first.ResourcesURLs)
	require.NotNil(t, first.SubTemplateURL)
	assert.Equal(t, base+"/courses/X/xblock/video/handler/transcript/translation/%s", *first.SubTemplateURL)
	require.NotNil(t, first.AvailableSubsURL)
	assert.Equal(t, base+"/courses/X/xblock/video/handler/transcript/available_translations", *first.AvailableSubsURL)

	second := units[1]
	require.NotNil(t, second.VideoYoutubeURL)
	assert.Equal(t, YouTubeWatchURL+"abcdefghijk", *second.VideoYoutubeURL)
	assert.Equal(t, []string{"https://cdn.edx.org/old.mp4"}, second.MP4URLs)
	assert.Equal(t, base+"/transcript/translation/%s", *second.SubTemplateURL)
	assert.Empty(t, second.ResourcesURLs)
}

func TestParseUnits_PlainPage(t *testing.T) {
	page := []byte(`<html><body>` + legacyVertical + `</body></html>`)
	units, err := ParseUnits(page, base)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, YouTubeWatchURL+"abcdefghijk", *units[0].VideoYoutubeURL)
}

func TestParseUnits_NoMedia(t *testing.T) {
	units, err := ParseUnits([]byte(`<html><body><p>Nothing here</p></body></html>`), base)
	require.NoError(t, err)
	assert.Empty(t, units)
	assert.NotNil(t, units)
}

func TestParseUnits_BadMetadata(t *testing.T) {
	page := []byte(`<html><body><div data-metadata='{"streams":'></div></body></html>`)
	_, err := ParseUnits(page, base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video metadata")
}

func TestParseCourses(t *testing.T) {
	page := []byte(`<html><body>
<article class="course"><h3> Intro to CS </h3><a href="/courses/MITx/6.00x/2024/info">open</a></article>
<article class="course"><h3>Upcoming</h3></article>
</body></html>`)

	courses, err := ParseCourses(page, base)
	require.NoError(t, err)
	assert.Equal(t, []course.Course{
		{ID: "MITx/6.00x/2024", Name: "Intro to CS", URL: base + "/courses/MITx/6.00x/2024/info", State: course.StateStarted},
		{Name: "Upcoming", State: "Not yet"},
	}, courses)
}

func TestParseSections(t *testing.T) {
	page := []byte(`<html><body><nav aria-label="Course Navigation">
<div class="chapter"><h3><a href="#">Week 1</a></h3><ul>
  <li><a href="/courses/X/courseware/w1/s1/"><p>Welcome</p></a></li>
  <li><a href="/courses/X/courseware/w1/s2/">Lab</a></li>
</ul></div>
<div class="chapter"><h3><a href="#">Week 2</a></h3><ul></ul></div>
</nav></body></html>`)

	sections, err := ParseSections(page, base)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, course.Section{
		Position: 1,
		Name:     "Week 1",
		SubSections: []course.SubSection{
			{Name: "Welcome", URL: base + "/courses/X/courseware/w1/s1/"},
			{Name: "Lab", URL: base + "/courses/X/courseware/w1/s2/"},
		},
	}, sections[0])
	assert.Equal(t, 2, sections[1].Position)
	assert.Empty(t, sections[1].SubSections)
}

func TestMarkdownLinks(t *testing.T) {
	md := "See [notes](/files/notes.pdf#p2), <https://example.com/x.zip> and [mail](mailto:a@b.c) [top](#top)"
	u, err := url.Parse(base + "/courses/")
	require.NoError(t, err)

	links := markdownLinks([]byte(md), u, nil)
	assert.Equal(t, []string{base + "/files/notes.pdf", "https://example.com/x.zip"}, links)

	onlyZip := func(u *url.URL) bool { return strings.HasSuffix(u.Path, ".zip") }
	assert.Equal(t, []string{"https://example.com/x.zip"}, markdownLinks([]byte(md), u, onlyZip))
}

func TestIsResource(t *testing.T) {
	for link, want := range map[string]bool{
		"https://x/a/Slides.PDF":  true,
		"https://x/code.zip?dl=1": true,
		"https://x/page.html":     false,
		"https://x/courses/":      false,
	} {
		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, want, isResource(u), link)
	}
}
