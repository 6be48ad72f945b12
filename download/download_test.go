package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"charm.land/log/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gaurav-Gosain/coursedl/course"
)

type fakeVideo struct {
	mu    sync.Mutex
	reqs  []VideoRequest
	fail  error
	write bool     // create the file yt-dlp would have produced
	side  []string // extensions of extra files written next to it
}

func (f *fakeVideo) Download(_ context.Context, req VideoRequest) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.write {
		for _, ext := range append([]string{"mp4"}, f.side...) {
			name := strings.NewReplacer("%(title)s", "Intro", "%(id)s", "abc", "%(ext)s", ext).Replace(req.OutputTemplate)
			if err := os.WriteFile(name, []byte(ext), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

type fakeSubs struct {
	langs       []string
	langsErr    error
	transcripts int
}

func (f *fakeSubs) Languages(context.Context, string) ([]string, error) {
	return f.langs, f.langsErr
}

func (f *fakeSubs) Transcript(_ context.Context, url string) (string, error) {
	f.transcripts++
	return "1\n00:00:00,000 --> 00:00:01,000\n" + url + "\n\n", nil
}

func selection(name string, sections ...course.Section) course.Selection {
	return course.Selection{{Course: course.Course{Name: name}, Sections: sections}}
}

func TestDownload_PreferCDNLayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "body of ", r.URL.Path)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "Downloaded")
	o := &Orchestrator{
		Options: Options{OutputDir: out, PreferCDN: true},
		Files:   &HTTPClient{Client: srv.Client()},
	}

	sel := selection("CourseA", course.Section{
		Position:    1,
		Name:        "Week 1",
		SubSections: []course.SubSection{{Name: "Lecture", URL: "/s1"}},
	})
	units := course.AllUnits{"/s1": {{MP4URLs: []string{srv.URL + "/a.mp4?x=1"}}}}

	rep, err := o.Download(context.Background(), sel, units)
	require.NoError(t, err)
	assert.Equal(t, Report{Units: 1, Files: 1}, rep)

	got, err := os.ReadFile(filepath.Join(out, "CourseA", "01-Week_1", "01-a.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "body of /a.mp4", string(got))
}

func TestDownload_CounterRunsAcrossSubsections(t *testing.T) {
	video := &fakeVideo{}
	o := &Orchestrator{
		Options: Options{OutputDir: t.TempDir(), Format: "best"},
		Video:   video,
	}

	sel := selection("C", course.Section{
		Position: 2,
		Name:     "Week: Two",
		SubSections: []course.SubSection{
			{URL: "/s1"},
			{URL: "/s2"},
		},
	})
	units := course.AllUnits{
		"/s1": {{VideoYoutubeURL: course.Str("https://youtube.com/watch?v=aaaaaaaaaaa")}},
		"/s2": {
			{VideoYoutubeURL: course.Str("https://youtube.com/watch?v=bbbbbbbbbbb")},
			{ResourcesURLs: []string{"https://x/notes.pdf"}},
		},
	}

	rep, err := o.Download(context.Background(), sel, units)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Units)
	assert.Equal(t, 2, rep.Videos)

	require.Len(t, video.reqs, 2)
	dir := filepath.Join(o.Options.OutputDir, "C", "02-Week-_Two")
	assert.Equal(t, filepath.Join(dir, "01-%(title)s-%(id)s.%(ext)s"), video.reqs[0].OutputTemplate)
	assert.Equal(t, filepath.Join(dir, "02-%(title)s-%(id)s.%(ext)s"), video.reqs[1].OutputTemplate)
	assert.Equal(t, "best/mp4", video.reqs[0].Format)
}

func TestDownload_FailuresAreCountedAndSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp4" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	out := t.TempDir()
	o := &Orchestrator{
		Options: Options{OutputDir: out, PreferCDN: true},
		Files:   &HTTPClient{Client: srv.Client()},
	}
	sel := selection("C", course.Section{Position: 1, Name: "S", SubSections: []course.SubSection{{URL: "/s1"}}})
	units := course.AllUnits{"/s1": {
		{MP4URLs: []string{srv.URL + "/missing.mp4"}},
		{ResourcesURLs: []string{srv.URL + "/slides.pdf"}},
	}}

	rep, err := o.Download(context.Background(), sel, units)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failures)
	assert.Equal(t, 1, rep.Files)
	assert.FileExists(t, filepath.Join(out, "C", "01-S", "02-slides.pdf"))
	assert.NoFileExists(t, filepath.Join(out, "C", "01-S", "01-missing.mp4"))
}

func TestDownload_CancelledStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	video := &fakeVideo{fail: errors.New("killed")}
	o := &Orchestrator{Options: Options{OutputDir: t.TempDir()}, Video: video}
	cancel()

	sel := selection("C", course.Section{Position: 1, Name: "S", SubSections: []course.SubSection{{URL: "/s1"}}})
	units := course.AllUnits{"/s1": {{VideoYoutubeURL: course.Str("https://youtube.com/watch?v=aaaaaaaaaaa")}}}

	_, err := o.Download(ctx, sel, units)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, video.reqs)
}

func TestDownload_SubtitlesAreIdempotent(t *testing.T) {
	out := t.TempDir()
	video := &fakeVideo{write: true}
	subs := &fakeSubs{langs: []string{"en", "fr"}}
	o := &Orchestrator{
		Options: Options{OutputDir: out, WithSubtitles: true},
		Video:   video,
		Subs:    subs,
	}

	sel := selection("C", course.Section{Position: 1, Name: "S", SubSections: []course.SubSection{{URL: "/s1"}}})
	units := course.AllUnits{"/s1": {{
		VideoYoutubeURL:  course.Str("https://youtube.com/watch?v=abc"),
		AvailableSubsURL: course.Str("https://x/available"),
		SubTemplateURL:   course.Str("https://x/translation/%s"),
	}}}

	rep, err := o.Download(context.Background(), sel, units)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.SubtitlesWritten)
	assert.True(t, video.reqs[0].AllSubs)

	dir := filepath.Join(out, "C", "01-S")
	got, err := os.ReadFile(filepath.Join(dir, "01-Intro-abc.fr.srt"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "https://x/translation/fr")

	rep, err = o.Download(context.Background(), sel, units)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.SubtitlesWritten)
	assert.Equal(t, 2, rep.SubtitlesSkipped)
	assert.Equal(t, 2, subs.transcripts, "second run fetches nothing")
}

func TestDownload_SubtitlesFallBackToEnglish(t *testing.T) {
	out := t.TempDir()
	subs := &fakeSubs{langsErr: errors.New("boom")}
	o := &Orchestrator{
		Options: Options{OutputDir: out, WithSubtitles: true},
		Video:   &fakeVideo{write: true},
		Subs:    subs,
	}
	sel := selection("C", course.Section{Position: 1, Name: "S", SubSections: []course.SubSection{{URL: "/s1"}}})
	units := course.AllUnits{"/s1": {{
		VideoYoutubeURL:  course.Str("https://youtube.com/watch?v=abc"),
		AvailableSubsURL: course.Str("https://x/available"),
		SubTemplateURL:   course.Str("https://x/translation/%s"),
	}}}

	rep, err := o.Download(context.Background(), sel, units)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SubtitlesWritten)
	assert.FileExists(t, filepath.Join(out, "C", "01-S", "01-Intro-abc.en.srt"))
}

func TestDownload_SubtitlesNeedPrimaryFile(t *testing.T) {
	subs := &fakeSubs{langs: []string{"en"}}
	o := &Orchestrator{
		Options: Options{OutputDir: t.TempDir(), WithSubtitles: true},
		Video:   &fakeVideo{},
		Subs:    subs,
	}
	sel := selection("C", course.Section{Position: 1, Name: "S", SubSections: []course.SubSection{{URL: "/s1"}}})
	units := course.AllUnits{"/s1": {{
		VideoYoutubeURL:  course.Str("https://youtube.com/watch?v=abc"),
		AvailableSubsURL: course.Str("https://x/available"),
		SubTemplateURL:   course.Str("https://x/translation/%s"),
	}}}

	rep, err := o.Download(context.Background(), sel, units)
	require.NoError(t, err)
	assert.Zero(t, rep.SubtitlesWritten)
	assert.Zero(t, subs.transcripts)
}

func TestDownload_SubtitlesIgnoreYtdlpSideFiles(t *testing.T) {
	out := t.TempDir()
	o := &Orchestrator{
		Options: Options{OutputDir: out, WithSubtitles: true},
		Video:   &fakeVideo{write: true, side: []string{"en.vtt", "info.json", "webp"}},
		Subs:    &fakeSubs{langs: []string{"en"}},
	}
	sel := selection("C", course.Section{Position: 1, Name: "S", SubSections: []course.SubSection{{URL: "/s1"}}})
	units := course.AllUnits{"/s1": {{
		VideoYoutubeURL:  course.Str("https://youtube.com/watch?v=abc"),
		AvailableSubsURL: course.Str("https://x/available"),
		SubTemplateURL:   course.Str("https://x/translation/%s"),
	}}}

	rep, err := o.Download(context.Background(), sel, units)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SubtitlesWritten)

	dir := filepath.Join(out, "C", "01-S")
	assert.FileExists(t, filepath.Join(dir, "01-Intro-abc.en.srt"))
	assert.NoFileExists(t, filepath.Join(dir, "01-Intro-abc.en.en.srt"))
}

func TestDownload_PreferCDNLogsYoutubeOnlyUnit(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithContext(context.Background(), log.New(&buf))

	video := &fakeVideo{}
	o := &Orchestrator{
		Options: Options{OutputDir: t.TempDir(), PreferCDN: true},
		Video:   video,
		Files:   &HTTPClient{},
	}
	sel := selection("C", course.Section{Position: 1, Name: "S", SubSections: []course.SubSection{{URL: "/s1"}}})
	units := course.AllUnits{"/s1": {{VideoYoutubeURL: course.Str("https://youtube.com/watch?v=abc")}}}

	rep, err := o.Download(ctx, sel, units)
	require.NoError(t, err)
	assert.Equal(t, Report{Units: 1}, rep)
	assert.Empty(t, video.reqs)
	assert.Contains(t, buf.String(), "https://youtube.com/watch?v=abc")
}
