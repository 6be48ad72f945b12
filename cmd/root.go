package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"charm.land/log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Gaurav-Gosain/coursedl/cache"
	"github.com/Gaurav-Gosain/coursedl/config"
	"github.com/Gaurav-Gosain/coursedl/course"
	"github.com/Gaurav-Gosain/coursedl/dedup"
	"github.com/Gaurav-Gosain/coursedl/download"
	"github.com/Gaurav-Gosain/coursedl/output"
	"github.com/Gaurav-Gosain/coursedl/scraper"
	"github.com/Gaurav-Gosain/coursedl/session"
	"github.com/Gaurav-Gosain/coursedl/tui"
)

var (
	ErrNoCourseURL     = errors.New("you must pass the URL of at least one course, check the correct url with --list-courses")
	ErrInvalidCourse   = errors.New("you have not passed a valid course url, check the correct url with --list-courses")
	ErrNoUnits         = errors.New("no downloadable video found")
	errListingFinished = errors.New("listing finished")
)

func NewRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "coursedl [course urls...]",
		Short: "Download videos, subtitles and attachments from Open edX courses",
		Long: "Logs in to an Open edX platform, extracts the downloadable units of the selected courses in parallel\n" +
			"and stores them under a numbered directory layout. Videos are fetched with yt-dlp.",
		Example: `  # List the courses you are enrolled in
  coursedl -u me@example.com -p secret --list-courses

  # Download one course with subtitles
  coursedl -u me@example.com -p secret -s https://courses.edx.org/courses/course-v1:MITx+6.00.1x/info

  # Only the second section, direct mp4 links, reusing previous extractions
  coursedl -c coursedl.yaml --filter-section 2 --prefer-cdn-videos --cache <course url>

  # Preview what would be downloaded
  coursedl -c coursedl.yaml --dry-run <course url>`,
		RunE: func(c *cobra.Command, args []string) error {
			opts, err := config.Load(v, c, args)
			if err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			err = run(c.Context(), opts)
			if errors.Is(err, errListingFinished) {
				return nil
			}
			return err
		},
		TraverseChildren: true,
	}

	config.RegisterFlags(cmd)
	return cmd
}

func newLogger(opts *config.Options) *log.Logger {
	level, _ := opts.Level()
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: level == log.DebugLevel,
		TimeFormat:      time.Kitchen,
	})
}

func run(ctx context.Context, opts *config.Options) error {
	logger := newLogger(opts)
	ctx = log.WithContext(ctx, logger)

	platform, err := session.Lookup(opts.Platform)
	if err != nil {
		return err
	}
	s, err := session.New(platform)
	if err != nil {
		return err
	}
	if err := s.Bootstrap(ctx); err != nil {
		return err
	}
	if err := s.Login(ctx, opts.Username, opts.Password); err != nil {
		return err
	}

	sel, err := selectSections(ctx, s, opts)
	if err != nil {
		return err
	}
	if err := output.RenderTerminal(os.Stdout, output.SelectionTree(sel), opts.WordWrap); err != nil {
		return err
	}

	units, err := extract(ctx, s, opts, sel.SubSectionURLs())
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	if selectedUnits(sel, units) == 0 {
		return ErrNoUnits
	}
	if opts.Cache {
		if err := cache.Write(ctx, opts.CacheFile, units); err != nil {
			return err
		}
	}

	res := dedup.Deduplicate(units, sel.SubSectionURLs())
	logger.Info(output.DedupSummary(res))

	if opts.DryRun {
		return report(sel, res.Filtered, opts)
	}

	client := &download.HTTPClient{Client: s.Client, Headers: s.Headers()}
	orch := &download.Orchestrator{
		Options: opts.Download(),
		Video:   download.YTDLP{},
		Files:   client,
		Subs:    client,
	}
	rep, err := orch.Download(ctx, sel, res.Filtered)
	logger.Info("Download finished",
		"units", rep.Units,
		"files", rep.Files,
		"videos", rep.Videos,
		"subtitles", rep.SubtitlesWritten,
		"failures", rep.Failures,
	)
	if err != nil {
		return err
	}
	if rep.Failures > 0 {
		logger.Warn("Some downloads failed, run again to retry them", "failures", rep.Failures)
	}
	return nil
}

// selectSections resolves the requested courses and their (filtered) sections.
func selectSections(ctx context.Context, s *session.Session, opts *config.Options) (course.Selection, error) {
	courses, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	available := course.Started(courses)

	if opts.ListCourses {
		if err := output.RenderTerminal(os.Stdout, output.CourseList(available), opts.WordWrap); err != nil {
			return nil, err
		}
		return nil, errListingFinished
	}
	if len(opts.CourseURLs) == 0 {
		return nil, ErrNoCourseURL
	}
	selected := course.SelectByURL(available, opts.CourseURLs)
	if len(selected) == 0 {
		return nil, ErrInvalidCourse
	}

	sel := make(course.Selection, 0, len(selected))
	for _, c := range selected {
		sections, err := s.Sections(ctx, c)
		if err != nil {
			return nil, err
		}
		course.SortSections(sections)
		sel = append(sel, course.CourseSelection{Course: c, Sections: sections})
	}

	if opts.ListSections {
		if err := output.RenderTerminal(os.Stdout, output.SectionsMenu(sel), opts.WordWrap); err != nil {
			return nil, err
		}
		return nil, errListingFinished
	}
	return sel.Filter(opts.FilterSection), nil
}

// selectedUnits counts the units of sel. units may hold cached pages of other
// courses.
func selectedUnits(sel course.Selection, units course.AllUnits) int {
	n := 0
	for _, url := range sel.SubSectionURLs() {
		n += len(units[url])
	}
	return n
}

func extract(ctx context.Context, s *session.Session, opts *config.Options, urls []string) (course.AllUnits, error) {
	return tui.RunWithProgress(ctx, func(ctx context.Context, onEvent func(scraper.Event)) (course.AllUnits, error) {
		x := &scraper.Extractor{
			Fetcher: s.Fetcher,
			Headers: s.Headers(),
			Workers: opts.Workers,
			OnEvent: onEvent,
		}
		if opts.Cache {
			return cache.ExtractWithCache(ctx, opts.CacheFile, urls, x)
		}
		return x.ExtractAll(ctx, urls)
	})
}

func report(sel course.Selection, units course.AllUnits, opts *config.Options) error {
	reports := output.Reports(sel, units)

	if opts.ReportDir != "" {
		return output.WriteFiles(reports, opts.ReportDir)
	}

	// Browse interactively when there is more than one section to look at.
	if len(reports) > 1 && tui.IsTTY() {
		docs := make([]tui.Document, len(reports))
		for i, r := range reports {
			docs[i] = tui.Document{Title: r.Title(), Detail: r.Detail(), Markdown: r.Markdown, Units: r.Units}
		}
		return tui.RunBrowser(docs)
	}

	return output.RenderTerminal(os.Stdout, output.Report(reports), opts.WordWrap)
}
