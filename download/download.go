// Package download maps a course selection onto a numbered directory layout
// and fetches every unit into it.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"charm.land/log/v2"
	"github.com/google/renameio/v2"

	"github.com/Gaurav-Gosain/coursedl/course"
)

// VideoDownloader runs the external video downloader.
type VideoDownloader interface {
	Download(ctx context.Context, req VideoRequest) error
}

// FileFetcher writes the body at url to dest, replacing dest.
type FileFetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// SubtitleSource lists and fetches edX transcripts.
type SubtitleSource interface {
	Languages(ctx context.Context, url string) ([]string, error)
	Transcript(ctx context.Context, url string) (string, error)
}

// Error reports a failed download of one resource.
type Error struct {
	URL  string
	Dest string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download %s to %s: %v", e.URL, e.Dest, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options controls how units are downloaded.
type Options struct {
	OutputDir      string
	PreferCDN      bool
	Format         string
	WithSubtitles  bool
	YoutubeOptions []string
}

// Report summarises a download run.
type Report struct {
	Units            int
	Files            int
	Videos           int
	SubtitlesWritten int
	SubtitlesSkipped int
	Failures         int
}

// Orchestrator walks a selection and downloads its units one at a time.
type Orchestrator struct {
	Options Options
	Video   VideoDownloader
	Files   FileFetcher
	Subs    SubtitleSource
}

// Download fetches the units of every selected subsection into
// <output>/<course>/<NN-section>/<NN-...>. A failed resource is logged and
// counted; only cancellation or a directory that cannot be created stops the
// walk.
func (o *Orchestrator) Download(ctx context.Context, sel course.Selection, units course.AllUnits) (Report, error) {
	logger := log.FromContext(ctx)
	logger.Info("Output directory", "path", o.Options.OutputDir)

	var rep Report
	for _, cs := range sel {
		courseDir := filepath.Join(o.Options.OutputDir, DirectoryName(cs.Course.Name))
		for _, sec := range cs.Sections {
			dir := filepath.Join(courseDir, CleanFilename(fmt.Sprintf("%02d-%s", sec.Position, sec.Name)))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return rep, fmt.Errorf("create %s: %w", dir, err)
			}

			counter := 0
			for _, sub := range sec.SubSections {
				for _, u := range units[sub.URL] {
					if err := ctx.Err(); err != nil {
						return rep, err
					}
					counter++
					rep.Units++
					if err := o.unit(ctx, u, dir, fmt.Sprintf("%02d", counter), &rep); err != nil {
						return rep, err
					}
				}
			}
		}
	}
	return rep, nil
}

// unit downloads one unit. Only cancellation is returned.
func (o *Orchestrator) unit(ctx context.Context, u course.Unit, dir, prefix string, rep *Report) error {
	if o.Options.PreferCDN {
		if len(u.MP4URLs) == 0 && len(u.ResourcesURLs) == 0 && u.VideoYoutubeURL != nil {
			log.FromContext(ctx).Warn("No CDN file for video, skipping", "url", *u.VideoYoutubeURL)
		}
		for _, url := range append(append([]string{}, u.MP4URLs...), u.ResourcesURLs...) {
			dest := filepath.Join(dir, prefix+"-"+BaseName(url))
			log.FromContext(ctx).Info("Downloading", "destination", dest)
			if err := o.Files.Fetch(ctx, url, dest); err != nil {
				if err := o.fail(ctx, &Error{URL: url, Dest: dest, Err: err}, rep); err != nil {
					return err
				}
				continue
			}
			rep.Files++
		}
	} else if u.VideoYoutubeURL != nil {
		req := VideoRequest{
			URL:            *u.VideoYoutubeURL,
			OutputTemplate: filepath.Join(dir, prefix+"-%(title)s-%(id)s.%(ext)s"),
			Format:         VideoFormat(o.Options.Format),
			AllSubs:        o.Options.WithSubtitles,
			ExtraArgs:      o.Options.YoutubeOptions,
		}
		if err := o.Video.Download(ctx, req); err != nil {
			if err := o.fail(ctx, &Error{URL: req.URL, Dest: req.OutputTemplate, Err: err}, rep); err != nil {
				return err
			}
		} else {
			rep.Videos++
		}
	}

	if o.Options.WithSubtitles {
		return o.subtitles(ctx, u, dir, prefix, rep)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, err *Error, rep *Report) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	rep.Failures++
	log.FromContext(ctx).Error("Download failed", "url", err.URL, "err", err.Err)
	return nil
}

func (o *Orchestrator) subtitles(ctx context.Context, u course.Unit, dir, prefix string, rep *Report) error {
	logger := log.FromContext(ctx)

	primary, ok, err := PrimaryFilename(dir, prefix)
	if err != nil {
		logger.Warn("Cannot look up video for subtitles", "dir", dir, "prefix", prefix, "err", err)
		return nil
	}
	if !ok {
		logger.Warn("No video downloaded, skipping subtitles", "dir", dir, "prefix", prefix)
		return nil
	}
	if u.SubTemplateURL == nil || u.AvailableSubsURL == nil {
		logger.Warn("No subtitles available", "video", primary)
		return nil
	}

	langs, err := o.Subs.Languages(ctx, *u.AvailableSubsURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("Cannot list subtitle languages, assuming English", "url", *u.AvailableSubsURL, "err", err)
		langs = []string{"en"}
	}

	for _, lang := range langs {
		dest := filepath.Join(dir, primary+"."+lang+".srt")
		if _, err := os.Stat(dest); err == nil {
			logger.Info("Skipping existing subtitle", "path", dest)
			rep.SubtitlesSkipped++
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Cannot stat subtitle", "path", dest, "err", err)
			continue
		}

		srt, err := o.Subs.Transcript(ctx, strings.ReplaceAll(*u.SubTemplateURL, "%s", lang))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Warn("Subtitle download failed", "lang", lang, "err", err)
			continue
		}
		if srt == "" {
			logger.Warn("Empty subtitle", "lang", lang, "video", primary)
			continue
		}

		if err := renameio.WriteFile(dest, []byte(srt), 0o644); err != nil {
			logger.Warn("Cannot write subtitle", "path", dest, "err", err)
			continue
		}
		logger.Info("Writing subtitle", "path", dest)
		rep.SubtitlesWritten++
	}
	return nil
}
