package download

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/log/v2"
	ytdlp "github.com/lrstanley/go-ytdlp"
)

// VideoRequest describes one external downloader invocation.
type VideoRequest struct {
	URL            string
	OutputTemplate string // yt-dlp output template, e.g. dir/01-%(title)s-%(id)s.%(ext)s
	Format         string
	AllSubs        bool
	ExtraArgs      []string // pass-through options, placed before the URL
}

// Args renders the request as the yt-dlp command line that Download runs.
func (r VideoRequest) Args() []string {
	args := []string{"-o", r.OutputTemplate, "-f", r.Format}
	if r.AllSubs {
		args = append(args, "--all-subs")
	}
	args = append(args, r.ExtraArgs...)
	return append(args, r.URL)
}

// VideoFormat is the format spec for a preferred format, always falling back
// to mp4.
func VideoFormat(preferred string) string {
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		return preferred + "/mp4"
	}
	return "mp4"
}

// YTDLP downloads videos by running yt-dlp.
type YTDLP struct{}

// Download implements VideoDownloader.
func (YTDLP) Download(ctx context.Context, req VideoRequest) error {
	logger := log.FromContext(ctx)

	args := req.Args()
	logger.Debug("Running yt-dlp", "args", strings.Join(args, " "))

	result, err := ytdlp.New().Run(ctx, args...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("yt-dlp execution failed: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("yt-dlp exited with code %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}
