package download

import (
	"errors"
	"html"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// mediaExts are the containers yt-dlp produces. Side files written next to
// the video, like subtitles or thumbnails, never count as the video.
var mediaExts = map[string]bool{
	".mp4": true, ".m4v": true, ".webm": true, ".mkv": true, ".flv": true,
	".3gp": true, ".mov": true, ".avi": true,
	".m4a": true, ".mp3": true, ".ogg": true, ".opus": true, ".aac": true,
}

// DirectoryName makes a course name usable as a directory name while keeping
// it readable.
func DirectoryName(s string) string {
	return strings.TrimSpace(minimalClean(s))
}

// CleanFilename reduces s to letters, digits and "-_.()", with spaces turned
// into underscores.
func CleanFilename(s string) string {
	s = minimalClean(s)
	s = strings.NewReplacer("(", "", ")", "").Replace(s)
	s = strings.TrimRight(s, ".")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "_")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("-_.()", r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func minimalClean(s string) string {
	s = html.UnescapeString(s)
	if u, err := url.QueryUnescape(s); err == nil {
		s = u
	}
	return strings.NewReplacer(":", "-", "/", "-", "\x00", "-").Replace(s)
}

// BaseName is the last path element of rawURL without its query string.
func BaseName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// PrimaryFilename finds the downloaded video for prefix in dir and returns
// its name without extension. ok is false when nothing was downloaded.
func PrimaryFilename(dir, prefix string) (name string, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	for _, e := range entries {
		n := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(n, ".") || !strings.HasPrefix(n, prefix+"-") {
			continue
		}
		ext := filepath.Ext(n)
		if !mediaExts[strings.ToLower(ext)] {
			continue
		}
		return strings.TrimSuffix(n, ext), true, nil
	}
	return "", false, nil
}
