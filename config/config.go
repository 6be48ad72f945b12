// Package config merges command-line flags, COURSEDL_* environment variables
// and an optional config file into the run options.
package config

import (
	"errors"
	"fmt"
	"strings"

	"charm.land/log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Gaurav-Gosain/coursedl/cache"
	"github.com/Gaurav-Gosain/coursedl/download"
	"github.com/Gaurav-Gosain/coursedl/scraper"
	"github.com/Gaurav-Gosain/coursedl/session"
)

const EnvPrefix = "COURSEDL"

type Options struct {
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	Platform       string `mapstructure:"platform"`
	Format         string `mapstructure:"format"`
	WithSubtitles  bool   `mapstructure:"with_subtitles"`
	OutputDir      string `mapstructure:"output_dir"`
	ListCourses    bool   `mapstructure:"list_courses"`
	ListSections   bool   `mapstructure:"list_sections"`
	FilterSection  string `mapstructure:"filter_section"`
	YoutubeOptions string `mapstructure:"youtube_options"`
	PreferCDN      bool   `mapstructure:"prefer_cdn_videos"`
	Cache          bool   `mapstructure:"cache"`
	CacheFile      string `mapstructure:"cache_file"`
	DryRun         bool   `mapstructure:"dry_run"`
	Workers        int    `mapstructure:"workers"`
	LogLevel       string `mapstructure:"log_level"`
	WordWrap       int    `mapstructure:"word_wrap"`
	ReportDir      string `mapstructure:"report_dir"`

	// CourseURLs are the positional arguments.
	CourseURLs []string `mapstructure:"-"`
}

// flag name -> viper key
var bindings = map[string]string{
	"username":          "username",
	"password":          "password",
	"platform":          "platform",
	"format":            "format",
	"with-subtitles":    "with_subtitles",
	"output-dir":        "output_dir",
	"list-courses":      "list_courses",
	"list-sections":     "list_sections",
	"filter-section":    "filter_section",
	"youtube-options":   "youtube_options",
	"prefer-cdn-videos": "prefer_cdn_videos",
	"cache":             "cache",
	"cache-file":        "cache_file",
	"dry-run":           "dry_run",
	"workers":           "workers",
	"log-level":         "log_level",
	"word-wrap":         "word_wrap",
	"report-dir":        "report_dir",
}

// RegisterFlags adds the option flags to cmd.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringP("config", "c", "", "config file path (yaml, toml or json)")

	flags.StringP("username", "u", "", "your edX username (email)")
	flags.StringP("password", "p", "", "your edX password")
	flags.StringP("platform", "x", "edx", "Open edX platform: "+strings.Join(session.PlatformNames(), ", "))

	flags.StringP("format", "f", "", "preferred yt-dlp video format, falls back to mp4")
	flags.BoolP("with-subtitles", "s", false, "download subtitles with the videos")
	flags.StringP("output-dir", "o", "Downloaded", "directory to store the downloaded files")
	flags.String("youtube-options", "", "extra options passed to yt-dlp, space separated")
	flags.Bool("prefer-cdn-videos", false, "download mp4s and attachments directly instead of YouTube videos")

	flags.Bool("list-courses", false, "list the available courses and exit")
	flags.Bool("list-sections", false, "list the sections of the selected courses and exit")
	flags.String("filter-section", "", "only download the section with this 1-based number")
	flags.Bool("dry-run", false, "only list the resources that would be downloaded")
	flags.String("report-dir", "", "with --dry-run, save the report as .md files to this directory")
	flags.Int("word-wrap", 80, "word wrap width for terminal rendering")

	flags.Bool("cache", false, "reuse the units extracted by previous runs")
	flags.String("cache-file", cache.DefaultFilename, "cache file location")
	flags.IntP("workers", "w", scraper.DefaultWorkers, "number of pages fetched concurrently")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
}

// Load reads the options for cmd into v. Flags override the environment,
// which overrides the config file.
func Load(v *viper.Viper, cmd *cobra.Command, args []string) (*Options, error) {
	flags := cmd.Flags()
	for flag, key := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	opts := &Options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	opts.CourseURLs = args
	return opts, nil
}

// Validate reports every problem with the options at once.
func (o *Options) Validate() error {
	var errs []error
	if o.Username == "" || o.Password == "" {
		errs = append(errs, errors.New("you must supply username and password to log in"))
	}
	if _, err := session.Lookup(o.Platform); err != nil {
		errs = append(errs, err)
	}
	if o.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", o.Workers))
	}
	if _, err := o.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (o *Options) Level() (log.Level, error) {
	return log.ParseLevel(o.LogLevel)
}

// YoutubeArgs splits the pass-through yt-dlp options on whitespace.
func (o *Options) YoutubeArgs() []string {
	return strings.Fields(o.YoutubeOptions)
}

func (o *Options) Download() download.Options {
	return download.Options{
		OutputDir:      o.OutputDir,
		PreferCDN:      o.PreferCDN,
		Format:         o.Format,
		WithSubtitles:  o.WithSubtitles,
		YoutubeOptions: o.YoutubeArgs(),
	}
}
