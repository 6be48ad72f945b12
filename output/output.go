package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"charm.land/glamour/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"

	"github.com/Gaurav-Gosain/coursedl/course"
	"github.com/Gaurav-Gosain/coursedl/dedup"
	"github.com/Gaurav-Gosain/coursedl/download"
)

// RenderTerminal renders markdown to w using glamour.
func RenderTerminal(w io.Writer, markdown string, wordWrap int) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}

// CourseList lists the courses the user can download.
func CourseList(courses []course.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# You can access %d courses\n\n", len(courses))
	for i, c := range courses {
		fmt.Fprintf(&b, "%d. **%s** `%s`  \n   <%s>\n", i+1, c.Name, c.ID, c.URL)
	}
	return b.String()
}

// SectionsMenu lists the sections of every selected course with the number
// to pass to --filter-section.
func SectionsMenu(sel course.Selection) string {
	var b strings.Builder
	for _, cs := range sel {
		fmt.Fprintf(&b, "# %s `%s`\n\n%s so far\n\n", cs.Course.Name, cs.Course.ID, plural(len(cs.Sections), "section"))
		for i, sec := range cs.Sections {
			fmt.Fprintf(&b, "%d. Download %s videos\n", i+1, sec.Name)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SelectionTree shows the courses, sections and subsections about to be
// processed.
func SelectionTree(sel course.Selection) string {
	var b strings.Builder
	for _, cs := range sel {
		fmt.Fprintf(&b, "# Downloading %s `%s`\n\n", cs.Course.Name, cs.Course.ID)
		fmt.Fprintf(&b, "%s\n\n", plural(len(cs.Sections), "section"))
		for _, sec := range cs.Sections {
			fmt.Fprintf(&b, "- **Section %02d**: %s\n", sec.Position, sec.Name)
			for _, sub := range sec.SubSections {
				fmt.Fprintf(&b, "  - %s\n", sub.Name)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DedupSummary reports how many URLs deduplication removed.
func DedupSummary(res dedup.Result) string {
	return fmt.Sprintf("Removed %d duplicated urls from %d in total", res.Removed(), res.TotalBefore)
}

// SectionReport is the dry-run listing of one section.
type SectionReport struct {
	Course   string
	Section  string // directory name, e.g. 01-Week_1
	Units    int
	URLs     int
	Markdown string
}

// Title names the report as "course / section".
func (r SectionReport) Title() string { return r.Course + " / " + r.Section }

// Detail is a one-line summary of the report.
func (r SectionReport) Detail() string {
	return plural(r.Units, "unit") + ", " + plural(r.URLs, "url")
}

// Reports lists, per selected section, the resources a download would fetch.
func Reports(sel course.Selection, units course.AllUnits) []SectionReport {
	var reports []SectionReport
	for _, cs := range sel {
		for _, sec := range cs.Sections {
			dir := download.CleanFilename(fmt.Sprintf("%02d-%s", sec.Position, sec.Name))
			r := SectionReport{Course: download.DirectoryName(cs.Course.Name), Section: dir}

			var b strings.Builder
			fmt.Fprintf(&b, "# %s\n\n## %s\n", cs.Course.Name, sec.Name)
			for _, sub := range sec.SubSections {
				list := units[sub.URL]
				if len(list) == 0 {
					continue
				}
				fmt.Fprintf(&b, "\n### %s\n\n", sub.Name)
				for _, u := range list {
					r.Units++
					fmt.Fprintf(&b, "%d. unit `%02d`\n", r.Units, r.Units)
					for _, link := range unitLinks(u) {
						r.URLs++
						fmt.Fprintf(&b, "   - %s: <%s>\n", link[0], link[1])
					}
				}
			}
			if r.Units == 0 {
				b.WriteString("\nNo downloadable units.\n")
			}
			r.Markdown = b.String()
			reports = append(reports, r)
		}
	}
	return reports
}

func unitLinks(u course.Unit) [][2]string {
	var links [][2]string
	if u.VideoYoutubeURL != nil {
		links = append(links, [2]string{"video", *u.VideoYoutubeURL})
	}
	for _, m := range u.MP4URLs {
		links = append(links, [2]string{"mp4", m})
	}
	for _, r := range u.ResourcesURLs {
		links = append(links, [2]string{"resource", r})
	}
	if u.SubTemplateURL != nil {
		links = append(links, [2]string{"subtitles", *u.SubTemplateURL})
	}
	return links
}

// Report joins the section reports into one document.
func Report(reports []SectionReport) string {
	parts := make([]string, len(reports))
	for i, r := range reports {
		parts[i] = r.Markdown
	}
	return strings.Join(parts, "\n---\n\n")
}

// WriteFiles writes each report as a .md file under dir/<course>/.
func WriteFiles(reports []SectionReport, dir string) error {
	for _, r := range reports {
		path := filepath.Join(dir, r.Course, reportFilename(r.Section))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := renameio.WriteFile(path, []byte(r.Markdown), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "Saved: %s\n", path)
	}
	return nil
}

// reportFilename converts a section directory name to a safe filename.
func reportFilename(section string) string {
	name := strings.Trim(download.CleanFilename(section), "-.")
	if name == "" {
		name = "section"
	}
	return name + ".md"
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}
