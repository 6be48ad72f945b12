// Package tui shows extraction progress and the dry-run report browser.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"charm.land/log/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/Gaurav-Gosain/coursedl/course"
	"github.com/Gaurav-Gosain/coursedl/scraper"
)

var (
	okMark    = lipgloss.NewStyle().Foreground(tnGreen).Render("✓")
	failMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Render("✗")
	unitsTag  = lipgloss.NewStyle().Foreground(tnGreen)
	emptyTag  = lipgloss.NewStyle().Foreground(tnYellow)
	doneStyle = lipgloss.NewStyle().Foreground(tnGreen).Bold(true)
)

// Background fill rising behind the view as pages complete (#24283b).
const (
	fillOn  = "\x1b[48;2;36;40;59m"
	fillOff = "\x1b[49m"
)

// ~600ms at one frame per 16ms
const holdFrames = 37

// Job runs an extraction, reporting progress through onEvent.
type Job func(ctx context.Context, onEvent func(scraper.Event)) (course.AllUnits, error)

type (
	eventMsg scraper.Event
	doneMsg  struct {
		units course.AllUnits
		err   error
	}
	frameMsg struct{}
	quitMsg  struct{}
)

func nextFrame() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(time.Time) tea.Msg { return frameMsg{} })
}

type model struct {
	spin spinner.Model
	bar  progress.Model

	started  int
	finished int
	units    int
	inFlight []string
	history  []string

	result doneMsg

	wrapping  bool
	fill      float64 // animated, eases towards target
	target    float64
	held      int
	cancelled bool
	cancel    context.CancelFunc

	width, height int
}

func newModel(cancel context.CancelFunc) model {
	return model{
		spin: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(tnBlue)),
		),
		bar: progress.New(
			progress.WithColors(tnBlue, lipgloss.Color("#bb9af7")),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		cancel: cancel,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, nextFrame())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.SetWidth(min(max(msg.Width-20, 20), 60))
		return m, nil

	case tea.KeyPressMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd

	case eventMsg:
		return m.record(scraper.Event(msg))

	case doneMsg:
		m.result = msg
		m.wrapping = true
		m.target = 1
		return m, m.bar.SetPercent(1)

	case frameMsg:
		return m.animate()

	case quitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m model) animate() (tea.Model, tea.Cmd) {
	if d := m.target - m.fill; math.Abs(d) >= 0.002 {
		m.fill += d * 0.10
		return m, nextFrame()
	}
	m.fill = m.target
	if m.wrapping {
		if m.held++; m.held > holdFrames {
			return m, func() tea.Msg { return quitMsg{} }
		}
	}
	return m, nextFrame()
}

func (m model) record(e scraper.Event) (tea.Model, tea.Cmd) {
	width := max(20, m.width-20)

	switch e.Type {
	case "fetching":
		m.started++
		if !slices.Contains(m.inFlight, e.URL) {
			m.inFlight = append(m.inFlight, e.URL)
		}
	case "done":
		m.inFlight = slices.DeleteFunc(m.inFlight, func(u string) bool { return u == e.URL })
		m.finished++
		m.units += e.Units
		tag := unitsTag.Render(humanize.Comma(int64(e.Units)) + " units")
		if e.Units == 0 {
			tag = emptyTag.Render("no units")
		}
		m.history = append(m.history, fmt.Sprintf("  %s %s [%s]", okMark, truncateURL(e.URL, width), tag))
	case "error":
		m.inFlight = slices.DeleteFunc(m.inFlight, func(u string) bool { return u == e.URL })
		m.finished++
		reason := "unknown error"
		if e.Err != nil {
			reason = ansi.Truncate(e.Err.Error(), 48, "...")
		}
		m.history = append(m.history, fmt.Sprintf("  %s %s %s", failMark, truncateURL(e.URL, max(20, width-50)), dimStyle.Render(reason)))
	}

	if m.started > 0 {
		m.target = float64(m.finished) / float64(m.started)
	}
	return m, m.bar.SetPercent(m.target)
}

func (m model) status() string {
	count := countStyle.Render(fmt.Sprint(m.finished)) + dimStyle.Render(fmt.Sprintf("/%d pages", m.started))
	if m.wrapping {
		return "  " + doneStyle.Render("✓ Done!") + " " + m.bar.View() + " " + count +
			dimStyle.Render(", "+humanize.Comma(int64(m.units))+" units")
	}
	line := "  " + m.spin.View() + " " + m.bar.View() + " " + count
	if n := len(m.inFlight); n > 0 {
		line += dimStyle.Render(fmt.Sprintf(" (%d active)", n))
	}
	return line
}

func (m model) View() tea.View {
	if m.held > holdFrames {
		return tea.NewView("")
	}

	w, h := m.width, m.height
	if w == 0 {
		w = 80
	}
	if h == 0 {
		h = 24
	}

	lines := []string{
		"",
		"  " + logoStyle.Render("coursedl") + " " + dimStyle.Render("extracting units"),
		"",
		m.status(),
		"",
	}

	room := max(0, h-len(lines)-1)
	switch {
	case len(m.history) > 0:
		lines = append(lines, m.history[max(0, len(m.history)-room):]...)
	case len(m.inFlight) > 0:
		pending := slices.Sorted(slices.Values(m.inFlight))
		for _, u := range pending[:min(3, len(pending))] {
			lines = append(lines, dimStyle.Render("  → "+truncateURL(u, max(20, w-10))))
		}
		if len(pending) > 3 {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("  ...and %d more", len(pending)-3)))
		}
	}

	for len(lines) < h {
		lines = append(lines, "")
	}
	lines = lines[:h]

	// Fill from the bottom up, re-applying the background after each SGR
	// reset inside styled text.
	for i := h - int(math.Round(m.fill*float64(h))); i < h; i++ {
		l := fillOn + lines[i] + strings.Repeat(" ", max(0, w-lipgloss.Width(lines[i]))) + fillOff
		l = strings.ReplaceAll(l, "\x1b[0m", "\x1b[0m"+fillOn)
		lines[i] = strings.ReplaceAll(l, "\x1b[m", "\x1b[m"+fillOn)
	}

	v := tea.NewView(strings.Join(lines, "\n"))
	v.AltScreen = true
	return v
}

// IsTTY reports whether stderr is connected to a terminal.
func IsTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// RunWithProgress runs job with a TUI progress display. Pressing ctrl+c
// cancels the job. Falls back to log-based output when no TTY is available.
func RunWithProgress(ctx context.Context, job Job) (course.AllUnits, error) {
	if !IsTTY() {
		return runWithLogs(ctx, job)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newModel(cancel), tea.WithContext(ctx))

	// Library output (colly, the standard logger) would corrupt the alt
	// screen, and so would the context logger used by the job.
	restore := muteOutput()
	jobCtx := log.WithContext(ctx, log.New(io.Discard))

	done := make(chan doneMsg, 1)
	go func() {
		units, err := job(jobCtx, func(e scraper.Event) { prog.Send(eventMsg(e)) })
		res := doneMsg{units: units, err: err}
		done <- res
		prog.Send(res)
	}()

	final, err := prog.Run()
	restore()

	// Quitting early cancels the job; wait for it to unwind.
	cancel()
	res := <-done

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("TUI error: %w", err)
	}
	if fm, ok := final.(model); ok && fm.cancelled && res.err == nil {
		return nil, context.Canceled
	}
	return res.units, res.err
}

func muteOutput() (restore func()) {
	prevLog := stdlog.Writer()
	stdlog.SetOutput(io.Discard)
	prevStderr := os.Stderr
	devNull, _ := os.Open(os.DevNull)
	if devNull != nil {
		os.Stderr = devNull
	}
	return func() {
		os.Stderr = prevStderr
		stdlog.SetOutput(prevLog)
		if devNull != nil {
			_ = devNull.Close()
		}
	}
}

func runWithLogs(ctx context.Context, job Job) (course.AllUnits, error) {
	logger := log.FromContext(ctx)

	units, err := job(ctx, func(e scraper.Event) {
		switch e.Type {
		case "fetching":
			logger.Info("Processing", "url", e.URL)
		case "done":
			logger.Debug("Done", "url", e.URL, "units", e.Units)
		case "error":
			logger.Error("Failed", "url", e.URL, "err", e.Err)
		}
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Extraction complete", "pages", len(units), "units", humanize.Comma(int64(units.Len())))
	return units, nil
}

func truncateURL(u string, maxLen int) string {
	return ansi.Truncate(u, maxLen, "...")
}
