package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/glamour/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

// Document is one entry of the report browser.
type Document struct {
	Title    string
	Detail   string // one-line summary shown under the title
	Markdown string
	Units    int
}

type renderedMsg struct {
	doc int
	out string
}

var (
	tnFg      = lipgloss.Color("#a9b1d6")
	tnBlue    = lipgloss.Color("#7aa2f7")
	tnCyan    = lipgloss.Color("#7dcfff")
	tnGreen   = lipgloss.Color("#9ece6a")
	tnYellow  = lipgloss.Color("#e0af68")
	tnComment = lipgloss.Color("#565f89")
	tnDark    = lipgloss.Color("#1a1b26")
	tnGutter  = lipgloss.Color("#3b4261")

	logoStyle    = lipgloss.NewStyle().Foreground(tnDark).Background(tnBlue).Bold(true).Padding(0, 1)
	countStyle   = lipgloss.NewStyle().Foreground(tnCyan).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(tnComment)
	ruleStyle    = lipgloss.NewStyle().Foreground(tnGutter)
	cursorStyle  = lipgloss.NewStyle().Foreground(tnBlue)
	pickedStyle  = lipgloss.NewStyle().Foreground(tnBlue).Bold(true)
	itemStyle    = lipgloss.NewStyle().Foreground(tnFg)
	hasUnits     = lipgloss.NewStyle().Foreground(tnGreen).Render("●")
	noUnits      = lipgloss.NewStyle().Foreground(tnYellow).Render("○")
	statusStyle  = lipgloss.NewStyle().Foreground(tnFg).Background(tnDark)
	promptStyle  = lipgloss.NewStyle().Foreground(tnBlue)
	scrollFilled = lipgloss.NewStyle().Foreground(tnBlue)
	scrollEmpty  = lipgloss.NewStyle().Foreground(tnGutter)
)

// header (blank, logo, blank, rule) and footer (blank, help)
const (
	chromeLines = 6
	itemLines   = 3
)

type reportBrowser struct {
	docs    []Document
	visible []int // indexes into docs matching the filter
	cursor  int   // position in visible
	offset  int

	filter    textinput.Model
	filtering bool

	pager    viewport.Model
	open     int // doc shown in the pager, -1 for the list
	rendered map[int]string

	width, height int
}

func newReportBrowser(docs []Document) reportBrowser {
	in := textinput.New()
	in.Prompt = "Filter: "
	st := in.Styles()
	st.Focused.Prompt = promptStyle
	st.Blurred.Prompt = promptStyle
	in.SetStyles(st)

	b := reportBrowser{
		docs:     docs,
		filter:   in,
		pager:    viewport.New(),
		open:     -1,
		rendered: map[int]string{},
	}
	b.applyFilter()
	return b
}

func (b reportBrowser) Init() tea.Cmd { return nil }

func (b *reportBrowser) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(b.filter.Value()))
	b.visible = b.visible[:0]
	for i, d := range b.docs {
		if q == "" || strings.Contains(strings.ToLower(d.Title+" "+d.Detail), q) {
			b.visible = append(b.visible, i)
		}
	}
	b.cursor, b.offset = 0, 0
}

func (b reportBrowser) rows() int {
	return max(1, (b.height-chromeLines)/itemLines)
}

func (b *reportBrowser) move(delta int) {
	if len(b.visible) == 0 {
		return
	}
	b.cursor = min(max(b.cursor+delta, 0), len(b.visible)-1)
	if b.cursor < b.offset {
		b.offset = b.cursor
	}
	if b.cursor >= b.offset+b.rows() {
		b.offset = b.cursor - b.rows() + 1
	}
}

func (b reportBrowser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
		b.pager.SetWidth(msg.Width)
		b.pager.SetHeight(max(1, msg.Height-2))
		// Wrapping depends on the width.
		b.rendered = map[int]string{}
		if b.open >= 0 {
			return b, b.render(b.open)
		}
		return b, nil

	case renderedMsg:
		b.rendered[msg.doc] = msg.out
		if b.open == msg.doc {
			b.pager.SetContent(msg.out)
			b.pager.GotoTop()
		}
		return b, nil

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return b, tea.Quit
		}
		switch {
		case b.open >= 0:
			return b.pagerKey(msg)
		case b.filtering:
			return b.filterKey(msg)
		}
		return b.listKey(msg)
	}

	if b.open >= 0 {
		var cmd tea.Cmd
		b.pager, cmd = b.pager.Update(msg)
		return b, cmd
	}
	return b, nil
}

func (b reportBrowser) listKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return b, tea.Quit
	case "j", "down":
		b.move(1)
	case "k", "up":
		b.move(-1)
	case "g", "home":
		b.move(-len(b.visible))
	case "G", "end":
		b.move(len(b.visible))
	case "/":
		b.filtering = true
		return b, b.filter.Focus()
	case "enter", "l", "right":
		if len(b.visible) > 0 {
			cmd := b.show(b.visible[b.cursor])
			return b, cmd
		}
	}
	return b, nil
}

func (b reportBrowser) filterKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		b.filtering = false
		b.filter.Blur()
		b.filter.SetValue("")
		b.applyFilter()
		return b, nil
	case "enter":
		b.filtering = false
		b.filter.Blur()
		if len(b.visible) == 1 {
			cmd := b.show(b.visible[0])
			return b, cmd
		}
		return b, nil
	case "up":
		b.move(-1)
		return b, nil
	case "down":
		b.move(1)
		return b, nil
	}

	prev := b.filter.Value()
	var cmd tea.Cmd
	b.filter, cmd = b.filter.Update(msg)
	if b.filter.Value() != prev {
		b.applyFilter()
	}
	return b, cmd
}

func (b reportBrowser) pagerKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return b, tea.Quit
	case "esc", "h", "left":
		b.open = -1
		return b, nil
	case "g", "home":
		b.pager.GotoTop()
		return b, nil
	case "G", "end":
		b.pager.GotoBottom()
		return b, nil
	}
	var cmd tea.Cmd
	b.pager, cmd = b.pager.Update(msg)
	return b, cmd
}

// show opens doc in the pager, rendering it first if needed.
func (b *reportBrowser) show(doc int) tea.Cmd {
	b.open = doc
	if out, ok := b.rendered[doc]; ok {
		b.pager.SetContent(out)
		b.pager.GotoTop()
		return nil
	}
	b.pager.SetContent(dimStyle.Render("\n  Rendering..."))
	return b.render(doc)
}

func (b reportBrowser) render(doc int) tea.Cmd {
	md := b.docs[doc].Markdown
	wrap := max(20, b.width-4)
	return func() tea.Msg {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("tokyo-night"),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return renderedMsg{doc: doc, out: md}
		}
		out, err := r.Render(md)
		if err != nil {
			return renderedMsg{doc: doc, out: md}
		}
		return renderedMsg{doc: doc, out: out}
	}
}

func (b reportBrowser) View() tea.View {
	s := b.listView()
	if b.open >= 0 {
		s = b.pagerView()
	}
	v := tea.NewView(s)
	v.AltScreen = true
	return v
}

func (b reportBrowser) listView() string {
	var s strings.Builder
	s.WriteString("\n  ")
	if b.filtering {
		s.WriteString(b.filter.View())
	} else {
		units := 0
		for _, d := range b.docs {
			units += d.Units
		}
		s.WriteString(logoStyle.Render("coursedl"))
		fmt.Fprintf(&s, "  %s%s", countStyle.Render(fmt.Sprint(len(b.docs))), dimStyle.Render(" sections"))
		s.WriteString(dimStyle.Render(fmt.Sprintf("  •  %d units", units)))
		if q := b.filter.Value(); q != "" {
			s.WriteString(dimStyle.Render(fmt.Sprintf("  •  filter %q", q)))
		}
	}
	s.WriteString("\n\n  ")
	s.WriteString(ruleStyle.Render(strings.Repeat("─", max(0, b.width-4))))
	s.WriteString("\n")

	if len(b.visible) == 0 {
		s.WriteString("\n  " + dimStyle.Render("No sections match.") + "\n")
	}

	width := max(20, b.width-8)
	end := min(b.offset+b.rows(), len(b.visible))
	for i := b.offset; i < end; i++ {
		d := b.docs[b.visible[i]]
		gutter, title := " ", itemStyle
		if i == b.cursor {
			gutter, title = cursorStyle.Render("│"), pickedStyle
		}
		badge := hasUnits
		if d.Units == 0 {
			badge = noUnits
		}
		fmt.Fprintf(&s, "\n  %s  %s  %s\n", gutter, badge, title.Render(ansi.Truncate(d.Title, width, "...")))
		fmt.Fprintf(&s, "       %s\n", dimStyle.Render(ansi.Truncate(d.Detail, width, "...")))
	}

	used := chromeLines + (end-b.offset)*itemLines
	if pad := b.height - used; pad > 0 {
		s.WriteString(strings.Repeat("\n", pad))
	}
	s.WriteString("\n")
	if b.filtering {
		s.WriteString(dimStyle.Render("  enter confirm  •  esc clear  •  ↑↓ move"))
	} else {
		s.WriteString(dimStyle.Render("  ↑↓/jk move  •  enter open  •  / filter  •  q quit"))
	}
	return s.String()
}

func (b reportBrowser) pagerView() string {
	var s strings.Builder
	s.WriteString(b.pager.View())
	s.WriteString("\n")

	filled := min(int(b.pager.ScrollPercent()*float64(b.width)), b.width)
	s.WriteString(scrollFilled.Render(strings.Repeat("━", filled)))
	s.WriteString(scrollEmpty.Render(strings.Repeat("─", max(0, b.width-filled))))
	s.WriteString("\n")

	logo := logoStyle.Render("coursedl")
	help := " esc back  q quit "
	title := ansi.Truncate(" "+b.docs[b.open].Title+" ", max(0, b.width-lipgloss.Width(logo)-len(help)), "…")
	pad := max(0, b.width-lipgloss.Width(logo)-lipgloss.Width(title)-len(help))
	s.WriteString(logo + statusStyle.Render(title+strings.Repeat(" ", pad)+help))
	return s.String()
}

// RunBrowser lets the user page through the dry-run report, one document per
// section.
func RunBrowser(docs []Document) error {
	if _, err := tea.NewProgram(newReportBrowser(docs)).Run(); err != nil {
		return fmt.Errorf("browser TUI error: %w", err)
	}
	return nil
}
