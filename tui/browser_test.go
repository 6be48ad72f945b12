package tui

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportBrowser_FilterAndOpen(t *testing.T) {
	docs := []Document{
		{Title: "Go 101 / 01-Week_1", Detail: "2 units, 3 urls", Markdown: "# Week 1", Units: 2},
		{Title: "Go 101 / 02-Week_2", Detail: "0 units, 0 urls", Markdown: "# Week 2"},
	}
	b := newReportBrowser(docs)
	next, _ := b.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	b = next.(reportBrowser)

	view := ansi.Strip(b.listView())
	assert.Contains(t, view, "2 units")
	assert.Contains(t, view, "01-Week_1")

	b.filter.SetValue("week_2")
	b.applyFilter()
	assert.Equal(t, []int{1}, b.visible)

	next, cmd := b.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	b = next.(reportBrowser)
	assert.Equal(t, 1, b.open)
	require.NotNil(t, cmd)

	msg, ok := cmd().(renderedMsg)
	require.True(t, ok)
	assert.Equal(t, 1, msg.doc)
	assert.Contains(t, ansi.Strip(msg.out), "Week")

	next, _ = b.Update(msg)
	b = next.(reportBrowser)
	assert.Contains(t, b.rendered, 1)

	next, _ = b.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	b = next.(reportBrowser)
	assert.Equal(t, -1, b.open)
}

func TestReportBrowser_CursorStaysInRange(t *testing.T) {
	b := newReportBrowser([]Document{{Title: "a"}, {Title: "b"}, {Title: "c"}})
	b.height = 24
	b.move(10)
	assert.Equal(t, 2, b.cursor)
	b.move(-10)
	assert.Equal(t, 0, b.cursor)
}
