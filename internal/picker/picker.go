// Package picker is a small TUI for choosing one entry from grouped search
// results.
package picker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nikbrunner/bmtree/internal/search"
	"github.com/nikbrunner/bmtree/internal/tree"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	groupStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true)

	folderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("109"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// Chrome lines around the list: header, blank, blank, help.
const chromeLines = 4

type rowKind int

const (
	rowGroup rowKind = iota
	rowFolder
	rowEntry
)

type row struct {
	kind  rowKind
	text  string
	entry *tree.Entry
}

// Picker shows grouped results and lets the user pick one entry.
type Picker struct {
	query          string
	rows           []row
	entries        []int // indexes into rows of selectable entries
	count          int
	cursor         int // index into entries
	selected       bool
	cancelled      bool
	status         string
	width          int
	height         int
	keys           KeyMap
	writeClipboard func(string) error
}

// Option configures a Picker.
type Option func(*Picker)

// WithClipboard replaces the function used to copy URLs.
func WithClipboard(fn func(string) error) Option {
	return func(p *Picker) { p.writeClipboard = fn }
}

// New creates a new Picker for groups.
func New(groups []search.Group, query string, opts ...Option) Picker {
	p := Picker{
		query:          query,
		width:          80,
		height:         24,
		keys:           DefaultKeyMap(),
		writeClipboard: clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(&p)
	}

	for _, g := range groups {
		p.rows = append(p.rows, row{kind: rowGroup, text: g.RootFolder.Title})
		for _, sg := range g.Subgroups {
			p.rows = append(p.rows, row{kind: rowFolder, text: folderLabel(sg)})
			for _, e := range sg.Bookmarks {
				p.entries = append(p.entries, len(p.rows))
				p.rows = append(p.rows, row{kind: rowEntry, entry: e})
				p.count++
			}
		}
	}
	return p
}

func folderLabel(sg search.Subgroup) string {
	if sg.Folder == nil {
		return "(top level)"
	}
	return sg.Folder.Title
}

// WithDimensions returns a copy of the picker with the given size.
func (p Picker) WithDimensions(width, height int) Picker {
	p.width = width
	p.height = height
	return p
}

// Init implements tea.Model.
func (p Picker) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case tea.KeyMsg:
		p.status = ""
		switch {
		case key.Matches(msg, p.keys.Quit):
			p.cancelled = true
			return p, tea.Quit

		case key.Matches(msg, p.keys.Select):
			if len(p.entries) == 0 {
				return p, nil
			}
			p.selected = true
			return p, tea.Quit

		case key.Matches(msg, p.keys.Down):
			if p.cursor < len(p.entries)-1 {
				p.cursor++
			}

		case key.Matches(msg, p.keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}

		case key.Matches(msg, p.keys.Top):
			p.cursor = 0

		case key.Matches(msg, p.keys.Bottom):
			if len(p.entries) > 0 {
				p.cursor = len(p.entries) - 1
			}

		case key.Matches(msg, p.keys.Yank):
			p.yank()
		}
	}

	return p, nil
}

func (p *Picker) yank() {
	e := p.current()
	switch {
	case e == nil:
		return
	case e.IsFolder():
		p.status = "folders have no URL"
	default:
		if err := p.writeClipboard(e.URL); err != nil {
			p.status = "copy failed: " + err.Error()
			return
		}
		p.status = "copied " + e.URL
	}
}

func (p Picker) current() *tree.Entry {
	if p.cursor < 0 || p.cursor >= len(p.entries) {
		return nil
	}
	return p.rows[p.entries[p.cursor]].entry
}

// View implements tea.Model.
func (p Picker) View() string {
	var b strings.Builder

	// Header
	b.WriteString(headerStyle.Render(fmt.Sprintf("Search: %s (%d results)", p.query, p.count)))
	b.WriteString("\n\n")

	if len(p.rows) == 0 {
		b.WriteString(normalStyle.Render("No matches."))
		b.WriteString("\n")
	}

	start, end := p.window()
	for i := start; i < end; i++ {
		b.WriteString(p.renderRow(i))
		b.WriteString("\n")
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(p.help())

	return b.String()
}

// window returns the range of rows that fits the height, keeping the
// cursor visible.
func (p Picker) window() (int, int) {
	visible := p.height - chromeLines
	if visible < 1 {
		visible = 1
	}
	if len(p.rows) <= visible {
		return 0, len(p.rows)
	}

	cursorRow := 0
	if len(p.entries) > 0 {
		cursorRow = p.entries[p.cursor]
	}
	start := 0
	if cursorRow >= visible {
		start = cursorRow - visible + 1
	}
	return start, start + visible
}

func (p Picker) renderRow(i int) string {
	r := p.rows[i]
	switch r.kind {
	case rowGroup:
		return groupStyle.Render(r.text)
	case rowFolder:
		return "  " + folderStyle.Render(r.text)
	}

	cursor := "  "
	style := normalStyle
	if len(p.entries) > 0 && p.entries[p.cursor] == i {
		cursor = "> "
		style = selectedStyle
	}

	// indent + cursor
	avail := p.width - 6

	if r.entry.IsFolder() {
		return "    " + cursor + style.Render(truncate(r.entry.Title+"/", avail))
	}

	title := truncate(r.entry.Title, avail)
	line := "    " + cursor + style.Render(title)
	if urlWidth := avail - utf8.RuneCountInString(title) - 2; urlWidth > 0 {
		line += "  " + urlStyle.Render(truncate(r.entry.URL, urlWidth))
	}
	return line
}

func (p Picker) help() string {
	var parts []string
	for _, b := range p.keys.footer() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	line := strings.Join(parts, "  ")
	if p.status != "" {
		line += "  |  " + p.status
	}
	return helpStyle.Render(line)
}

// Selected returns the chosen entry, or nil if the picker was cancelled.
func (p Picker) Selected() *tree.Entry {
	if p.cancelled || !p.selected {
		return nil
	}
	return p.current()
}

// Cancelled returns true if the user cancelled the selection.
func (p Picker) Cancelled() bool {
	return p.cancelled
}

// Run shows the picker on the terminal and returns the chosen entry.
func Run(groups []search.Group, query string, opts ...Option) (*tree.Entry, error) {
	final, err := tea.NewProgram(New(groups, query, opts...)).Run()
	if err != nil {
		return nil, err
	}
	return final.(Picker).Selected(), nil
}
