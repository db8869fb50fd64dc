// Package tui provides an interactive timeline browser for worklog using
// Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/baiirun/worklog/internal/model"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Source is the read side of the engine the browser needs.
type Source interface {
	AggregateForWorkItem(ctx context.Context, mainTaskID string) ([]model.AggregatedEvent, error)
	AggregateForProject(ctx context.Context, projectID string) ([]model.TaskTimeline, error)
}

// Target selects what to browse. Exactly one field should be set; a
// project wins if both are.
type Target struct {
	ProjectID  string
	MainTaskID string
}

// ViewMode represents the current view state.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)

// FocusPane represents which pane is focused in split view.
type FocusPane int

const (
	FocusList FocusPane = iota
	FocusDetail
)

// Status icons
const (
	iconToDo       = "○"
	iconInProgress = "◐"
	iconCompleted  = "●"
	iconCollapsed  = "▸"
	iconExpanded   = "▾"
	iconEvent      = "·"
)

// Layout constants
const (
	minSplitWidth = 80 // Minimum terminal width for split view
	loadTimeout   = 10 * time.Second
)

type rowKind int

const (
	rowTask rowKind = iota
	rowEvent
	rowGroup
)

// row is one visible line of the flattened timeline tree.
type row struct {
	kind  rowKind
	key   string
	depth int
	task  *model.TaskTimeline
	event *model.TimelineEvent
	group *model.EventGroup
	at    time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	src    Source
	target Target

	entries []model.AggregatedEvent // single main task mode
	tasks   []model.TaskTimeline    // project mode
	rows    []row
	cursor  int
	loaded  bool

	// Task rows start open, group rows start closed; toggled flips that.
	toggled map[string]bool

	viewMode ViewMode

	// UI state
	width   int
	height  int
	err     error
	message string

	// Split view state
	focusPane    FocusPane
	detailScroll int
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	statusColors = map[model.Status]lipgloss.Color{
		model.StatusToDo:       lipgloss.Color("252"),
		model.StatusInProgress: lipgloss.Color("214"),
		model.StatusCompleted:  lipgloss.Color("42"),
	}

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	authorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("147"))

	// Content area padding
	contentPadding = 2
)

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusToDo:
		return iconToDo
	case model.StatusInProgress:
		return iconInProgress
	case model.StatusCompleted:
		return iconCompleted
	default:
		return "?"
	}
}

// New creates a browser for the given target.
func New(src Source, target Target) Model {
	return Model{
		src:      src,
		target:   target,
		toggled:  make(map[string]bool),
		viewMode: ViewList,
	}
}

// Messages
type timelineMsg struct {
	entries []model.AggregatedEvent
	tasks   []model.TaskTimeline
	err     error
}

func (m Model) load() tea.Cmd {
	src, target := m.src, m.target
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		if target.ProjectID != "" {
			tasks, err := src.AggregateForProject(ctx, target.ProjectID)
			return timelineMsg{tasks: tasks, err: err}
		}
		entries, err := src.AggregateForWorkItem(ctx, target.MainTaskID)
		return timelineMsg{entries: entries, err: err}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.message = ""
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Narrow modal → Wide: close modal, show split view
		if m.viewMode == ViewDetail && m.width >= minSplitWidth {
			m.viewMode = ViewList
		}
		return m, nil

	case timelineMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.entries = msg.entries
		m.tasks = msg.tasks
		m.rebuild()
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.viewMode {
	case ViewList:
		return m.handleListKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.width >= minSplitWidth && m.focusPane == FocusDetail {
		return m.handleDetailPaneKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.width >= minSplitWidth {
			m.focusPane = FocusDetail
		}

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.detailScroll = 0
		}

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.detailScroll = 0
		}

	case "g", "home":
		m.cursor = 0
		m.detailScroll = 0

	case "G", "end":
		if len(m.rows) > 0 {
			m.cursor = len(m.rows) - 1
			m.detailScroll = 0
		}

	case "enter", " ":
		r, ok := m.selected()
		if !ok {
			break
		}
		if r.kind == rowEvent {
			if m.width < minSplitWidth {
				m.viewMode = ViewDetail
			}
			break
		}
		m.toggle(r.key)

	case "l", "right":
		if r, ok := m.selected(); ok && r.kind != rowEvent && !m.isOpen(r) {
			m.toggle(r.key)
		}

	case "h", "left":
		if r, ok := m.selected(); ok && r.kind != rowEvent && m.isOpen(r) {
			m.toggle(r.key)
		}

	case "e":
		m.setAll(true)
		m.message = "expanded all"

	case "c":
		m.setAll(false)
		m.message = "collapsed all"

	case "r":
		m.message = "refreshing…"
		return m, m.load()
	}
	return m, nil
}

func (m Model) handleDetailPaneKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab", "esc":
		m.focusPane = FocusList
	case "up", "k":
		if m.detailScroll > 0 {
			m.detailScroll--
		}
	case "down", "j":
		m.detailScroll++
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "enter", "backspace":
		m.viewMode = ViewList
		m.detailScroll = 0
	case "up", "k":
		if m.detailScroll > 0 {
			m.detailScroll--
		}
	case "down", "j":
		m.detailScroll++
	}
	return m, nil
}

func (m Model) selected() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) isOpen(r row) bool {
	switch r.kind {
	case rowTask:
		return !m.toggled[r.key]
	case rowGroup:
		return m.toggled[r.key]
	}
	return false
}

func (m *Model) toggle(key string) {
	m.toggled[key] = !m.toggled[key]
	m.rebuild()
}

// setAll opens or closes every task and group.
func (m *Model) setAll(open bool) {
	m.toggled = make(map[string]bool)
	if open {
		for _, r := range m.allRows() {
			if r.kind == rowGroup {
				m.toggled[r.key] = true
			}
		}
	} else {
		for _, r := range m.allRows() {
			if r.kind == rowTask {
				m.toggled[r.key] = true
			}
		}
	}
	m.rebuild()
}

// allRows flattens every task and group regardless of open state.
func (m Model) allRows() []row {
	var out []row
	add := func(prefix string, entries []model.AggregatedEvent) {
		for _, e := range entries {
			if e.Group != nil {
				out = append(out, row{kind: rowGroup, key: groupKey(prefix, e.Group)})
			}
		}
	}
	if m.target.ProjectID != "" {
		for i := range m.tasks {
			t := &m.tasks[i]
			out = append(out, row{kind: rowTask, key: "task:" + t.Task.ID})
			add(t.Task.ID, t.Entries)
		}
		return out
	}
	add("", m.entries)
	return out
}

func groupKey(prefix string, g *model.EventGroup) string {
	return "group:" + prefix + "/" + g.ItemID
}

// rebuild flattens the loaded timeline into visible rows, keeping the cursor
// on the same row when it survives.
func (m *Model) rebuild() {
	var current string
	if r, ok := m.selected(); ok {
		current = r.key
	}

	var rows []row
	addEntries := func(prefix string, depth int, entries []model.AggregatedEvent) {
		for _, e := range entries {
			if e.Event != nil {
				rows = append(rows, row{kind: rowEvent, key: "event:" + e.Event.ID, depth: depth, event: e.Event, at: e.At})
				continue
			}
			if e.Group == nil {
				continue
			}
			g := row{kind: rowGroup, key: groupKey(prefix, e.Group), depth: depth, group: e.Group, at: e.At}
			rows = append(rows, g)
			if !m.isOpen(g) {
				continue
			}
			for i := range e.Group.Events {
				ev := &e.Group.Events[i]
				rows = append(rows, row{kind: rowEvent, key: "event:" + ev.ID, depth: depth + 1, event: ev, at: ev.CreatedAt})
			}
		}
	}

	if m.target.ProjectID != "" {
		for i := range m.tasks {
			t := &m.tasks[i]
			tr := row{kind: rowTask, key: "task:" + t.Task.ID, task: t, at: t.LatestAt}
			rows = append(rows, tr)
			if m.isOpen(tr) {
				addEntries(t.Task.ID, 1, t.Entries)
			}
		}
	} else {
		addEntries("", 0, m.entries)
	}

	m.rows = rows
	m.cursor = min(m.cursor, max(len(rows)-1, 0))
	for i, r := range rows {
		if r.key == current {
			m.cursor = i
			break
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	switch m.viewMode {
	case ViewList:
		b.WriteString(m.listView())
	case ViewDetail:
		b.WriteString(m.detailView(0)) // 0 = full width
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	} else if m.message != "" {
		b.WriteString("\n")
		b.WriteString(messageStyle.Render(m.message))
	}

	padStyle := lipgloss.NewStyle().
		PaddingLeft(contentPadding).
		PaddingRight(contentPadding).
		PaddingTop(1)

	return padStyle.Render(b.String())
}

func (m Model) listView() string {
	if m.width >= minSplitWidth {
		return m.splitView()
	}
	return m.renderListPane(m.width - (contentPadding * 2))
}

// splitView renders the split layout with the timeline on the left and the
// selected row's details on the right.
func (m Model) splitView() string {
	focusedColor := lipgloss.Color("39")
	unfocusedColor := lipgloss.Color("241")

	// Each pane has 1 border left + content + 1 border right, plus a 1 char gap.
	gap := 1
	borderChars := 4
	availableWidth := m.width - borderChars - gap - (contentPadding * 2)
	leftContentWidth := availableWidth * 3 / 5
	rightContentWidth := availableWidth - leftContentWidth

	contentHeight := m.height - 4
	if contentHeight < 10 {
		contentHeight = 10
	}

	leftLines := strings.Split(m.renderListPaneWithHeight(leftContentWidth, contentHeight), "\n")
	rightLines := strings.Split(m.detailViewWithHeight(rightContentWidth, contentHeight), "\n")

	leftLines = normalizeLines(leftLines, contentHeight, leftContentWidth)
	rightLines = normalizeLines(rightLines, contentHeight, rightContentWidth)

	leftColor, rightColor := unfocusedColor, unfocusedColor
	if m.focusPane == FocusList {
		leftColor = focusedColor
	} else {
		rightColor = focusedColor
	}

	leftBox := buildBorderedBox(leftLines, leftContentWidth, leftColor)
	rightBox := buildBorderedBox(rightLines, rightContentWidth, rightColor)

	return lipgloss.JoinHorizontal(lipgloss.Top, leftBox, strings.Repeat(" ", gap), rightBox)
}

// normalizeLines ensures the slice has exactly `height` lines, each padded to `width`.
func normalizeLines(lines []string, height, width int) []string {
	result := make([]string, height)
	for i := 0; i < height; i++ {
		if i < len(lines) {
			result[i] = padToWidth(lines[i], width)
		} else {
			result[i] = strings.Repeat(" ", width)
		}
	}
	return result
}

// buildBorderedBox creates a box with rounded borders around content lines.
func buildBorderedBox(lines []string, contentWidth int, borderColor lipgloss.Color) string {
	style := lipgloss.NewStyle().Foreground(borderColor)
	horizontal := style.Render("─")
	vertical := style.Render("│")

	var b strings.Builder
	b.WriteString(style.Render("╭"))
	b.WriteString(strings.Repeat(horizontal, contentWidth))
	b.WriteString(style.Render("╮"))
	b.WriteString("\n")

	for _, line := range lines {
		b.WriteString(vertical)
		b.WriteString(line)
		b.WriteString(vertical)
		b.WriteString("\n")
	}

	b.WriteString(style.Render("╰"))
	b.WriteString(strings.Repeat(horizontal, contentWidth))
	b.WriteString(style.Render("╯"))
	return b.String()
}

// padToWidth pads a string to the specified width with spaces.
// Accounts for ANSI escape codes when calculating visible width.
func padToWidth(s string, width int) string {
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}

// truncate cuts s to width visible cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

func (m Model) renderListPane(width int) string {
	height := m.height - 4
	if height < 10 {
		height = 15
	}
	return m.renderListPaneWithHeight(width, height)
}

func (m Model) renderListPaneWithHeight(width, height int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("worklog"))
	if m.target.ProjectID != "" {
		b.WriteString(fmt.Sprintf("  project %s  %d tasks", m.target.ProjectID, len(m.tasks)))
	} else {
		b.WriteString(fmt.Sprintf("  task %s  %d entries", m.target.MainTaskID, len(m.entries)))
	}
	b.WriteString("\n\n")

	// Header takes 2 lines, footer 3.
	rowsHeight := max(height-5, 3)

	switch {
	case !m.loaded && m.err == nil:
		b.WriteString(dimStyle.Render("Loading…"))
		b.WriteString("\n")
	case len(m.rows) == 0:
		b.WriteString("No activity yet\n")
	default:
		start := 0
		if m.cursor >= rowsHeight {
			start = m.cursor - rowsHeight + 1
		}
		end := min(start+rowsHeight, len(m.rows))

		rowWidth := max(width, 40)
		for i := start; i < end; i++ {
			r := m.rows[i]
			if i == m.cursor {
				line := truncate(m.formatRowPlain(r), rowWidth)
				b.WriteString(selectedRowStyle.Width(rowWidth).Render(line))
			} else {
				line := m.formatRowStyled(r, rowWidth)
				b.WriteString(lipgloss.NewStyle().Width(rowWidth).Render(line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.width >= minSplitWidth {
		if m.focusPane == FocusList {
			b.WriteString(helpStyle.Render("j/k:nav  enter/h/l:fold  tab:focus detail"))
		} else {
			b.WriteString(helpStyle.Render("j/k:scroll  tab:focus list"))
		}
	} else {
		b.WriteString(helpStyle.Render("j/k:nav  enter:open/fold  h/l:fold"))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("e:expand all  c:collapse all  r:refresh  q:quit"))

	return b.String()
}

func (m Model) marker(r row) string {
	switch r.kind {
	case rowTask:
		return statusIcon(r.task.Task.Status)
	case rowGroup:
		if m.isOpen(r) {
			return iconExpanded
		}
		return iconCollapsed
	}
	return iconEvent
}

func rowText(r row) string {
	switch r.kind {
	case rowTask:
		return r.task.Task.Name
	case rowGroup:
		return GroupSummary(r.group)
	}
	return Summary(*r.event)
}

// formatRowPlain returns a plain text line without any ANSI styling.
func (m Model) formatRowPlain(r row) string {
	indent := strings.Repeat("  ", r.depth)
	line := fmt.Sprintf("%s%s %s", indent, m.marker(r), rowText(r))
	if r.kind == rowEvent {
		line = fmt.Sprintf("%s%s %s %s: %s", indent, m.marker(r), stamp(r.at), r.event.AuthorName, rowText(r))
	}
	return line
}

func (m Model) formatRowStyled(r row, width int) string {
	indent := strings.Repeat("  ", r.depth)
	switch r.kind {
	case rowTask:
		color := statusColors[r.task.Task.Status]
		icon := lipgloss.NewStyle().Foreground(color).Render(m.marker(r))
		return indent + icon + " " + titleStyle.Render(truncate(rowText(r), width-4-len(indent)))
	case rowGroup:
		return indent + m.marker(r) + " " + dimStyle.Render(stamp(r.at)) + " " + truncate(rowText(r), width-18-len(indent))
	}
	prefix := indent + m.marker(r) + " " + dimStyle.Render(stamp(r.at)) + " " + authorStyle.Render(r.event.AuthorName) + ": "
	return prefix + truncate(rowText(r), width-lipgloss.Width(prefix))
}

func stamp(t time.Time) string {
	return t.Local().Format("Jan 02 15:04")
}

func (m Model) detailView(width int) string {
	if width == 0 {
		width = max(m.width-(contentPadding*2), 40)
	}
	height := max(m.height-4, 10)
	return m.detailViewWithHeight(width, height)
}

func (m Model) detailViewWithHeight(width, height int) string {
	r, ok := m.selected()
	if !ok {
		return dimStyle.Render("Nothing selected")
	}

	var lines []string
	add := func(label, value string) {
		lines = append(lines, detailLabelStyle.Render(label+":")+" "+value)
	}

	switch r.kind {
	case rowTask:
		t := r.task.Task
		lines = append(lines, titleStyle.Render(truncate(t.Name, width)), "")
		add("ID", t.ID)
		add("Kind", string(t.Kind))
		add("Status", statusIcon(t.Status)+" "+string(t.Status))
		if t.DueDate != nil {
			add("Due", t.DueDate.Format("2006-01-02"))
		}
		if len(t.Assignees) > 0 {
			add("Assignees", strings.Join(t.Assignees, ", "))
		}
		add("Last activity", stamp(r.task.LatestAt))
		add("Entries", fmt.Sprint(len(r.task.Entries)))

	case rowGroup:
		g := r.group
		lines = append(lines, titleStyle.Render(truncate(g.ItemName, width)), "")
		add("Sub-task", g.ItemID)
		add("Events", fmt.Sprint(len(g.Events)))
		add("Latest", stamp(r.at))
		lines = append(lines, "")
		for _, e := range g.Events {
			lines = append(lines, dimStyle.Render(stamp(e.CreatedAt))+" "+truncate(Summary(e), width-13))
		}

	case rowEvent:
		e := r.event
		lines = append(lines, titleStyle.Render(string(e.Kind)), "")
		add("Event", e.ID)
		add("Item", e.ItemID)
		add("Author", authorStyle.Render(e.AuthorName))
		add("At", e.CreatedAt.Local().Format(time.RFC1123))
		lines = append(lines, "", truncate(Summary(*e), width), "")
		keys := make([]string, 0, len(e.Detail))
		for k := range e.Detail {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, dimStyle.Render(k+" = ")+truncate(fmt.Sprint(e.Detail[k]), width-len(k)-3))
		}
	}

	visibleHeight := height
	totalLines := len(lines)
	maxScroll := max(0, totalLines-visibleHeight)
	scroll := min(m.detailScroll, maxScroll)
	end := min(scroll+visibleHeight, totalLines)
	return strings.Join(lines[scroll:end], "\n")
}

// Run starts the browser.
func Run(src Source, target Target) error {
	p := tea.NewProgram(New(src, target), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
