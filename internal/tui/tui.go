// Package tui provides a Bubble Tea TUI for viewing project state snapshots,
// either from a saved report or live from a monitor.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/statemon/internal/monitor"
	"github.com/fakeyudi/statemon/internal/report"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	kindStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	diffAddStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	diffDelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	diffMetaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabObservations
	tabPlan
	tabChanges
	tabDiff
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Observations", "Plan", "Changes", "Diff",
}

// Source is polled by a live TUI.
type Source interface {
	CurrentState(ctx context.Context) monitor.Snapshot
	Invalidate()
}

type (
	tickMsg     time.Time
	snapshotMsg monitor.Snapshot
)

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	snap      monitor.Snapshot
	title     string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool

	// Live mode.
	source     Source
	interval   time.Duration
	refreshing bool

	// Observations tab: cursor position and expanded set.
	obsCursor   int
	expandedObs map[int]bool
}

// New creates a model showing a fixed snapshot, e.g. one parsed from a
// report file.
func New(snap *monitor.Snapshot, title string) Model {
	return Model{
		snap:        *snap,
		title:       title,
		expandedObs: make(map[int]bool),
	}
}

// NewLive creates a model that polls src every interval; "r" forces a fresh
// read.
func NewLive(src Source, interval time.Duration, title string) Model {
	m := New(&monitor.Snapshot{}, title)
	m.source = src
	m.interval = interval
	m.refreshing = true // Init issues the first read
	return m
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	if m.source == nil {
		return nil
	}
	return tea.Batch(m.refresh(false), m.tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "r":
			if m.source != nil && !m.refreshing {
				m.refreshing = true
				return m, m.refresh(true)
			}
		case "up", "k":
			if m.activeTab == tabObservations && m.obsCursor > 0 {
				m.obsCursor--
				m.rebuild(tabObservations)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabObservations && m.obsCursor < len(m.snap.Observations)-1 {
				m.obsCursor++
				m.rebuild(tabObservations)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabObservations && len(m.snap.Observations) > 0 {
				if m.expandedObs[m.obsCursor] {
					delete(m.expandedObs, m.obsCursor)
				} else {
					m.expandedObs[m.obsCursor] = true
				}
				m.rebuild(tabObservations)
				return m, nil
			}
		}
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil

	case tickMsg:
		if m.refreshing {
			return m, m.tick()
		}
		m.refreshing = true
		return m, tea.Batch(m.refresh(false), m.tick())

	case snapshotMsg:
		m.refreshing = false
		m.snap = monitor.Snapshot(msg)
		if m.obsCursor >= len(m.snap.Observations) {
			m.obsCursor = max(len(m.snap.Observations)-1, 0)
		}
		clear(m.expandedObs)
		if m.ready {
			for i := tabID(0); i < tabCount; i++ {
				m.rebuild(i)
			}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	header := "  statemon  " + m.title
	if !m.snap.TakenAt.IsZero() {
		header += "  " + m.snap.TakenAt.Format("15:04:05")
	}
	title := titleStyle.Width(m.width).Render(header)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-5 jump  q quit"
	if m.source != nil {
		hint += "  r refresh"
	}
	if m.activeTab == tabObservations {
		hint += "  enter expand/collapse"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Live refresh ──────────────────

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) refresh(fresh bool) tea.Cmd {
	src := m.source
	return func() tea.Msg {
		if fresh {
			src.Invalidate()
		}
		return snapshotMsg(src.CurrentState(context.Background()))
	}
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := max(m.height-3, 1)
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabObservations:
		return m.renderObservations()
	case tabPlan:
		return m.renderPlan()
	case tabChanges:
		return m.renderChanges()
	case tabDiff:
		return m.renderDiffTab()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func bullet(text string) string {
	return bulletStyle.Render("  •") + "  " + text + "\n"
}

func (m *Model) renderSummary() string {
	s := m.snap
	var sb strings.Builder
	sb.WriteString(heading("Project State"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Project:", s.ProjectRoot)
	row("Session:", s.SessionID)
	if !s.TakenAt.IsZero() {
		row("Taken:", s.TakenAt.Format("2006-01-02 15:04:05 MST"))
	}
	if s.Plan != nil {
		row("Plan:", fmt.Sprintf("%s (%s)", s.Plan.Status, report.PlanFraction(s.Plan)))
	} else {
		row("Plan:", dimStyle.Render("none"))
	}

	sb.WriteString("\n")
	sb.WriteString(heading("Counts"))
	row("Observations:", fmt.Sprintf("%d", len(s.Observations)))
	row("Changed files:", fmt.Sprintf("%d", len(s.Changes)))
	row("Diff chars:", fmt.Sprintf("%d", len([]rune(s.Diff))))
	return sb.String()
}

func (m *Model) renderObservations() string {
	obs := m.snap.Observations
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Observations (%d)", len(obs))))
	if len(obs) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, o := range obs {
		ts := timeStyle.Render(o.CreatedAt)
		badge := kindStyle.Render("[" + strings.ToUpper(o.Kind) + "]")

		toggle := dimStyle.Render("  ▶ ")
		if m.expandedObs[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		if o.Body == "" {
			toggle = "    "
		}

		row := fmt.Sprintf("%s%s  %s  %s", toggle, ts, badge, o.Title)
		if i == m.obsCursor && m.width > 2 {
			row = selectedRowStyle.Width(m.width - 2).Render(row)
		}
		sb.WriteString(row + "\n")
		if m.expandedObs[i] && o.Body != "" {
			sb.WriteString(dimStyle.Render(indent(o.Body, "      ")) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderPlan() string {
	var sb strings.Builder
	sb.WriteString(heading("Active Plan"))
	p := m.snap.Plan
	if p == nil {
		sb.WriteString(dimStyle.Render("  (no active plan)") + "\n")
		return sb.String()
	}
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("File:", stripRoot(p.SourcePath, m.snap.ProjectRoot))
	row("Status:", p.Status)
	row("Progress:", report.PlanFraction(p)+"  "+progressBar(p.Completed, p.Total, 30))
	return sb.String()
}

func (m *Model) renderChanges() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Changed Since Session Start (%d)", len(m.snap.Changes))))
	if len(m.snap.Changes) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, p := range m.snap.Changes {
		sb.WriteString(bullet(p))
	}
	return sb.String()
}

func (m *Model) renderDiffTab() string {
	var sb strings.Builder
	sb.WriteString(heading("Diff"))
	if m.snap.Diff == "" {
		sb.WriteString(dimStyle.Render("  (no diff)") + "\n")
		return sb.String()
	}
	sb.WriteString(renderDiff(m.snap.Diff, m.width))
	return sb.String()
}

// renderDiff colorises a unified diff string.
func renderDiff(diff string, width int) string {
	var sb strings.Builder
	border := dimStyle.Render("  " + strings.Repeat("─", max(width-4, 0)))
	sb.WriteString(border + "\n")
	for _, line := range strings.Split(diff, "\n") {
		var rendered string
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			rendered = diffMetaStyle.Render("  " + line)
		case strings.HasPrefix(line, "+"):
			rendered = diffAddStyle.Render("  " + line)
		case strings.HasPrefix(line, "-"):
			rendered = diffDelStyle.Render("  " + line)
		case strings.HasPrefix(line, "@@"), strings.HasPrefix(line, "diff --git"):
			rendered = diffMetaStyle.Render("  " + line)
		default:
			rendered = dimStyle.Render("  " + line)
		}
		sb.WriteString(rendered + "\n")
	}
	sb.WriteString(border + "\n")
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func progressBar(done, total, width int) string {
	if total <= 0 {
		return dimStyle.Render(strings.Repeat("░", width))
	}
	filled := min(done*width/total, width)
	return diffAddStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// stripRoot removes the project root prefix from path.
func stripRoot(path, root string) string {
	if root == "" {
		return path
	}
	prefix := strings.TrimSuffix(root, "/") + "/"
	return strings.TrimPrefix(path, prefix)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// Run shows a fixed snapshot.
func Run(snap *monitor.Snapshot, title string) error {
	p := tea.NewProgram(New(snap, title), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RunLive shows src and refreshes it every interval until the user quits.
func RunLive(src Source, interval time.Duration, title string) error {
	p := tea.NewProgram(NewLive(src, interval, title), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
