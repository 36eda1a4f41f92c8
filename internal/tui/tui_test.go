package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/statemon/internal/monitor"
	"github.com/fakeyudi/statemon/internal/observation"
	"github.com/fakeyudi/statemon/internal/plan"
)

type stubSource struct {
	snap        monitor.Snapshot
	invalidated int
}

func (s *stubSource) CurrentState(context.Context) monitor.Snapshot { return s.snap }

func (s *stubSource) Invalidate() { s.invalidated++ }

func sample() *monitor.Snapshot {
	return &monitor.Snapshot{
		SessionID:   "sess-1",
		TakenAt:     time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC),
		ProjectRoot: "/work/app",
		Observations: []observation.Observation{
			{Kind: "decision", Title: "Chose approach", Body: "Reasoning", CreatedAt: "2026-01-20T10:01:00"},
			{Kind: "discovery", Title: "Found pattern", CreatedAt: "2026-01-20T10:00:00"},
		},
		Plan:    &plan.Progress{Status: "PENDING", Completed: 1, Total: 2, SourcePath: "/work/app/docs/plans/p.md"},
		Changes: []string{"new.go"},
		Diff:    "diff --git a/new.go b/new.go\n+package x\n",
	}
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func press(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestViewShowsTabsAndSummary(t *testing.T) {
	m := sized(New(sample(), "report.md"))
	view := m.View()
	for _, name := range tabNames {
		assert.Contains(t, view, name)
	}
	assert.Contains(t, view, "/work/app")
	assert.Contains(t, view, "PENDING (1/2)")
	assert.NotContains(t, view, "r refresh")
}

func TestTabNavigation(t *testing.T) {
	m := sized(New(sample(), "report.md"))
	m, _ = press(m, "3")
	assert.Equal(t, tabPlan, m.activeTab)
	assert.Contains(t, m.View(), "docs/plans/p.md")

	m, _ = press(m, "l")
	assert.Equal(t, tabChanges, m.activeTab)
	m, _ = press(m, "l")
	m, _ = press(m, "l")
	assert.Equal(t, tabSummary, m.activeTab, "wraps around")
}

func TestObservationExpand(t *testing.T) {
	m := sized(New(sample(), "report.md"))
	m, _ = press(m, "2")
	assert.NotContains(t, m.renderObservations(), "Reasoning")

	m, _ = press(m, "enter")
	assert.Contains(t, m.renderObservations(), "Reasoning")

	m, _ = press(m, "down")
	assert.Equal(t, 1, m.obsCursor)
	m, _ = press(m, "down")
	assert.Equal(t, 1, m.obsCursor, "cursor stops at the last observation")
}

func TestEmptySnapshotRenders(t *testing.T) {
	m := sized(New(&monitor.Snapshot{}, "empty"))
	for i := tabID(0); i < tabCount; i++ {
		assert.NotEmpty(t, m.renderTab(i))
	}
	assert.Contains(t, m.renderPlan(), "no active plan")
	assert.Contains(t, m.renderDiffTab(), "no diff")
}

func TestLiveRefresh(t *testing.T) {
	src := &stubSource{snap: *sample()}
	m := sized(NewLive(src, time.Second, "/work/app"))
	require.NotNil(t, m.Init())

	next, _ := m.Update(snapshotMsg(src.snap))
	m = next.(Model)
	assert.False(t, m.refreshing)
	assert.Contains(t, m.View(), "r refresh")

	m, cmd := press(m, "r")
	require.NotNil(t, cmd)
	assert.True(t, m.refreshing)

	src.snap.Changes = []string{"new.go", "other.go"}
	msg := cmd()
	assert.Equal(t, 1, src.invalidated)
	next, _ = m.Update(msg)
	m = next.(Model)
	m, _ = press(m, "4")
	assert.True(t, strings.Contains(m.View(), "other.go"))

	_, cmd = press(m, "r")
	require.NotNil(t, cmd)
}

func TestQuit(t *testing.T) {
	_, cmd := press(sized(New(sample(), "x")), "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
