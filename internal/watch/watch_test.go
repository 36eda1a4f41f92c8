package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fakeyudi/statemon/internal/monitor"
	"github.com/fakeyudi/statemon/internal/observation"
	"github.com/fakeyudi/statemon/internal/plan"
)

// fakeSource returns whatever snapshot was last set.
type fakeSource struct {
	mu          sync.Mutex
	snap        monitor.Snapshot
	polls       int
	invalidates int
}

func (f *fakeSource) set(s monitor.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}

func (f *fakeSource) CurrentState(context.Context) monitor.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.snap
}

func (f *fakeSource) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidates++
}

func snapshotWith(changes ...string) monitor.Snapshot {
	return monitor.Snapshot{SessionID: "s", Changes: changes, Observations: []observation.Observation{}}
}

func TestPollReportsOnlyDifferences(t *testing.T) {
	src := &fakeSource{snap: snapshotWith()}
	var seen []monitor.Snapshot
	l, err := New(Options{Source: src, OnChange: func(s monitor.Snapshot) { seen = append(seen, s) }})
	require.NoError(t, err)

	assert.True(t, l.Poll(t.Context(), false), "first poll always reports")
	assert.False(t, l.Poll(t.Context(), false))

	src.set(snapshotWith("a.go"))
	assert.True(t, l.Poll(t.Context(), true))
	assert.False(t, l.Poll(t.Context(), true))

	snap := snapshotWith("a.go")
	snap.Plan = &plan.Progress{Status: "PENDING", Completed: 1, Total: 2}
	src.set(snap)
	assert.True(t, l.Poll(t.Context(), false))

	snap.Plan = &plan.Progress{Status: "PENDING", Completed: 2, Total: 2}
	src.set(snap)
	assert.True(t, l.Poll(t.Context(), false))

	snap.Observations = []observation.Observation{{Title: "new", CreatedAtEpoch: 5}}
	src.set(snap)
	assert.True(t, l.Poll(t.Context(), false))

	require.Len(t, seen, 5)
	assert.Equal(t, []string{"a.go"}, seen[1].Changes)
	assert.Equal(t, 2, src.invalidates)
}

func TestPollIgnoresTimestampOnlyChanges(t *testing.T) {
	src := &fakeSource{snap: snapshotWith("x")}
	calls := 0
	l, err := New(Options{Source: src, OnChange: func(monitor.Snapshot) { calls++ }})
	require.NoError(t, err)

	l.Poll(t.Context(), false)
	next := snapshotWith("x")
	next.TakenAt = time.Now()
	src.set(next)
	l.Poll(t.Context(), false)
	assert.Equal(t, 1, calls)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Source: &fakeSource{}})
	assert.ErrorIs(t, err, ErrNoOnChange)

	_, err = New(Options{OnChange: func(monitor.Snapshot) {}})
	assert.Error(t, err)

	_, err = New(Options{Source: &fakeSource{}, OnChange: func(monitor.Snapshot) {}, Interval: -time.Second})
	assert.Error(t, err)
}

func TestIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	ignoreFile := filepath.Join(root, ".gitignore")
	require.NoError(t, os.WriteFile(ignoreFile, []byte("# build output\nbin/\n*.log\n!keep.log\n"), 0o644))

	l, err := New(Options{Source: &fakeSource{}, OnChange: func(monitor.Snapshot) {}, IgnoreFile: ignoreFile})
	require.NoError(t, err)

	assert.True(t, l.ignored(filepath.Join(root, "bin")))
	assert.True(t, l.ignored(filepath.Join(root, "debug.log")))
	assert.False(t, l.ignored(filepath.Join(root, "main.go")))
	assert.False(t, l.ignored(filepath.Join(root, "sub", "debug.log")), "patterns apply to the ignore file's directory only")
	assert.True(t, l.ignored(filepath.Join(root, ".claude-mem", "claude-mem.db-journal")))
	assert.False(t, l.ignored(filepath.Join(root, ".claude-mem", "claude-mem.db-wal")))
}

func TestRunPollsOnFileEvents(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{snap: snapshotWith()}
	changed := make(chan monitor.Snapshot, 4)
	l, err := New(Options{
		Source:   src,
		Paths:    []string{dir, filepath.Join(dir, "missing")},
		Interval: time.Hour,
		Debounce: 20 * time.Millisecond,
		OnChange: func(s monitor.Snapshot) { changed <- s },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("initial poll never reported")
	}

	src.set(snapshotWith("plan.md"))
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "plan.md"), []byte("Status: PENDING\n"), 0o644)
		select {
		case s := <-changed:
			return assert.Equal(t, []string{"plan.md"}, s.Changes)
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunPollsOnInterval(t *testing.T) {
	src := &fakeSource{snap: snapshotWith()}
	changed := make(chan monitor.Snapshot, 4)
	l, err := New(Options{
		Source:   src,
		Interval: 20 * time.Millisecond,
		OnChange: func(s monitor.Snapshot) { changed <- s },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	<-changed
	src.set(snapshotWith("tick.go"))
	select {
	case s := <-changed:
		assert.Equal(t, []string{"tick.go"}, s.Changes)
	case <-time.After(5 * time.Second):
		t.Fatal("interval poll never reported")
	}
}

// Feature: statemon, Property: equal visible state is reported once
func TestFingerprintProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		changes := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,4}`), 0, 4).Draw(t, "changes")
		a := snapshotWith(changes...)
		b := snapshotWith(append([]string(nil), changes...)...)
		b.SessionID = "other"
		b.TakenAt = time.Unix(rapid.Int64Range(0, 1<<32).Draw(t, "ts"), 0)
		if fingerprintOf(a) != fingerprintOf(b) {
			t.Fatalf("fingerprints differ for equal visible state")
		}
		extra := rapid.StringMatching(`[A-Z]{1,4}`).Draw(t, "extra")
		c := snapshotWith(append(append([]string(nil), changes...), extra)...)
		if fingerprintOf(a) == fingerprintOf(c) {
			t.Fatalf("fingerprints equal after adding %q", extra)
		}
	})
}
