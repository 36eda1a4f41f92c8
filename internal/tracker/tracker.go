// Package tracker reports version-control changes that appeared after a
// monitoring session started.
//
// The first query on a Tracker captures the working tree's full change set
// as the session Baseline and reports nothing new. Every later query reports
// only paths outside that Baseline. A Tracker is not safe for concurrent use.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/fakeyudi/statemon/internal/logfields"
	"github.com/fakeyudi/statemon/internal/source"
	"github.com/fakeyudi/statemon/internal/vcs"
)

// TruncationMarker is appended to diffs cut at the character limit.
const TruncationMarker = "\n... (truncated)"

// ErrInvalidMaxChars is returned for a non-positive diff limit.
var ErrInvalidMaxChars = errors.New("diff max chars must be positive")

// Tracker computes baseline-filtered changes from a vcs.Provider.
type Tracker struct {
	provider vcs.Provider
	baseline Baseline
	logger   *slog.Logger
}

// New returns an uninitialized Tracker.
func New(provider vcs.Provider, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{provider: provider, logger: logger}
}

// Baseline exposes the session baseline for inspection.
func (t *Tracker) Baseline() *Baseline { return &t.baseline }

// Changes returns paths changed since the baseline, sorted. Failures yield
// an empty slice.
func (t *Tracker) Changes(ctx context.Context) []string {
	return t.ReadChanges(ctx).ValueOr([]string{})
}

// ReadChanges is Changes with the failure kind preserved.
func (t *Tracker) ReadChanges(ctx context.Context) source.Result[[]string] {
	if t.establish(ctx) {
		return source.Ok([]string{})
	}
	return t.newPaths(ctx)
}

// Diff returns the diff for paths changed since the baseline, truncated to
// maxChars characters plus TruncationMarker. It returns "" without asking
// the provider when nothing new changed.
func (t *Tracker) Diff(ctx context.Context, maxChars int) (string, error) {
	if maxChars <= 0 {
		return "", ErrInvalidMaxChars
	}
	return t.ReadDiff(ctx, maxChars).ValueOr(""), nil
}

// ReadDiff is Diff with the failure kind preserved. maxChars must be
// positive.
func (t *Tracker) ReadDiff(ctx context.Context, maxChars int) source.Result[string] {
	if t.establish(ctx) {
		return source.Ok("")
	}
	fresh := t.newPaths(ctx)
	if !fresh.IsOk() {
		return failure[string](fresh.Err())
	}
	paths := fresh.Value()
	if len(paths) == 0 {
		return source.Ok("")
	}
	d, err := t.provider.Diff(ctx, paths)
	if err != nil {
		return failure[string](fmt.Errorf("diff new paths: %w", err))
	}
	return source.Ok(Truncate(d, maxChars))
}

// establish captures the baseline on first use and reports whether it did.
// A failed listing still fixes an empty baseline so the session start is
// settled.
func (t *Tracker) establish(ctx context.Context) bool {
	if t.baseline.Initialized() {
		return false
	}
	paths, err := t.provider.ListChangedPaths(ctx)
	if err != nil {
		t.logger.Debug("Baseline listing failed; starting from an empty baseline", logfields.Error(err))
		paths = nil
	}
	t.baseline.capture(paths)
	t.logger.Debug("Captured change baseline",
		logfields.Count(len(paths)), slog.String("state", t.baseline.State().String()))
	return true
}

func (t *Tracker) newPaths(ctx context.Context) source.Result[[]string] {
	current, err := t.provider.ListChangedPaths(ctx)
	if err != nil {
		return failure[[]string](fmt.Errorf("list changed paths: %w", err))
	}
	return source.Ok(t.baseline.Subtract(current))
}

func failure[T any](err error) source.Result[T] {
	if errors.Is(err, vcs.ErrNotRepository) || errors.Is(err, vcs.ErrToolUnavailable) {
		return source.Missing[T](err)
	}
	return source.Corrupt[T](err)
}

// Truncate cuts s to at most maxChars characters and appends
// TruncationMarker when anything was removed.
func Truncate(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}
