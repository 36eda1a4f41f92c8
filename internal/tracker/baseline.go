package tracker

import "sort"

// BaselineState is the initialization state of a Baseline.
type BaselineState int

const (
	Uninitialized BaselineState = iota
	InitializedEmpty
	InitializedNonEmpty
)

func (s BaselineState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case InitializedEmpty:
		return "initialized-empty"
	case InitializedNonEmpty:
		return "initialized-nonempty"
	default:
		return "unknown"
	}
}

// Baseline is the change set observed at the first query of a session. It
// is written once and never replaced.
type Baseline struct {
	state BaselineState
	paths map[string]struct{}
}

// State returns the initialization state.
func (b *Baseline) State() BaselineState { return b.state }

// Initialized reports whether the baseline has been captured.
func (b *Baseline) Initialized() bool { return b.state != Uninitialized }

// capture stores paths as the baseline. It is a no-op once initialized.
func (b *Baseline) capture(paths []string) bool {
	if b.Initialized() {
		return false
	}
	b.paths = make(map[string]struct{}, len(paths))
	for _, p := range paths {
		b.paths[p] = struct{}{}
	}
	if len(b.paths) == 0 {
		b.state = InitializedEmpty
	} else {
		b.state = InitializedNonEmpty
	}
	return true
}

// Contains reports whether path was already changed at session start.
func (b *Baseline) Contains(path string) bool {
	_, ok := b.paths[path]
	return ok
}

// Paths returns the baseline paths in sorted order.
func (b *Baseline) Paths() []string {
	out := make([]string, 0, len(b.paths))
	for p := range b.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Subtract returns the sorted, de-duplicated paths of current that are not
// in the baseline.
func (b *Baseline) Subtract(current []string) []string {
	seen := make(map[string]struct{}, len(current))
	out := make([]string, 0)
	for _, p := range current {
		if b.Contains(p) {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
