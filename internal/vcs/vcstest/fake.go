// Package vcstest provides an in-memory vcs.Provider for tests.
package vcstest

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Fake is a scriptable vcs.Provider. Set Changed to the current working-tree
// change set; Diffs maps a path to the diff text rendered for it.
type Fake struct {
	Changed []string
	Diffs   map[string]string
	ListErr error
	DiffErr error

	ListCalls int
	DiffCalls int
	LastDiff  []string
}

// ListChangedPaths returns a copy of Changed.
func (f *Fake) ListChangedPaths(context.Context) ([]string, error) {
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]string(nil), f.Changed...), nil
}

// Diff concatenates Diffs for the requested paths in sorted order. Paths
// without an entry get a one-line placeholder diff.
func (f *Fake) Diff(_ context.Context, paths []string) (string, error) {
	f.DiffCalls++
	f.LastDiff = append([]string(nil), paths...)
	if f.DiffErr != nil {
		return "", f.DiffErr
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	var sb strings.Builder
	for _, p := range sorted {
		if d, ok := f.Diffs[p]; ok {
			sb.WriteString(d)
			continue
		}
		fmt.Fprintf(&sb, "diff --git a/%s b/%s\n+changed\n", p, p)
	}
	return sb.String(), nil
}
