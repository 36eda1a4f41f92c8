// Package vcs abstracts the two questions the monitor asks version control:
// which working-tree paths are changed, and what the diff for some of them is.
package vcs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotRepository means the project root is not inside a repository.
	ErrNotRepository = errors.New("not a git repository")
	// ErrToolUnavailable means the git executable could not be found.
	ErrToolUnavailable = errors.New("git executable not available")
)

// Provider lists changed paths and renders diffs for the working tree.
// Paths are slash-separated and relative to the repository top level.
type Provider interface {
	ListChangedPaths(ctx context.Context) ([]string, error)
	Diff(ctx context.Context, paths []string) (string, error)
}

// Backend names accepted by New.
const (
	BackendCLI   = "cli"
	BackendGoGit = "gogit"
)

// New returns the provider for backend rooted at root.
func New(backend, root string) (Provider, error) {
	switch backend {
	case "", BackendCLI:
		return &CLIProvider{WorkDir: root}, nil
	case BackendGoGit:
		return &GoGitProvider{Root: root}, nil
	default:
		return nil, fmt.Errorf("unknown git backend %q", backend)
	}
}
