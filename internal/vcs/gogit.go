package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// GoGitProvider reads the working tree in-process with go-git, so it works
// without a git executable on PATH.
type GoGitProvider struct {
	Root string
}

func (p *GoGitProvider) open() (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpenWithOptions(p.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotRepository, p.Root)
		}
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no working tree to report on.
		return nil, nil, fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	return repo, wt, nil
}

// ListChangedPaths implements Provider using the worktree status.
func (p *GoGitProvider) ListChangedPaths(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, wt, err := p.open()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}
	paths := make([]string, 0, len(status))
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// Diff implements Provider by comparing each path's HEAD blob with the file
// on disk.
func (p *GoGitProvider) Diff(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, wt, err := p.open()
	if err != nil {
		return "", err
	}
	head, err := headCommit(repo)
	if err != nil {
		return "", err
	}
	top := wt.Filesystem.Root()

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var sb strings.Builder
	for _, rel := range sorted {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		before, hadBefore := blobContents(head, rel)
		data, err := os.ReadFile(filepath.Join(top, filepath.FromSlash(rel)))
		after, hasAfter := string(data), err == nil
		if before == after && hadBefore == hasAfter {
			continue
		}
		sb.WriteString(renderFileDiff(rel, before, after, hadBefore, hasAfter))
	}
	return sb.String(), nil
}

// headCommit returns nil for a repository without commits.
func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load HEAD commit: %w", err)
	}
	return c, nil
}

func blobContents(head *object.Commit, rel string) (string, bool) {
	if head == nil {
		return "", false
	}
	f, err := head.File(rel)
	if err != nil {
		return "", false
	}
	s, err := f.Contents()
	if err != nil {
		return "", false
	}
	return s, true
}

// renderFileDiff emits a line-oriented diff. Unchanged runs collapse to a
// single "@@" separator.
func renderFileDiff(rel, before, after string, hadBefore, hasAfter bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", rel, rel)
	switch {
	case !hadBefore:
		sb.WriteString("new file\n--- /dev/null\n")
		fmt.Fprintf(&sb, "+++ b/%s\n", rel)
	case !hasAfter:
		sb.WriteString("deleted file\n")
		fmt.Fprintf(&sb, "--- a/%s\n+++ /dev/null\n", rel)
	default:
		fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", rel, rel)
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			sb.WriteString("@@\n")
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix + strings.TrimSuffix(line, "\n") + "\n")
		}
	}
	return sb.String()
}
