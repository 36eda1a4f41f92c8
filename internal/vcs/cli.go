package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Runner executes a git command and returns its standard output.
// This abstraction allows substituting git in tests.
type Runner func(ctx context.Context, workDir string, args ...string) (string, error)

// CLIProvider shells out to the git executable.
type CLIProvider struct {
	WorkDir string
	Runner  Runner // if nil, uses the real git subprocess
}

// defaultRunner runs git as a real subprocess.
func defaultRunner(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	out, err := cmd.Output()
	return string(out), err
}

func (p *CLIProvider) run(ctx context.Context, dir string, args ...string) (string, error) {
	runner := p.Runner
	if runner == nil {
		runner = defaultRunner
	}
	out, err := runner(ctx, dir, args...)
	if err != nil {
		return "", classify(err)
	}
	return out, nil
}

// topLevel resolves the repository root; it doubles as the "is this a git
// repo?" check.
func (p *CLIProvider) topLevel(ctx context.Context) (string, error) {
	out, err := p.run(ctx, p.WorkDir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	top := strings.TrimSpace(out)
	if top == "" {
		return "", ErrNotRepository
	}
	return top, nil
}

// ListChangedPaths implements Provider using `git status --porcelain -z`.
func (p *CLIProvider) ListChangedPaths(ctx context.Context) ([]string, error) {
	top, err := p.topLevel(ctx)
	if err != nil {
		return nil, err
	}
	out, err := p.run(ctx, top, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parsePorcelainZ(out), nil
}

// Diff implements Provider. Tracked paths are diffed against HEAD; untracked
// paths are rendered as whole-file additions.
func (p *CLIProvider) Diff(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}
	top, err := p.topLevel(ctx)
	if err != nil {
		return "", err
	}

	// Paths are file names, not pathspecs: "a*.go" must not match "ab.go".
	args := append([]string{"--literal-pathspecs", "diff", "HEAD", "--"}, paths...)
	tracked, err := p.run(ctx, top, args...)
	if err != nil {
		// No HEAD yet (fresh repository): fall back to index vs working tree.
		args = append([]string{"--literal-pathspecs", "diff", "--"}, paths...)
		if tracked, err = p.run(ctx, top, args...); err != nil {
			return "", err
		}
	}

	args = append([]string{"--literal-pathspecs", "ls-files", "--others", "--exclude-standard", "-z", "--"}, paths...)
	others, err := p.run(ctx, top, args...)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(tracked)
	untracked := splitZ(others)
	sort.Strings(untracked)
	for _, rel := range untracked {
		d := fallbackDiff(top, rel)
		if d == "" {
			continue
		}
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString(d)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// parsePorcelainZ extracts paths from `git status --porcelain=v1 -z` output.
// Rename and copy entries are followed by the original path, which is skipped.
func parsePorcelainZ(out string) []string {
	fields := splitZ(out)
	seen := make(map[string]struct{}, len(fields))
	var paths []string
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}
		xy, path := entry[:2], entry[3:]
		if xy[0] == 'R' || xy[0] == 'C' || xy[1] == 'R' || xy[1] == 'C' {
			i++ // original path
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}
	return paths
}

func splitZ(out string) []string {
	parts := strings.Split(out, "\x00")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// classify maps subprocess failures onto the package sentinels.
func classify(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	if isExitCode128(err) {
		return fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	return err
}

// isExitCode128 reports whether err is an *exec.ExitError with exit code 128.
func isExitCode128(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 128
	}
	return false
}

// fallbackDiff produces a simple unified diff showing the full file as added
// lines. Used for untracked files, which git diff does not cover.
func fallbackDiff(top, rel string) string {
	data, err := os.ReadFile(filepath.Join(top, filepath.FromSlash(rel)))
	if err != nil {
		return ""
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return fmt.Sprintf("diff --git a/%s b/%s\nnew file\nBinary files /dev/null and b/%s differ", rel, rel, rel)
	}
	content := strings.TrimRight(string(data), "\n")
	var sb strings.Builder
	fmt.Fprintf(&sb, "diff --git a/%s b/%s\nnew file\n--- /dev/null\n+++ b/%s\n", rel, rel, rel)
	if content == "" {
		return strings.TrimRight(sb.String(), "\n")
	}
	lines := strings.Split(content, "\n")
	fmt.Fprintf(&sb, "@@ -0,0 +1,%d @@\n", len(lines))
	for _, l := range lines {
		sb.WriteString("+" + l + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
