package plan

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fakeyudi/statemon/internal/logfields"
	"github.com/fakeyudi/statemon/internal/source"
)

// DefaultDir is the plans directory relative to the project root.
const DefaultDir = "docs/plans"

// ErrNoPlans is returned when the plans directory holds no markdown files.
var ErrNoPlans = errors.New("no plan files")

var datePrefix = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)

// Finder scans a plans directory for the active plan. It is uncached: plan
// files are small and re-read on every call.
type Finder struct {
	Dir    string
	Logger *slog.Logger
}

// NewFinder returns a Finder for dir.
func NewFinder(dir string) *Finder {
	return &Finder{Dir: dir}
}

func (f *Finder) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Active returns the active plan's progress, or nil when there is none.
func (f *Finder) Active() *Progress {
	r := f.Find()
	if !r.IsOk() {
		return nil
	}
	p := r.Value()
	return &p
}

// Find is Active with the failure kind preserved.
func (f *Finder) Find() source.Result[Progress] {
	cands, err := f.candidates()
	if err != nil {
		return source.Missing[Progress](err)
	}
	if len(cands) == 0 {
		return source.Missing[Progress](fmt.Errorf("%s: %w", f.Dir, ErrNoPlans))
	}

	var lastErr error
	for _, c := range cands {
		data, err := os.ReadFile(c.path)
		if err != nil {
			lastErr = err
			f.logger().Debug("Skipping unreadable plan", logfields.Path(c.path), logfields.Error(err))
			continue
		}
		p, err := Parse(data)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", c.path, err)
			f.logger().Debug("Skipping unparsable plan", logfields.Path(c.path), logfields.Error(err))
			continue
		}
		p.SourcePath = c.path
		return source.Ok(p)
	}
	return source.Corrupt[Progress](lastErr)
}

type candidate struct {
	path  string
	name  string
	date  time.Time // zero when the file name carries no date
	mtime time.Time
}

// candidates lists markdown files in selection order: embedded file-name
// date, then modification time, then name, all newest/greatest first. Files
// without a date come after dated ones.
func (f *Finder) candidates() ([]candidate, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, fmt.Errorf("read plans directory: %w", err)
	}

	var out []candidate
	for _, e := range entries {
		if c, ok := f.candidate(e); ok {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.date.Equal(b.date) {
			return a.date.After(b.date)
		}
		if !a.mtime.Equal(b.mtime) {
			return a.mtime.After(b.mtime)
		}
		return a.name > b.name
	})
	return out, nil
}

// candidate describes one directory entry, or reports false for entries that
// are not plan files or cannot be stat'ed.
func (f *Finder) candidate(e fs.DirEntry) (candidate, bool) {
	if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
		return candidate{}, false
	}
	c := candidate{path: filepath.Join(f.Dir, e.Name()), name: e.Name()}
	info, err := e.Info()
	if err != nil {
		f.logger().Debug("Skipping unreadable plan", logfields.Path(c.path), logfields.Error(err))
		return candidate{}, false
	}
	c.mtime = info.ModTime()
	if m := datePrefix.FindString(e.Name()); m != "" {
		if d, err := time.Parse(time.DateOnly, m); err == nil {
			c.date = d
		}
	}
	return c, true
}
