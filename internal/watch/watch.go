// Package watch re-polls a monitor when watched files change and on a fixed
// interval, reporting each snapshot whose visible state differs from the
// last one reported.
package watch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/fakeyudi/statemon/internal/logfields"
	"github.com/fakeyudi/statemon/internal/monitor"
)

// Defaults applied when an Options field is left zero.
const (
	DefaultInterval = 5 * time.Second
	DefaultDebounce = 250 * time.Millisecond
)

// ErrNoOnChange is returned by New when Options.OnChange is nil.
var ErrNoOnChange = errors.New("watch: OnChange callback is required")

// Source is the part of a StateMonitor the loop polls.
type Source interface {
	CurrentState(ctx context.Context) monitor.Snapshot
	Invalidate()
}

// Options configures a Loop.
type Options struct {
	Source   Source
	Interval time.Duration
	Debounce time.Duration
	// Paths are directories watched non-recursively. Missing ones are skipped.
	Paths []string
	// IgnoreFile is a gitignore-style file. Events for entries directly in
	// its directory whose names match a pattern are dropped. Optional.
	IgnoreFile string
	OnChange   func(monitor.Snapshot)
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// Loop serializes every poll of its Source behind one mutex, so file events
// and scheduled polls never overlap.
type Loop struct {
	source   Source
	interval time.Duration
	debounce time.Duration
	paths    []string
	ignoreIn string
	ignore   []string
	onChange func(monitor.Snapshot)
	clock    clockwork.Clock
	logger   *slog.Logger

	mu   sync.Mutex
	last *fingerprint
}

// New validates opts and returns a Loop that is not yet running.
func New(opts Options) (*Loop, error) {
	if opts.Source == nil {
		return nil, errors.New("watch: Source is required")
	}
	if opts.OnChange == nil {
		return nil, ErrNoOnChange
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("watch: interval must be positive, got %s", interval)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var ignore []string
	if opts.IgnoreFile != "" {
		patterns, err := readPatternFile(opts.IgnoreFile)
		if err != nil && !os.IsNotExist(err) {
			logger.Warn("Could not read ignore file", logfields.Path(opts.IgnoreFile), logfields.Error(err))
		}
		ignore = patterns
	}

	return &Loop{
		source:   opts.Source,
		interval: interval,
		debounce: debounce,
		paths:    opts.Paths,
		ignoreIn: filepath.Dir(opts.IgnoreFile),
		ignore:   ignore,
		onChange: opts.OnChange,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Poll reads the current state and reports it when it differs from the last
// reported state. fresh drops cached facets first. It reports whether
// OnChange ran.
func (l *Loop) Poll(ctx context.Context, fresh bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fresh {
		l.source.Invalidate()
	}
	start := l.clock.Now()
	snap := l.source.CurrentState(ctx)
	l.logger.Debug("Polled snapshot", logfields.DurationMS(float64(l.clock.Since(start).Microseconds())/1000))
	fp := fingerprintOf(snap)
	if l.last != nil && *l.last == fp {
		return false
	}
	l.last = &fp
	l.onChange(snap)
	return true
}

// Run polls once, then on every interval tick and after each debounced burst
// of file events, until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range l.paths {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			l.logger.Debug("Skipping watch path", logfields.Path(dir))
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(l.clock))
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(l.interval),
		gocron.NewTask(func() { l.Poll(ctx, false) }),
		gocron.WithName("statemon-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create poll job: %w", err)
	}

	l.Poll(ctx, false)
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			l.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}()

	var pending clockwork.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if l.ignored(event.Name) {
				continue
			}
			l.logger.Debug("File event", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if pending != nil {
				pending.Stop()
			}
			pending = l.clock.AfterFunc(l.debounce, func() { l.Poll(ctx, true) })

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("File watcher error", logfields.Error(err))
		}
	}
}

// ignored reports whether an event path is a SQLite side file other than the
// write-ahead log, or matches an ignore pattern.
func (l *Loop) ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, "-journal") || strings.HasSuffix(base, "-shm") {
		return true
	}
	if filepath.Dir(path) != l.ignoreIn {
		return false
	}
	for _, pattern := range l.ignore {
		if matched, _ := filepath.Match(strings.TrimSuffix(pattern, "/"), base); matched {
			return true
		}
	}
	return false
}

// fingerprint is the visible part of a Snapshot: new changes, the newest
// observation, and plan progress.
type fingerprint struct {
	changes  string
	obsCount int
	obsHead  string
	plan     string
	diffLen  int
}

func fingerprintOf(s monitor.Snapshot) fingerprint {
	fp := fingerprint{
		changes:  strings.Join(s.Changes, "\x00"),
		obsCount: len(s.Observations),
		diffLen:  len(s.Diff),
	}
	if len(s.Observations) > 0 {
		head := s.Observations[0]
		fp.obsHead = strconv.FormatInt(head.CreatedAtEpoch, 10) + "\x00" + head.Title
	}
	if s.Plan != nil {
		fp.plan = fmt.Sprintf("%s\x00%s\x00%d/%d", s.Plan.SourcePath, s.Plan.Status, s.Plan.Completed, s.Plan.Total)
	}
	return fp
}

// readPatternFile reads a gitignore-style file and returns non-empty,
// non-comment, non-negated lines.
func readPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
