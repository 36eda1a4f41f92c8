// Package monitor assembles project state snapshots from the observation
// store, the active plan, and version-control changes made since the
// monitor was created.
//
// A StateMonitor owns its change baseline and cache exclusively. It is not
// safe for concurrent use; callers that poll from several goroutines must
// serialize access or create one monitor per goroutine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/fakeyudi/statemon/internal/cache"
	"github.com/fakeyudi/statemon/internal/logfields"
	"github.com/fakeyudi/statemon/internal/metrics"
	"github.com/fakeyudi/statemon/internal/observation"
	"github.com/fakeyudi/statemon/internal/plan"
	"github.com/fakeyudi/statemon/internal/source"
	"github.com/fakeyudi/statemon/internal/tracker"
	"github.com/fakeyudi/statemon/internal/vcs"
)

// Defaults applied when an Options field is left zero.
const (
	DefaultCacheTTL         = 30 * time.Second
	DefaultMaxDiffChars     = 10_000
	DefaultObservationLimit = 10
)

var (
	// ErrNoProjectRoot is returned by New when Options.ProjectRoot is empty.
	ErrNoProjectRoot = errors.New("project root is required")
	// ErrInvalidLimit is returned for a non-positive observation limit.
	ErrInvalidLimit = errors.New("observation limit must be positive")
)

// Facet names used in logs and metrics.
const (
	FacetObservations = "observations"
	FacetPlan         = "plan"
	FacetChanges      = "changes"
	FacetDiff         = "diff"
)

type (
	observationsResult = source.Result[[]observation.Observation]
	planResult         = source.Result[plan.Progress]
	changesResult      = source.Result[[]string]
	diffResult         = source.Result[string]
)

// Options configures a StateMonitor. Zero values select defaults; negative
// durations and limits are rejected by New.
type Options struct {
	ProjectRoot      string
	DBPath           string // relative paths are resolved against ProjectRoot
	PlansDir         string // relative paths are resolved against ProjectRoot
	CacheTTL         time.Duration
	MaxDiffChars     int
	ObservationLimit int

	Provider vcs.Provider // defaults to the git CLI at ProjectRoot
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// StateMonitor produces Snapshots for one project.
type StateMonitor struct {
	id      string
	root    string
	ttl     time.Duration
	maxDiff int
	limit   int
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   *cache.Cache
	reader  *observation.Reader
	plans   *plan.Finder
	tracker *tracker.Tracker
}

// New validates opts and returns a monitor in the uninitialized baseline
// state.
func New(opts Options) (*StateMonitor, error) {
	if opts.ProjectRoot == "" {
		return nil, ErrNoProjectRoot
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if err := cache.ValidateTTL(ttl); err != nil {
		return nil, fmt.Errorf("%w: %s", err, ttl)
	}
	maxDiff := opts.MaxDiffChars
	if maxDiff == 0 {
		maxDiff = DefaultMaxDiffChars
	}
	if maxDiff < 0 {
		return nil, fmt.Errorf("%w: %d", tracker.ErrInvalidMaxChars, maxDiff)
	}
	limit := opts.ObservationLimit
	if limit == 0 {
		limit = DefaultObservationLimit
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	provider := opts.Provider
	if provider == nil {
		provider = &vcs.CLIProvider{WorkDir: opts.ProjectRoot}
	}

	id := uuid.NewString()
	logger = logger.With(logfields.SessionID(id))

	dbPath := resolve(opts.ProjectRoot, opts.DBPath, observation.DefaultDBPath)
	plansDir := resolve(opts.ProjectRoot, opts.PlansDir, plan.DefaultDir)

	m := &StateMonitor{
		id:      id,
		root:    opts.ProjectRoot,
		ttl:     ttl,
		maxDiff: maxDiff,
		limit:   limit,
		clock:   clock,
		logger:  logger,
		metrics: opts.Metrics,
		cache:   cache.New(clock),
		reader:  &observation.Reader{DBPath: dbPath, Logger: logger},
		plans:   &plan.Finder{Dir: plansDir, Logger: logger},
		tracker: tracker.New(provider, logger),
	}
	hooks := cache.Hooks{
		OnMiss: func(key string) {
			logger.Debug("Cache miss", logfields.CacheKey(key))
		},
	}
	if m.metrics != nil {
		hooks.OnHit = m.metrics.CacheHit
		hooks.OnMiss = func(key string) {
			logger.Debug("Cache miss", logfields.CacheKey(key))
			m.metrics.CacheMiss(key)
		}
	}
	m.cache.SetHooks(hooks)
	return m, nil
}

func resolve(root, p, fallback string) string {
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// SessionID identifies this monitor instance.
func (m *StateMonitor) SessionID() string { return m.id }

// ProjectRoot returns the monitored project root.
func (m *StateMonitor) ProjectRoot() string { return m.root }

// BaselineState reports whether the change baseline has been captured.
func (m *StateMonitor) BaselineState() tracker.BaselineState {
	return m.tracker.Baseline().State()
}

// Baseline returns the captured baseline paths, sorted.
func (m *StateMonitor) Baseline() []string { return m.tracker.Baseline().Paths() }

// DBPath returns the resolved observation store path.
func (m *StateMonitor) DBPath() string { return m.reader.DBPath }

// PlansDir returns the resolved plans directory.
func (m *StateMonitor) PlansDir() string { return m.plans.Dir }

// Invalidate drops every cached facet. The baseline is kept.
func (m *StateMonitor) Invalidate() { m.cache.InvalidateAll() }

// RecentObservations returns up to limit observations, newest first. The
// result is cached for the monitor's TTL.
func (m *StateMonitor) RecentObservations(ctx context.Context, limit int) ([]observation.Observation, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return slices.Clone(m.observations(ctx, limit).ValueOr([]observation.Observation{})), nil
}

// ActivePlan returns the active plan's progress, or nil. It is never cached.
func (m *StateMonitor) ActivePlan() *plan.Progress {
	r := m.activePlan()
	if !r.IsOk() {
		return nil
	}
	p := r.Value()
	return &p
}

// GitChanges returns paths changed since the baseline. The first call on a
// monitor captures the baseline and returns an empty slice.
func (m *StateMonitor) GitChanges(ctx context.Context) []string {
	return slices.Clone(m.changes(ctx).ValueOr([]string{}))
}

// GitDiff returns the diff of paths changed since the baseline, truncated
// to maxChars characters plus tracker.TruncationMarker.
func (m *StateMonitor) GitDiff(ctx context.Context, maxChars int) (string, error) {
	if maxChars <= 0 {
		return "", fmt.Errorf("%w: %d", tracker.ErrInvalidMaxChars, maxChars)
	}
	return m.diff(ctx, maxChars).ValueOr(""), nil
}

// CurrentState assembles a Snapshot using the configured observation limit
// and diff size. It always returns a complete value.
func (m *StateMonitor) CurrentState(ctx context.Context) Snapshot {
	f := m.Facets(ctx)
	snap := Snapshot{
		SessionID:    m.id,
		TakenAt:      m.clock.Now(),
		ProjectRoot:  m.root,
		Observations: slices.Clone(f.Observations.ValueOr([]observation.Observation{})),
		Changes:      slices.Clone(f.Changes.ValueOr([]string{})),
		Diff:         f.Diff.ValueOr(""),
	}
	if f.Plan.IsOk() {
		p := f.Plan.Value()
		snap.Plan = &p
	}
	return snap
}

// Facets reads every facet through the cache and returns the internal
// results, including why a facet is empty.
func (m *StateMonitor) Facets(ctx context.Context) Facets {
	return Facets{
		Observations: m.observations(ctx, m.limit),
		Plan:         m.activePlan(),
		Changes:      m.changes(ctx),
		Diff:         m.diff(ctx, m.maxDiff),
	}
}

func (m *StateMonitor) observations(ctx context.Context, limit int) observationsResult {
	key := FacetObservations + ":" + strconv.Itoa(limit)
	return cache.Fetch(m.cache, key, func() observationsResult {
		return record(m, FacetObservations, m.reader.Read(ctx, limit))
	}, m.ttl)
}

func (m *StateMonitor) activePlan() planResult {
	return record(m, FacetPlan, m.plans.Find())
}

func (m *StateMonitor) changes(ctx context.Context) changesResult {
	return cache.Fetch(m.cache, FacetChanges, func() changesResult {
		return record(m, FacetChanges, m.tracker.ReadChanges(ctx))
	}, m.ttl)
}

func (m *StateMonitor) diff(ctx context.Context, maxChars int) diffResult {
	key := FacetDiff + ":" + strconv.Itoa(maxChars)
	return cache.Fetch(m.cache, key, func() diffResult {
		return record(m, FacetDiff, m.tracker.ReadDiff(ctx, maxChars))
	}, m.ttl)
}

// record logs and counts a freshly computed facet result.
func record[T any](m *StateMonitor, facet string, r source.Result[T]) source.Result[T] {
	if m.metrics != nil {
		m.metrics.Facet(facet, r.Outcome().String())
	}
	if !r.IsOk() {
		m.logger.Debug("Facet degraded",
			logfields.Facet(facet),
			logfields.Outcome(r.Outcome().String()),
			logfields.Error(r.Err()))
	}
	return r
}
