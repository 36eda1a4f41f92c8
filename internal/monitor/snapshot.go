package monitor

import (
	"time"

	"github.com/fakeyudi/statemon/internal/observation"
	"github.com/fakeyudi/statemon/internal/plan"
	"github.com/fakeyudi/statemon/internal/source"
)

// Snapshot is the point-in-time view assembled by CurrentState. It is built
// fresh on every call and never modified afterwards; its slices are not
// shared with the monitor's cache.
type Snapshot struct {
	SessionID    string                    `json:"session_id" toml:"session_id"`
	TakenAt      time.Time                 `json:"taken_at" toml:"taken_at"`
	ProjectRoot  string                    `json:"project_root" toml:"project_root"`
	Observations []observation.Observation `json:"observations" toml:"observations"`
	Plan         *plan.Progress            `json:"plan,omitempty" toml:"plan,omitempty"`
	Changes      []string                  `json:"changes" toml:"changes"`
	Diff         string                    `json:"diff" toml:"diff"`
}

// Facets carries the internal result of each snapshot facet, keeping the
// distinction between unavailable and malformed sources.
type Facets struct {
	Observations source.Result[[]observation.Observation]
	Plan         source.Result[plan.Progress]
	Changes      source.Result[[]string]
	Diff         source.Result[string]
}
