// Package observation reads recorded observations from the project's
// memory store, a SQLite database written by an external tool.
package observation

import "time"

// Observation is one recorded entry. Values are owned by the store; the
// monitor only reads them.
type Observation struct {
	Kind           string `json:"kind" toml:"kind"`
	Title          string `json:"title" toml:"title"`
	Body           string `json:"body" toml:"body"`
	CreatedAt      string `json:"created_at" toml:"created_at"`
	CreatedAtEpoch int64  `json:"created_at_epoch" toml:"created_at_epoch"` // milliseconds
}

// Time converts CreatedAtEpoch to a time.Time.
func (o Observation) Time() time.Time {
	return time.UnixMilli(o.CreatedAtEpoch)
}
