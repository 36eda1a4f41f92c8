package logfields

import "log/slog"

// Canonical log field names shared by every package.
const (
	KeyFacet      = "facet"
	KeyOutcome    = "outcome"
	KeyPath       = "path"
	KeyCacheKey   = "cache_key"
	KeySessionID  = "session_id"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyBackend    = "backend"
	KeyError      = "error"
)

func Facet(name string) slog.Attr     { return slog.String(KeyFacet, name) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func CacheKey(k string) slog.Attr     { return slog.String(KeyCacheKey, k) }
func SessionID(id string) slog.Attr   { return slog.String(KeySessionID, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Backend(b string) slog.Attr      { return slog.String(KeyBackend, b) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
