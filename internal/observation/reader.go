package observation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/fakeyudi/statemon/internal/logfields"
	"github.com/fakeyudi/statemon/internal/source"
)

// DefaultDBPath is the store location relative to the project root.
const DefaultDBPath = ".claude-mem/claude-mem.db"

const recentQuery = `SELECT type, title, body, created_at, created_at_epoch
	FROM observations
	ORDER BY created_at_epoch DESC, rowid ASC
	LIMIT ?`

// Reader queries the observation store. It never creates or writes the
// database file.
type Reader struct {
	DBPath string
	Logger *slog.Logger
}

// NewReader returns a Reader for the database at dbPath.
func NewReader(dbPath string) *Reader {
	return &Reader{DBPath: dbPath}
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Recent returns up to limit observations, newest first. Any failure yields
// an empty slice.
func (r *Reader) Recent(ctx context.Context, limit int) []Observation {
	return r.Read(ctx, limit).ValueOr([]Observation{})
}

// Read is Recent with the failure kind preserved.
func (r *Reader) Read(ctx context.Context, limit int) source.Result[[]Observation] {
	if limit <= 0 {
		return source.Ok([]Observation{})
	}
	if _, err := os.Stat(r.DBPath); err != nil {
		return source.Missing[[]Observation](fmt.Errorf("stat observation store: %w", err))
	}

	dsn, err := readOnlyDSN(r.DBPath)
	if err != nil {
		return source.Missing[[]Observation](err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return source.Missing[[]Observation](fmt.Errorf("open observation store: %w", err))
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, recentQuery, limit)
	if err != nil {
		return classifyQueryError(err)
	}
	defer rows.Close()

	out := make([]Observation, 0, limit)
	skipped := 0
	for rows.Next() {
		var (
			kind, title, body, createdAt sql.NullString
			epoch                        sql.NullInt64
		)
		if err := rows.Scan(&kind, &title, &body, &createdAt, &epoch); err != nil {
			skipped++
			continue
		}
		out = append(out, Observation{
			Kind:           kind.String,
			Title:          title.String,
			Body:           body.String,
			CreatedAt:      createdAt.String,
			CreatedAtEpoch: epoch.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return source.Corrupt[[]Observation](fmt.Errorf("iterate observations: %w", err))
	}
	if skipped > 0 {
		r.logger().Debug("Skipped unreadable observation rows",
			logfields.Path(r.DBPath), logfields.Count(skipped))
	}
	return source.Ok(out)
}

// readOnlyDSN builds a SQLite URI that refuses to create or modify the file.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve observation store path: %w", err)
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(abs),
		RawQuery: "mode=ro&_pragma=query_only(1)",
	}
	return u.String(), nil
}

// classifyQueryError separates "cannot open" from "opened but not an
// observation store".
func classifyQueryError(err error) source.Result[[]Observation] {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return source.Missing[[]Observation](err)
	}
	return source.Corrupt[[]Observation](fmt.Errorf("query observations: %w", err))
}
