package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/crate/internal/shared"
)

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

func now() time.Time {
	return time.Now().UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// likePattern wraps a free-text query for a case-insensitive LIKE match.
func likePattern(query string) string {
	return "%" + query + "%"
}

// expectOne turns a zero RowsAffected into the given not-found sentinel.
func expectOne(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

// affected reports whether result changed any row.
func affected(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// paginate appends LIMIT/OFFSET from the "limit" and "offset" criteria.
func paginate(query string, args []any, criteria map[string]any) (string, []any) {
	limit, _ := criteria["limit"].(int)
	offset, _ := criteria["offset"].(int)
	if limit <= 0 && offset <= 0 {
		return query, args
	}
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	return query, append(args, limit, offset)
}

func count(ctx context.Context, q shared.Querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}
