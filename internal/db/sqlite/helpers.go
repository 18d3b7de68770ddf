package sqlite

import (
	"context"
	"time"
)

// nowEpochMillis returns the current time in Unix milliseconds.
func nowEpochMillis() int64 {
	return time.Now().UnixMilli()
}

// CountEntries returns the number of stored entries whose key starts with prefix.
func (s *Store) CountEntries(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE substr(key, 1, ?) = ?`,
		len(prefix), prefix,
	).Scan(&n)
	return n, err
}
