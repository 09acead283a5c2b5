package sqlite

import (
	"context"
	"fmt"
	"strings"
)

// NextSequence atomically advances the prefix's watermark and returns the new
// value. The first call for a prefix returns 1.
func (s *Store) NextSequence(ctx context.Context, prefix string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return 0, fmt.Errorf("prefix is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`INSERT INTO case_id_watermarks (prefix, last_sequence)
		 VALUES (?, 1)
		 ON CONFLICT (prefix)
		 DO UPDATE SET last_sequence = last_sequence + 1
		 RETURNING last_sequence`,
		prefix,
	)
	var sequence int64
	if err := row.Scan(&sequence); err != nil {
		return 0, fmt.Errorf("next case sequence: %w", err)
	}
	return sequence, nil
}
