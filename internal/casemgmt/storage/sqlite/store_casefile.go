package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
)

// PutCaseFileValues upserts the given values in one transaction.
func (s *Store) PutCaseFileValues(ctx context.Context, caseID string, values map[string]casefile.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return fmt.Errorf("case id is required")
	}
	if len(values) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put case file values: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := toMillis(time.Now())
	for name, value := range values {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode case file value %q: %w", name, err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO case_file_values (case_id, name, value, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (case_id, name)
			 DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			caseID,
			name,
			string(encoded),
			now,
		); err != nil {
			return fmt.Errorf("put case file value %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put case file values: %w", err)
	}
	return nil
}

// RemoveCaseFileValues deletes the named values in one transaction. Absent
// names are no-ops.
func (s *Store) RemoveCaseFileValues(ctx context.Context, caseID string, names []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return fmt.Errorf("case id is required")
	}
	if len(names) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remove case file values: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM case_file_values WHERE case_id = ? AND name = ?`,
			caseID,
			name,
		); err != nil {
			return fmt.Errorf("remove case file value %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("remove case file values: %w", err)
	}
	return nil
}

// GetCaseFile returns the case's file values as one snapshot.
func (s *Store) GetCaseFile(ctx context.Context, caseID string) (*casefile.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, fmt.Errorf("case id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT name, value FROM case_file_values WHERE case_id = ?`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("get case file: %w", err)
	}
	defer rows.Close()

	file := casefile.New()
	for rows.Next() {
		var name string
		var encoded string
		if err := rows.Scan(&name, &encoded); err != nil {
			return nil, fmt.Errorf("get case file: %w", err)
		}
		var value casefile.Value
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			return nil, fmt.Errorf("decode case file value %q: %w", name, err)
		}
		file.Set(name, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get case file: %w", err)
	}
	return file, nil
}
