// Package sqlite provides a SQLite-backed case management storage
// implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/caseinstance"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage/sqlite/migrations"
	sqlitemigrate "github.com/mdproctor/casemgmt/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists case management state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite case store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	// modernc.org/sqlite applies pragmas through the _pragma query form.
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateCase inserts one case record.
func (s *Store) CreateCase(ctx context.Context, rec storage.CaseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID := strings.TrimSpace(rec.ID)
	if caseID == "" {
		return fmt.Errorf("case id is required")
	}
	createdAt := rec.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := rec.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO cases (
		   id, deployment_id, definition_id, state,
		   primary_instance_id, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		caseID,
		strings.TrimSpace(rec.DeploymentID),
		strings.TrimSpace(rec.DefinitionID),
		string(rec.State),
		strings.TrimSpace(rec.PrimaryInstanceID),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// GetCase returns one case record with its instance attachments.
func (s *Store) GetCase(ctx context.Context, caseID string) (storage.CaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CaseRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CaseRecord{}, fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return storage.CaseRecord{}, fmt.Errorf("case id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, deployment_id, definition_id, state,
		        primary_instance_id, created_at, updated_at
		   FROM cases
		  WHERE id = ?`,
		caseID,
	)

	var rec storage.CaseRecord
	var state string
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&rec.ID,
		&rec.DeploymentID,
		&rec.DefinitionID,
		&state,
		&rec.PrimaryInstanceID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CaseRecord{}, storage.ErrNotFound
		}
		return storage.CaseRecord{}, fmt.Errorf("get case: %w", err)
	}
	rec.State = caseinstance.State(state)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT instance_id
		   FROM case_process_instances
		  WHERE case_id = ?
		  ORDER BY position ASC`,
		caseID,
	)
	if err != nil {
		return storage.CaseRecord{}, fmt.Errorf("get case instances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var instanceID string
		if err := rows.Scan(&instanceID); err != nil {
			return storage.CaseRecord{}, fmt.Errorf("get case instances: %w", err)
		}
		rec.SecondaryInstanceIDs = append(rec.SecondaryInstanceIDs, instanceID)
	}
	if err := rows.Err(); err != nil {
		return storage.CaseRecord{}, fmt.Errorf("get case instances: %w", err)
	}
	return rec, nil
}

// UpdateCaseState moves one case to the given state.
func (s *Store) UpdateCaseState(ctx context.Context, caseID string, state caseinstance.State) error {
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

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE cases SET state = ?, updated_at = ? WHERE id = ?`,
		string(state),
		toMillis(time.Now()),
		caseID,
	)
	if err != nil {
		return fmt.Errorf("update case state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case state: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AttachProcessInstance records a secondary process instance for the case.
// Re-attaching a known instance is a no-op.
func (s *Store) AttachProcessInstance(ctx context.Context, caseID, instanceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	instanceID = strings.TrimSpace(instanceID)
	if caseID == "" || instanceID == "" {
		return fmt.Errorf("case id and instance id are required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO case_process_instances (case_id, instance_id, position)
		 VALUES (?, ?, (SELECT COUNT(*) FROM case_process_instances WHERE case_id = ?))`,
		caseID,
		instanceID,
		caseID,
	)
	if err != nil {
		return fmt.Errorf("attach process instance: %w", err)
	}
	return nil
}

// DeleteCase removes the case record and all dependent records.
func (s *Store) DeleteCase(ctx context.Context, caseID string) error {
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

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, caseID)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	for _, table := range []string{
		"case_process_instances",
		"case_file_values",
		"case_role_assignments",
		"case_comments",
	} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE case_id = ?`, caseID); err != nil {
			return fmt.Errorf("delete case %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	return nil
}

// ListCases returns one page of case records ordered by id.
func (s *Store) ListCases(ctx context.Context, pageSize int, pageToken string) (storage.CasePage, error) {
	if err := ctx.Err(); err != nil {
		return storage.CasePage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CasePage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.CasePage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	page := storage.CasePage{
		Cases: make([]storage.CaseRecord, 0, pageSize),
	}

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, deployment_id, definition_id, state,
			        primary_instance_id, created_at, updated_at
			   FROM cases
			  ORDER BY id ASC
			  LIMIT ?`,
			pageSize+1,
		)
	} else {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, deployment_id, definition_id, state,
			        primary_instance_id, created_at, updated_at
			   FROM cases
			  WHERE id > ?
			  ORDER BY id ASC
			  LIMIT ?`,
			pageToken,
			pageSize+1,
		)
	}
	if err != nil {
		return storage.CasePage{}, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec storage.CaseRecord
		var state string
		var createdAt int64
		var updatedAt int64
		if err := rows.Scan(
			&rec.ID,
			&rec.DeploymentID,
			&rec.DefinitionID,
			&state,
			&rec.PrimaryInstanceID,
			&createdAt,
			&updatedAt,
		); err != nil {
			return storage.CasePage{}, fmt.Errorf("list cases: %w", err)
		}
		rec.State = caseinstance.State(state)
		rec.CreatedAt = fromMillis(createdAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		page.Cases = append(page.Cases, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.CasePage{}, fmt.Errorf("list cases: %w", err)
	}
	if len(page.Cases) > pageSize {
		page.NextPageToken = page.Cases[pageSize-1].ID
		page.Cases = page.Cases[:pageSize]
	}

	return page, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
