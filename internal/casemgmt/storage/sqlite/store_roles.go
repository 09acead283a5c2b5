package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/role"
)

// AddRoleAssignment records the entity for the role. Re-adding an assigned
// entity is a no-op.
func (s *Store) AddRoleAssignment(ctx context.Context, caseID, roleName string, entity role.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	roleName = strings.TrimSpace(roleName)
	entity = entity.Normalize()
	if caseID == "" || roleName == "" {
		return fmt.Errorf("case id and role name are required")
	}
	if !entity.Valid() {
		return fmt.Errorf("entity id and type are required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO case_role_assignments
		   (case_id, role_name, entity_id, entity_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		caseID,
		roleName,
		entity.ID,
		string(entity.Type),
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("add role assignment: %w", err)
	}
	return nil
}

// RemoveRoleAssignment deletes the entity from the role. An absent entity is
// a no-op.
func (s *Store) RemoveRoleAssignment(ctx context.Context, caseID, roleName string, entity role.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	roleName = strings.TrimSpace(roleName)
	entity = entity.Normalize()
	if caseID == "" || roleName == "" {
		return fmt.Errorf("case id and role name are required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM case_role_assignments
		  WHERE case_id = ? AND role_name = ? AND entity_id = ? AND entity_type = ?`,
		caseID,
		roleName,
		entity.ID,
		string(entity.Type),
	)
	if err != nil {
		return fmt.Errorf("remove role assignment: %w", err)
	}
	return nil
}

// ListRoleAssignments returns assigned entities grouped by role name in
// assignment order.
func (s *Store) ListRoleAssignments(ctx context.Context, caseID string) (map[string][]role.Entity, error) {
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
		`SELECT role_name, entity_id, entity_type
		   FROM case_role_assignments
		  WHERE case_id = ?
		  ORDER BY role_name ASC, created_at ASC, entity_id ASC`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	defer rows.Close()

	assignments := map[string][]role.Entity{}
	for rows.Next() {
		var roleName string
		var entityID string
		var entityType string
		if err := rows.Scan(&roleName, &entityID, &entityType); err != nil {
			return nil, fmt.Errorf("list role assignments: %w", err)
		}
		assignments[roleName] = append(assignments[roleName], role.Entity{
			ID:   entityID,
			Type: role.EntityType(entityType),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	return assignments, nil
}
