package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/definition"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/role"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

// AssignToCaseRole assigns the entity to a declared role. Re-assigning an
// assigned entity is a no-op; exceeding the role's cardinality fails without
// writing.
func (s *Service) AssignToCaseRole(ctx context.Context, caseID, roleName string, entity role.Entity) error {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return err
	}
	declared, err := s.declaredRole(ctx, rec, roleName)
	if err != nil {
		return err
	}
	entity, err = s.directory.ResolveEntity(ctx, entity)
	if err != nil {
		return err
	}

	assignments, err := s.store.ListRoleAssignments(ctx, rec.ID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "list role assignments", err)
	}
	current := role.Assignment{
		Role:        declared.Name,
		Cardinality: declared.Cardinality,
		Entities:    assignments[declared.Name],
	}
	if current.Contains(entity) {
		return nil
	}
	if current.AtCapacity() {
		return apperrors.WithMetadata(
			apperrors.CodeRoleCardinalityExceeded,
			"role has reached its declared cardinality",
			map[string]string{
				"case_id":     rec.ID,
				"role":        declared.Name,
				"cardinality": strconv.Itoa(declared.Cardinality),
			},
		)
	}
	if err := s.store.AddRoleAssignment(ctx, rec.ID, declared.Name, entity); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "add role assignment", err)
	}
	return nil
}

// RemoveFromCaseRole removes the entity from a declared role. An unassigned
// entity is a no-op.
func (s *Service) RemoveFromCaseRole(ctx context.Context, caseID, roleName string, entity role.Entity) error {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return err
	}
	declared, err := s.declaredRole(ctx, rec, roleName)
	if err != nil {
		return err
	}
	entity, err = s.directory.ResolveEntity(ctx, entity)
	if err != nil {
		return err
	}
	if err := s.store.RemoveRoleAssignment(ctx, rec.ID, declared.Name, entity); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "remove role assignment", err)
	}
	return nil
}

// CaseRoleAssignments returns one assignment per declared role, in
// declaration order, roles with no assignees included.
func (s *Service) CaseRoleAssignments(ctx context.Context, caseID string) ([]role.Assignment, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.assembleRoleAssignments(ctx, rec)
}

func (s *Service) assembleRoleAssignments(ctx context.Context, rec storage.CaseRecord) ([]role.Assignment, error) {
	def, err := s.lookupDefinition(ctx, rec)
	if err != nil {
		return nil, err
	}
	assigned, err := s.store.ListRoleAssignments(ctx, rec.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "list role assignments", err)
	}
	assignments := make([]role.Assignment, 0, len(def.Roles))
	for _, declared := range def.Roles {
		assignments = append(assignments, role.Assignment{
			Role:        declared.Name,
			Cardinality: declared.Cardinality,
			Entities:    assigned[declared.Name],
		})
	}
	return assignments, nil
}

func (s *Service) declaredRole(ctx context.Context, rec storage.CaseRecord, roleName string) (definition.Role, error) {
	def, err := s.lookupDefinition(ctx, rec)
	if err != nil {
		return definition.Role{}, err
	}
	declared, ok := def.Role(roleName)
	if !ok {
		return definition.Role{}, apperrors.WithMetadata(
			apperrors.CodeInvalidRole,
			"role is not declared by the case definition",
			map[string]string{"case_id": rec.ID, "role": strings.TrimSpace(roleName)},
		)
	}
	return declared, nil
}
