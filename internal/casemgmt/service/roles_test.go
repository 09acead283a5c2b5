package service

import (
	"context"
	"testing"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/role"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

func managerAssignment(t *testing.T, svc *Service, caseID string) role.Assignment {
	t.Helper()
	assignments, err := svc.CaseRoleAssignments(context.Background(), caseID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	for _, assignment := range assignments {
		if assignment.Role == "manager" {
			return assignment
		}
	}
	t.Fatal("manager role missing from assignments")
	return role.Assignment{}
}

func TestAssignToCaseRoleCardinality(t *testing.T) {
	svc, _, _ := newTestService(t)
	caseID := startTestCase(t, svc, nil)

	alice := role.Entity{ID: "alice", Type: role.EntityTypeUser}
	bob := role.Entity{ID: "bob", Type: role.EntityTypeUser}

	if err := svc.AssignToCaseRole(context.Background(), caseID, "manager", alice); err != nil {
		t.Fatalf("assign alice: %v", err)
	}
	err := svc.AssignToCaseRole(context.Background(), caseID, "manager", bob)
	wantCode(t, err, apperrors.CodeRoleCardinalityExceeded)

	// The failed assignment wrote nothing: exactly alice remains.
	assignment := managerAssignment(t, svc, caseID)
	if len(assignment.Entities) != 1 || assignment.Entities[0].ID != "alice" {
		t.Fatalf("manager entities = %v, want exactly alice", assignment.Entities)
	}
}

func TestAssignToCaseRoleIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	caseID := startTestCase(t, svc, nil)

	alice := role.Entity{ID: "alice", Type: role.EntityTypeUser}
	for i := 0; i < 3; i++ {
		if err := svc.AssignToCaseRole(context.Background(), caseID, "manager", alice); err != nil {
			t.Fatalf("assign attempt %d: %v", i, err)
		}
	}
	assignment := managerAssignment(t, svc, caseID)
	if len(assignment.Entities) != 1 {
		t.Fatalf("manager entities = %v, want one alice", assignment.Entities)
	}
}

func TestAssignToCaseRoleValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	caseID := startTestCase(t, svc, nil)

	alice := role.Entity{ID: "alice", Type: role.EntityTypeUser}
	err := svc.AssignToCaseRole(context.Background(), caseID, "reviewer", alice)
	wantCode(t, err, apperrors.CodeInvalidRole)

	err = svc.AssignToCaseRole(context.Background(), caseID, "manager", role.Entity{ID: "", Type: role.EntityTypeUser})
	wantCode(t, err, apperrors.CodeEntityInvalid)

	err = svc.AssignToCaseRole(context.Background(), caseID, "manager", role.Entity{ID: "alice", Type: "robot"})
	wantCode(t, err, apperrors.CodeEntityInvalid)
}

func TestUnboundedRoleAcceptsManyEntities(t *testing.T) {
	svc, _, _ := newTestService(t)
	caseID := startTestCase(t, svc, nil)

	entities := []role.Entity{
		{ID: "alice", Type: role.EntityTypeUser},
		{ID: "bob", Type: role.EntityTypeUser},
		{ID: "hr-team", Type: role.EntityTypeGroup},
	}
	for _, entity := range entities {
		if err := svc.AssignToCaseRole(context.Background(), caseID, "participant", entity); err != nil {
			t.Fatalf("assign %s: %v", entity.ID, err)
		}
	}

	assignments, err := svc.CaseRoleAssignments(context.Background(), caseID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	for _, assignment := range assignments {
		if assignment.Role == "participant" && len(assignment.Entities) != 3 {
			t.Fatalf("participant entities = %v", assignment.Entities)
		}
	}
}

func TestRemoveFromCaseRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	caseID := startTestCase(t, svc, nil)

	alice := role.Entity{ID: "alice", Type: role.EntityTypeUser}
	if err := svc.AssignToCaseRole(context.Background(), caseID, "manager", alice); err != nil {
		t.Fatalf("assign alice: %v", err)
	}
	if err := svc.RemoveFromCaseRole(context.Background(), caseID, "manager", alice); err != nil {
		t.Fatalf("remove alice: %v", err)
	}
	// Removing an unassigned entity is a no-op.
	if err := svc.RemoveFromCaseRole(context.Background(), caseID, "manager", alice); err != nil {
		t.Fatalf("re-remove alice: %v", err)
	}
	assignment := managerAssignment(t, svc, caseID)
	if len(assignment.Entities) != 0 {
		t.Fatalf("manager entities = %v, want none", assignment.Entities)
	}

	err := svc.RemoveFromCaseRole(context.Background(), caseID, "reviewer", alice)
	wantCode(t, err, apperrors.CodeInvalidRole)
}

func TestCaseRoleAssignmentsIncludeEmptyRoles(t *testing.T) {
	svc, _, _ := newTestService(t)
	caseID := startTestCase(t, svc, nil)

	assignments, err := svc.CaseRoleAssignments(context.Background(), caseID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(assignments) != 3 {
		t.Fatalf("assignments = %d, want one per declared role", len(assignments))
	}
	want := []string{"owner", "manager", "participant"}
	for i, assignment := range assignments {
		if assignment.Role != want[i] {
			t.Fatalf("role order = %v", assignments)
		}
		if len(assignment.Entities) != 0 {
			t.Fatalf("role %s has entities %v, want none", assignment.Role, assignment.Entities)
		}
	}
}

func TestRoleOperationsRequireActiveCase(t *testing.T) {
	svc, _, _ := newTestService(t)
	caseID := startTestCase(t, svc, nil)
	if _, err := svc.CancelCase(context.Background(), caseID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	alice := role.Entity{ID: "alice", Type: role.EntityTypeUser}
	err := svc.AssignToCaseRole(context.Background(), caseID, "manager", alice)
	wantCode(t, err, apperrors.CodeCaseNotFound)
	_, err = svc.CaseRoleAssignments(context.Background(), caseID)
	wantCode(t, err, apperrors.CodeCaseNotFound)
}
