// Package storage defines persistence contracts for case management state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/caseinstance"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/comment"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/role"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// CaseRecord stores one case instance.
type CaseRecord struct {
	ID                string
	DeploymentID      string
	DefinitionID      string
	State             caseinstance.State
	PrimaryInstanceID string
	// SecondaryInstanceIDs lists process instances attached to the case by
	// dynamic subprocess injection, in attachment order.
	SecondaryInstanceIDs []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// InstanceIDs returns the primary instance id followed by all secondary ids.
func (r CaseRecord) InstanceIDs() []string {
	ids := make([]string, 0, 1+len(r.SecondaryInstanceIDs))
	if r.PrimaryInstanceID != "" {
		ids = append(ids, r.PrimaryInstanceID)
	}
	return append(ids, r.SecondaryInstanceIDs...)
}

// Owns reports whether the instance id belongs to this case.
func (r CaseRecord) Owns(instanceID string) bool {
	for _, id := range r.InstanceIDs() {
		if id == instanceID {
			return true
		}
	}
	return false
}

// CasePage stores one page of case records.
type CasePage struct {
	Cases         []CaseRecord
	NextPageToken string
}

// CaseStore persists case records and their process instance attachments.
type CaseStore interface {
	CreateCase(ctx context.Context, rec CaseRecord) error
	GetCase(ctx context.Context, caseID string) (CaseRecord, error)
	UpdateCaseState(ctx context.Context, caseID string, state caseinstance.State) error
	AttachProcessInstance(ctx context.Context, caseID, instanceID string) error
	// DeleteCase removes the case record and every dependent record: file
	// values, role assignments, comments, instance attachments.
	DeleteCase(ctx context.Context, caseID string) error
	ListCases(ctx context.Context, pageSize int, pageToken string) (CasePage, error)
}

// CaseFileStore persists per-case file values.
type CaseFileStore interface {
	// PutCaseFileValues upserts all given values as one atomic batch.
	PutCaseFileValues(ctx context.Context, caseID string, values map[string]casefile.Value) error
	// RemoveCaseFileValues deletes the named values; absent names are no-ops.
	RemoveCaseFileValues(ctx context.Context, caseID string, names []string) error
	// GetCaseFile returns a consistent snapshot of the case's file.
	GetCaseFile(ctx context.Context, caseID string) (*casefile.File, error)
}

// RoleStore persists role assignments keyed by case and role name.
type RoleStore interface {
	// AddRoleAssignment records the entity for the role; re-adding an
	// assigned entity is a no-op.
	AddRoleAssignment(ctx context.Context, caseID, roleName string, entity role.Entity) error
	// RemoveRoleAssignment deletes the entity from the role; an absent
	// entity is a no-op.
	RemoveRoleAssignment(ctx context.Context, caseID, roleName string, entity role.Entity) error
	// ListRoleAssignments returns assigned entities grouped by role name.
	// Roles with no assignees are absent from the map.
	ListRoleAssignments(ctx context.Context, caseID string) (map[string][]role.Entity, error)
}

// CommentStore persists the per-case comment log.
type CommentStore interface {
	AddComment(ctx context.Context, caseID string, c comment.Comment) error
	UpdateComment(ctx context.Context, caseID string, c comment.Comment) error
	RemoveComment(ctx context.Context, caseID, commentID string) error
	ListComments(ctx context.Context, caseID string) ([]comment.Comment, error)
}

// WatermarkStore persists per-prefix case id watermarks.
type WatermarkStore interface {
	// NextSequence atomically advances the prefix's watermark and returns
	// the new value. The first call for a prefix returns 1.
	NextSequence(ctx context.Context, prefix string) (int64, error)
}

// Store combines every case management persistence contract.
type Store interface {
	CaseStore
	CaseFileStore
	RoleStore
	CommentStore
	WatermarkStore
}
