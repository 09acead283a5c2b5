// Package caseinstance models the case lifecycle: the state machine a case
// moves through and the read-side snapshot assembled for callers.
package caseinstance

import (
	"strings"
	"time"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/role"
)

// State describes the case lifecycle state.
type State string

const (
	StateUnspecified State = ""
	StateActive      State = "active"
	StateCancelled   State = "cancelled"
	StateClosed      State = "closed"
	// StateDestroyed is terminal and never persisted: destruction removes the
	// case record, so the state only appears in transition checks.
	StateDestroyed State = "destroyed"
)

// ParseState canonicalizes a stored state label.
func ParseState(value string) (State, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "active":
		return StateActive, true
	case "cancelled":
		return StateCancelled, true
	case "closed", "completed":
		return StateClosed, true
	case "destroyed":
		return StateDestroyed, true
	default:
		return StateUnspecified, false
	}
}

// IsTransitionAllowed enforces the case lifecycle:
// active may cancel, close, or be destroyed directly; cancelled and closed
// may only be destroyed; nothing leaves destroyed.
func IsTransitionAllowed(from, to State) bool {
	switch from {
	case StateActive:
		return to == StateCancelled || to == StateClosed || to == StateDestroyed
	case StateCancelled, StateClosed:
		return to == StateDestroyed
	default:
		return false
	}
}

// FetchOptions selects which expensive snapshot sections GetCase assembles.
type FetchOptions struct {
	WithFile       bool
	WithRoles      bool
	WithMilestones bool
	WithStages     bool
}

// MilestoneInfo is milestone metadata surfaced on a snapshot.
type MilestoneInfo struct {
	ID   string
	Name string
}

// StageInfo is stage metadata surfaced on a snapshot, with live activity
// from the execution substrate.
type StageInfo struct {
	ID     string
	Name   string
	Active bool
}

// Snapshot is a read-only view of a case. Sections beyond the identity and
// lifecycle fields are populated according to the FetchOptions used.
type Snapshot struct {
	CaseID       string
	DeploymentID string
	DefinitionID string
	State        State

	PrimaryProcessInstanceID    string
	SecondaryProcessInstanceIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time

	File       *casefile.File
	Roles      []role.Assignment
	Milestones []MilestoneInfo
	Stages     []StageInfo
}
