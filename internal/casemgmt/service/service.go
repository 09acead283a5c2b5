// Package service orchestrates case lifecycles over storage, the case
// definition repository, and the execution substrate. Every operation on one
// case runs inside that case's critical section; different cases never
// contend.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/caseinstance"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/definition"
	"github.com/mdproctor/casemgmt/internal/casemgmt/identity"
	"github.com/mdproctor/casemgmt/internal/casemgmt/runtime"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
	"github.com/mdproctor/casemgmt/internal/platform/id"
)

// Service is the case management engine.
type Service struct {
	store       storage.Store
	definitions definition.Repository
	engine      runtime.ProcessEngine
	directory   runtime.Directory
	ids         *identity.Generator
	locks       *caseLocks
	clock       func() time.Time
	commentID   func() string
}

// NewService creates a case management service. A nil directory defaults to
// the allow-all pass-through.
func NewService(store storage.Store, definitions definition.Repository, engine runtime.ProcessEngine, directory runtime.Directory) *Service {
	if directory == nil {
		directory = runtime.AllowAllDirectory{}
	}
	return &Service{
		store:       store,
		definitions: definitions,
		engine:      engine,
		directory:   directory,
		ids:         identity.NewGenerator(store),
		locks:       newCaseLocks(),
		clock:       time.Now,
		commentID:   id.NewID,
	}
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}

func caseNotFound(caseID string) *apperrors.Error {
	return apperrors.WithMetadata(
		apperrors.CodeCaseNotFound,
		"case not found",
		map[string]string{"case_id": caseID},
	)
}

// getCase fetches the record for any lifecycle state. A destroyed case has
// no record, so a missing record reads as never-existed or destroyed alike.
func (s *Service) getCase(ctx context.Context, caseID string) (storage.CaseRecord, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return storage.CaseRecord{}, apperrors.New(apperrors.CodeCaseIDEmpty, "case id is required")
	}
	rec, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.CaseRecord{}, caseNotFound(caseID)
		}
		return storage.CaseRecord{}, apperrors.Wrap(apperrors.CodeUnknown, "load case", err)
	}
	return rec, nil
}

// requireActiveCase fetches the record and rejects non-active cases. The
// failure carries the terminal state as metadata so a cancelled case is
// distinguishable from one that never existed.
func (s *Service) requireActiveCase(ctx context.Context, caseID string) (storage.CaseRecord, error) {
	rec, err := s.getCase(ctx, caseID)
	if err != nil {
		return storage.CaseRecord{}, err
	}
	if rec.State != caseinstance.StateActive {
		return storage.CaseRecord{}, apperrors.WithMetadata(
			apperrors.CodeCaseNotFound,
			"case is not active",
			map[string]string{"case_id": rec.ID, "state": string(rec.State)},
		)
	}
	return rec, nil
}

func (s *Service) lookupDefinition(ctx context.Context, rec storage.CaseRecord) (definition.CaseDefinition, error) {
	def, err := s.definitions.Lookup(ctx, rec.DeploymentID, rec.DefinitionID)
	if err != nil {
		return definition.CaseDefinition{}, err
	}
	return def, nil
}
