package service

import (
	"context"
	"strings"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/caseinstance"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/comment"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
	"github.com/mdproctor/casemgmt/internal/platform/grpc/pagination"
)

const (
	defaultCasesPageSize = 50
	maxCasesPageSize     = 200
)

// InstanceStopFailure records one process instance the substrate failed to
// stop.
type InstanceStopFailure struct {
	InstanceID string
	Err        error
}

// StopReport enumerates per-instance outcomes of a lifecycle stop. Partial
// failures do not roll the lifecycle transition back; callers inspect the
// report instead.
type StopReport struct {
	Stopped []string
	Failed  []InstanceStopFailure
}

// AllStopped reports whether every instance acknowledged its stop.
func (r StopReport) AllStopped() bool {
	return len(r.Failed) == 0
}

// StartCase creates a case from the deployed definition: a fresh prefixed
// id, the initial file, and the primary process instance on the substrate.
func (s *Service) StartCase(ctx context.Context, deploymentID, definitionID string, file *casefile.File) (string, error) {
	def, err := s.definitions.Lookup(ctx, deploymentID, definitionID)
	if err != nil {
		return "", err
	}
	if file == nil {
		file = casefile.New()
	}
	if err := def.ValidateFile(file); err != nil {
		return "", apperrors.WrapWithMetadata(
			apperrors.CodeCaseFileSchemaViolation,
			"initial case file violates the definition schema",
			map[string]string{"definition_id": def.ID},
			err,
		)
	}

	caseID, err := s.ids.Generate(ctx, def.IDPrefix)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnknown, "generate case id", err)
	}

	parameters, err := file.Document()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeCaseFileValueInvalid, "decode initial case file", err)
	}
	instanceID, err := s.engine.StartProcessInstance(ctx, def.PrimaryProcessID, parameters)
	if err != nil {
		return "", apperrors.WrapWithMetadata(
			apperrors.CodeUnknown,
			"start primary process instance",
			map[string]string{"process_id": def.PrimaryProcessID},
			err,
		)
	}

	now := s.now()
	rec := storage.CaseRecord{
		ID:                caseID,
		DeploymentID:      def.DeploymentID,
		DefinitionID:      def.ID,
		State:             caseinstance.StateActive,
		PrimaryInstanceID: instanceID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateCase(ctx, rec); err != nil {
		// The substrate instance would otherwise run on with no case record
		// pointing at it.
		_ = s.engine.StopProcessInstance(ctx, instanceID)
		return "", apperrors.Wrap(apperrors.CodeUnknown, "persist case", err)
	}
	if file.Len() > 0 {
		if err := s.store.PutCaseFileValues(ctx, caseID, file.Map()); err != nil {
			return "", apperrors.Wrap(apperrors.CodeUnknown, "persist case file", err)
		}
	}
	return caseID, nil
}

// GetCase returns a snapshot of an active case. Fetch options select which
// sections get assembled; terminal cases fail with the case-not-found code
// carrying their state.
func (s *Service) GetCase(ctx context.Context, caseID string, opts caseinstance.FetchOptions) (caseinstance.Snapshot, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return caseinstance.Snapshot{}, err
	}

	snapshot := caseinstance.Snapshot{
		CaseID:                      rec.ID,
		DeploymentID:                rec.DeploymentID,
		DefinitionID:                rec.DefinitionID,
		State:                       rec.State,
		PrimaryProcessInstanceID:    rec.PrimaryInstanceID,
		SecondaryProcessInstanceIDs: append([]string(nil), rec.SecondaryInstanceIDs...),
		CreatedAt:                   rec.CreatedAt,
		UpdatedAt:                   rec.UpdatedAt,
	}

	if opts.WithFile {
		file, err := s.store.GetCaseFile(ctx, rec.ID)
		if err != nil {
			return caseinstance.Snapshot{}, apperrors.Wrap(apperrors.CodeUnknown, "load case file", err)
		}
		snapshot.File = file
	}
	if opts.WithRoles {
		roles, err := s.assembleRoleAssignments(ctx, rec)
		if err != nil {
			return caseinstance.Snapshot{}, err
		}
		snapshot.Roles = roles
	}
	if opts.WithMilestones {
		milestones, err := s.assembleMilestones(ctx, rec)
		if err != nil {
			return caseinstance.Snapshot{}, err
		}
		snapshot.Milestones = milestones
	}
	if opts.WithStages {
		stages, err := s.assembleStages(ctx, rec)
		if err != nil {
			return caseinstance.Snapshot{}, err
		}
		snapshot.Stages = stages
	}
	return snapshot, nil
}

// ListMilestones surfaces the definition's milestone metadata for an active
// case.
func (s *Service) ListMilestones(ctx context.Context, caseID string) ([]caseinstance.MilestoneInfo, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.assembleMilestones(ctx, rec)
}

// ListStages surfaces the definition's stages for an active case, with live
// activity from the primary process instance.
func (s *Service) ListStages(ctx context.Context, caseID string) ([]caseinstance.StageInfo, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.assembleStages(ctx, rec)
}

func (s *Service) assembleMilestones(ctx context.Context, rec storage.CaseRecord) ([]caseinstance.MilestoneInfo, error) {
	def, err := s.lookupDefinition(ctx, rec)
	if err != nil {
		return nil, err
	}
	milestones := make([]caseinstance.MilestoneInfo, 0, len(def.Milestones))
	for _, m := range def.Milestones {
		milestones = append(milestones, caseinstance.MilestoneInfo{ID: m.ID, Name: m.Name})
	}
	return milestones, nil
}

func (s *Service) assembleStages(ctx context.Context, rec storage.CaseRecord) ([]caseinstance.StageInfo, error) {
	def, err := s.lookupDefinition(ctx, rec)
	if err != nil {
		return nil, err
	}
	active := map[string]bool{}
	if rec.PrimaryInstanceID != "" {
		stageIDs, err := s.engine.ActiveStages(ctx, rec.PrimaryInstanceID)
		if err == nil {
			for _, stageID := range stageIDs {
				active[stageID] = true
			}
		}
	}
	stages := make([]caseinstance.StageInfo, 0, len(def.Stages))
	for _, stage := range def.Stages {
		stages = append(stages, caseinstance.StageInfo{
			ID:     stage.ID,
			Name:   stage.Name,
			Active: active[stage.ID],
		})
	}
	return stages, nil
}

// CancelCase moves an active case to cancelled, stopping its process
// instances. The transition commits even when some instances fail to stop;
// the report enumerates every per-instance outcome.
func (s *Service) CancelCase(ctx context.Context, caseID string) (StopReport, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()
	return s.stopAndTransition(ctx, caseID, caseinstance.StateCancelled)
}

// CloseCase completes an active case, stopping its process instances and
// recording an optional closing comment. The case file survives closure.
func (s *Service) CloseCase(ctx context.Context, caseID, author, closingComment string) (StopReport, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	report, err := s.stopAndTransition(ctx, caseID, caseinstance.StateClosed)
	if err != nil {
		return report, err
	}
	if strings.TrimSpace(closingComment) != "" {
		now := s.now()
		c := comment.Comment{
			ID:        s.commentID(),
			Author:    author,
			Text:      closingComment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.AddComment(ctx, strings.TrimSpace(caseID), c); err != nil {
			return report, apperrors.Wrap(apperrors.CodeUnknown, "record closing comment", err)
		}
	}
	return report, nil
}

// DestroyCase irreversibly deletes the case: record, file, role assignments,
// and comments. An active case is cancelled first; the returned report
// covers those stops.
func (s *Service) DestroyCase(ctx context.Context, caseID string) (StopReport, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.getCase(ctx, caseID)
	if err != nil {
		return StopReport{}, err
	}

	var report StopReport
	if rec.State == caseinstance.StateActive {
		report = s.stopInstances(ctx, rec)
	}
	if err := s.store.DeleteCase(ctx, rec.ID); err != nil {
		return report, apperrors.Wrap(apperrors.CodeUnknown, "delete case", err)
	}
	return report, nil
}

// ListCases returns one page of case records, every lifecycle state
// included. Page size zero takes the default.
func (s *Service) ListCases(ctx context.Context, pageSize int, pageToken string) (storage.CasePage, error) {
	size := pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{
		Default: defaultCasesPageSize,
		Max:     maxCasesPageSize,
	})
	page, err := s.store.ListCases(ctx, size, pageToken)
	if err != nil {
		return storage.CasePage{}, apperrors.Wrap(apperrors.CodeUnknown, "list cases", err)
	}
	return page, nil
}

func (s *Service) stopAndTransition(ctx context.Context, caseID string, to caseinstance.State) (StopReport, error) {
	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return StopReport{}, err
	}
	if !caseinstance.IsTransitionAllowed(rec.State, to) {
		return StopReport{}, apperrors.WithMetadata(
			apperrors.CodeCaseInvalidTransition,
			"case state transition is not allowed",
			map[string]string{"case_id": rec.ID, "from": string(rec.State), "to": string(to)},
		)
	}

	report := s.stopInstances(ctx, rec)
	if err := s.store.UpdateCaseState(ctx, rec.ID, to); err != nil {
		return report, apperrors.Wrap(apperrors.CodeUnknown, "update case state", err)
	}
	return report, nil
}

func (s *Service) stopInstances(ctx context.Context, rec storage.CaseRecord) StopReport {
	var report StopReport
	for _, instanceID := range rec.InstanceIDs() {
		if err := s.engine.StopProcessInstance(ctx, instanceID); err != nil {
			report.Failed = append(report.Failed, InstanceStopFailure{InstanceID: instanceID, Err: err})
			continue
		}
		report.Stopped = append(report.Stopped, instanceID)
	}
	return report
}
