package service

import (
	"context"
	"strings"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/dynamic"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

// Target selects where dynamic work lands: a process instance attached to
// the case, optionally scoped to an active stage. An empty instance id
// resolves to the case's primary instance.
type Target struct {
	ProcessInstanceID string
	StageID           string
}

// AddDynamicTask injects a human task or generic work node into the target.
// Placeholder expressions in the specification's string attributes are
// resolved against the case file snapshot taken now.
func (s *Service) AddDynamicTask(ctx context.Context, caseID string, target Target, spec dynamic.TaskSpecification) error {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return err
	}
	instanceID, err := s.resolveTarget(ctx, rec, target)
	if err != nil {
		return err
	}
	file, err := s.store.GetCaseFile(ctx, rec.ID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "load case file", err)
	}
	resolved := spec.ResolveAgainst(file)
	if _, err := s.engine.InjectNode(ctx, instanceID, target.StageID, resolved.NodeSpec()); err != nil {
		return apperrors.WrapWithMetadata(
			apperrors.CodeUnknown,
			"inject dynamic task",
			map[string]string{"case_id": rec.ID, "instance_id": instanceID},
			err,
		)
	}
	return nil
}

// AddDynamicSubprocess launches the process as dynamic work in the target
// and attaches the spawned instance to the case as a secondary instance. The
// spawned instance id is returned.
func (s *Service) AddDynamicSubprocess(ctx context.Context, caseID string, target Target, processID string, parameters map[string]any) (string, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	processID = strings.TrimSpace(processID)
	if processID == "" {
		return "", apperrors.New(apperrors.CodeTaskSpecInvalid, "subprocess requires a process id")
	}
	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return "", err
	}
	instanceID, err := s.resolveTarget(ctx, rec, target)
	if err != nil {
		return "", err
	}
	resolved, err := s.resolveParameters(ctx, rec, parameters)
	if err != nil {
		return "", err
	}
	spawnedID, err := s.engine.InjectNode(ctx, instanceID, target.StageID, dynamic.SubprocessNode(processID, resolved))
	if err != nil {
		return "", apperrors.WrapWithMetadata(
			apperrors.CodeUnknown,
			"inject dynamic subprocess",
			map[string]string{"case_id": rec.ID, "process_id": processID},
			err,
		)
	}
	if spawnedID != "" {
		if err := s.store.AttachProcessInstance(ctx, rec.ID, spawnedID); err != nil {
			return spawnedID, apperrors.Wrap(apperrors.CodeUnknown, "attach spawned instance", err)
		}
	}
	return spawnedID, nil
}

// TriggerAdHocFragment signals the named ad-hoc fragment in the target.
func (s *Service) TriggerAdHocFragment(ctx context.Context, caseID string, target Target, fragmentName string, data map[string]any) error {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	fragmentName = strings.TrimSpace(fragmentName)
	if fragmentName == "" {
		return apperrors.New(apperrors.CodeFragmentNameEmpty, "fragment name is required")
	}
	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return err
	}
	instanceID, err := s.resolveTarget(ctx, rec, target)
	if err != nil {
		return err
	}
	resolved, err := s.resolveParameters(ctx, rec, data)
	if err != nil {
		return err
	}
	if _, err := s.engine.InjectNode(ctx, instanceID, target.StageID, dynamic.FragmentNode(fragmentName, resolved)); err != nil {
		return apperrors.WrapWithMetadata(
			apperrors.CodeUnknown,
			"trigger ad-hoc fragment",
			map[string]string{"case_id": rec.ID, "fragment": fragmentName},
			err,
		)
	}
	return nil
}

// resolveTarget maps a target onto a live process instance. Explicit
// instance ids must belong to the case and be alive on the substrate; a
// stage id must be active within the resolved instance.
func (s *Service) resolveTarget(ctx context.Context, rec storage.CaseRecord, target Target) (string, error) {
	instanceID := strings.TrimSpace(target.ProcessInstanceID)
	if instanceID == "" {
		instanceID = rec.PrimaryInstanceID
	} else if !rec.Owns(instanceID) {
		return "", instanceNotFound(rec.ID, instanceID)
	}

	alive, err := s.engine.InstanceExists(ctx, instanceID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnknown, "check process instance", err)
	}
	if !alive {
		return "", instanceNotFound(rec.ID, instanceID)
	}

	stageID := strings.TrimSpace(target.StageID)
	if stageID != "" {
		active, err := s.engine.ActiveStages(ctx, instanceID)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeUnknown, "list active stages", err)
		}
		found := false
		for _, id := range active {
			if id == stageID {
				found = true
				break
			}
		}
		if !found {
			return "", apperrors.WithMetadata(
				apperrors.CodeStageNotFound,
				"stage is not active in the target instance",
				map[string]string{"case_id": rec.ID, "instance_id": instanceID, "stage_id": stageID},
			)
		}
	}
	return instanceID, nil
}

// resolveParameters substitutes placeholder expressions in string parameter
// values against the case file snapshot.
func (s *Service) resolveParameters(ctx context.Context, rec storage.CaseRecord, parameters map[string]any) (map[string]any, error) {
	if len(parameters) == 0 {
		return nil, nil
	}
	needsFile := false
	for _, value := range parameters {
		if text, ok := value.(string); ok && casefile.ContainsPlaceholder(text) {
			needsFile = true
			break
		}
	}
	if !needsFile {
		return parameters, nil
	}
	file, err := s.store.GetCaseFile(ctx, rec.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "load case file", err)
	}
	resolved := make(map[string]any, len(parameters))
	for key, value := range parameters {
		if text, ok := value.(string); ok {
			resolved[key] = casefile.ResolvePlaceholders(text, file)
			continue
		}
		resolved[key] = value
	}
	return resolved, nil
}

func instanceNotFound(caseID, instanceID string) *apperrors.Error {
	return apperrors.WithMetadata(
		apperrors.CodeProcessInstanceNotFound,
		"process instance is not attached to the case or not alive",
		map[string]string{"case_id": caseID, "instance_id": instanceID},
	)
}
