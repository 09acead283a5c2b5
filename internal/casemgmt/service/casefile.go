package service

import (
	"context"
	"strings"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

// GetCaseFile returns a snapshot of the case's file. The file survives
// cancellation and closure; only destruction removes it.
func (s *Service) GetCaseFile(ctx context.Context, caseID string) (*casefile.File, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	file, err := s.store.GetCaseFile(ctx, rec.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "load case file", err)
	}
	return file, nil
}

// PutCaseFileValue upserts one named value on an active case.
func (s *Service) PutCaseFileValue(ctx context.Context, caseID, name string, value casefile.Value) error {
	return s.PutCaseFileValues(ctx, caseID, map[string]casefile.Value{name: value})
}

// PutCaseFileValues upserts the given values as one atomic batch. When the
// definition declares a file schema, the merged file is validated before any
// value is written.
func (s *Service) PutCaseFileValues(ctx context.Context, caseID string, values map[string]casefile.Value) error {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return err
	}
	cleaned := make(map[string]casefile.Value, len(values))
	for name, value := range values {
		name = strings.TrimSpace(name)
		if name == "" {
			return apperrors.New(apperrors.CodeCaseFileNameEmpty, "case file value name is required")
		}
		if value.IsZero() {
			return apperrors.WithMetadata(
				apperrors.CodeCaseFileValueInvalid,
				"case file value has no variant",
				map[string]string{"name": name},
			)
		}
		cleaned[name] = value
	}
	if len(cleaned) == 0 {
		return nil
	}

	def, err := s.lookupDefinition(ctx, rec)
	if err != nil {
		return err
	}
	if def.Governed() {
		merged, err := s.store.GetCaseFile(ctx, rec.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeUnknown, "load case file", err)
		}
		for name, value := range cleaned {
			merged.Set(name, value)
		}
		if err := def.ValidateFile(merged); err != nil {
			return apperrors.WrapWithMetadata(
				apperrors.CodeCaseFileSchemaViolation,
				"case file update violates the definition schema",
				map[string]string{"case_id": rec.ID, "definition_id": def.ID},
				err,
			)
		}
	}

	if err := s.store.PutCaseFileValues(ctx, rec.ID, cleaned); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "persist case file values", err)
	}
	return nil
}

// RemoveCaseFileValue deletes one named value; an absent name is a no-op.
func (s *Service) RemoveCaseFileValue(ctx context.Context, caseID, name string) error {
	return s.RemoveCaseFileValues(ctx, caseID, []string{name})
}

// RemoveCaseFileValues deletes the named values; absent names are no-ops.
func (s *Service) RemoveCaseFileValues(ctx context.Context, caseID string, names []string) error {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return err
	}
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return apperrors.New(apperrors.CodeCaseFileNameEmpty, "case file value name is required")
		}
		cleaned = append(cleaned, name)
	}
	if len(cleaned) == 0 {
		return nil
	}
	if err := s.store.RemoveCaseFileValues(ctx, rec.ID, cleaned); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "remove case file values", err)
	}
	return nil
}
