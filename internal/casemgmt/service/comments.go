package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/comment"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
	"github.com/mdproctor/casemgmt/internal/platform/grpc/pagination"
)

const (
	defaultCommentsPageSize = 20
	maxCommentsPageSize     = 100
)

// AddCaseComment appends a comment to the case's log and returns its id.
func (s *Service) AddCaseComment(ctx context.Context, caseID, author, text string) (string, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.New(apperrors.CodeCommentTextEmpty, "comment text is required")
	}

	now := s.now()
	c := comment.Comment{
		ID:        s.commentID(),
		Author:    author,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.AddComment(ctx, rec.ID, c); err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnknown, "add comment", err)
	}
	return c.ID, nil
}

// UpdateCaseComment replaces a comment's text and attribution. A differing
// author takes the comment over.
func (s *Service) UpdateCaseComment(ctx context.Context, caseID, commentID, author, text string) error {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return apperrors.New(apperrors.CodeCommentTextEmpty, "comment text is required")
	}

	c := comment.Comment{
		ID:        strings.TrimSpace(commentID),
		Author:    author,
		Text:      text,
		UpdatedAt: s.now(),
	}
	if err := s.store.UpdateComment(ctx, rec.ID, c); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return commentNotFound(rec.ID, c.ID)
		}
		return apperrors.Wrap(apperrors.CodeUnknown, "update comment", err)
	}
	return nil
}

// RemoveCaseComment deletes a comment from the case's log.
func (s *Service) RemoveCaseComment(ctx context.Context, caseID, commentID string) error {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return err
	}
	commentID = strings.TrimSpace(commentID)
	if err := s.store.RemoveComment(ctx, rec.ID, commentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return commentNotFound(rec.ID, commentID)
		}
		return apperrors.Wrap(apperrors.CodeUnknown, "remove comment", err)
	}
	return nil
}

// CaseComments returns one page of the case's comments under the given sort
// policy. Pages are zero-indexed; page size zero takes the default.
func (s *Service) CaseComments(ctx context.Context, caseID string, sortBy comment.SortBy, page, pageSize int) ([]comment.Comment, error) {
	unlock := s.locks.lock(strings.TrimSpace(caseID))
	defer unlock()

	rec, err := s.requireActiveCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, rec.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "list comments", err)
	}
	comment.Sort(comments, sortBy)
	size := pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{
		Default: defaultCommentsPageSize,
		Max:     maxCommentsPageSize,
	})
	return comment.Page(comments, page, size), nil
}

func commentNotFound(caseID, commentID string) *apperrors.Error {
	return apperrors.WithMetadata(
		apperrors.CodeCommentNotFound,
		"comment not found",
		map[string]string{"case_id": caseID, "comment_id": commentID},
	)
}
