package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/comment"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage"
)

// AddComment inserts one comment into the case's log.
func (s *Store) AddComment(ctx context.Context, caseID string, c comment.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	commentID := strings.TrimSpace(c.ID)
	if caseID == "" || commentID == "" {
		return fmt.Errorf("case id and comment id are required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO case_comments (case_id, id, author, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		caseID,
		commentID,
		c.Author,
		c.Text,
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

// UpdateComment replaces one comment's author, text, and update time.
func (s *Store) UpdateComment(ctx context.Context, caseID string, c comment.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	commentID := strings.TrimSpace(c.ID)
	if caseID == "" || commentID == "" {
		return fmt.Errorf("case id and comment id are required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE case_comments
		    SET author = ?, body = ?, updated_at = ?
		  WHERE case_id = ? AND id = ?`,
		c.Author,
		c.Text,
		toMillis(c.UpdatedAt),
		caseID,
		commentID,
	)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RemoveComment deletes one comment.
func (s *Store) RemoveComment(ctx context.Context, caseID, commentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	caseID = strings.TrimSpace(caseID)
	commentID = strings.TrimSpace(commentID)
	if caseID == "" || commentID == "" {
		return fmt.Errorf("case id and comment id are required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM case_comments WHERE case_id = ? AND id = ?`,
		caseID,
		commentID,
	)
	if err != nil {
		return fmt.Errorf("remove comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove comment: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListComments returns the case's comments oldest first.
func (s *Store) ListComments(ctx context.Context, caseID string) ([]comment.Comment, error) {
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
		`SELECT id, author, body, created_at, updated_at
		   FROM case_comments
		  WHERE case_id = ?
		  ORDER BY created_at ASC, id ASC`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []comment.Comment
	for rows.Next() {
		var c comment.Comment
		var createdAt int64
		var updatedAt int64
		if err := rows.Scan(&c.ID, &c.Author, &c.Text, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		c.CreatedAt = fromMillis(createdAt)
		c.UpdatedAt = fromMillis(updatedAt)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
