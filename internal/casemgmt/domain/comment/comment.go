// Package comment models the free-text comment log attached to a case.
package comment

import (
	"sort"
	"strings"
	"time"
)

// Comment is one entry in a case's comment log.
type Comment struct {
	ID        string
	Author    string
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SortBy names a comment list ordering.
type SortBy string

const (
	SortByDate     SortBy = "date"
	SortByDateDesc SortBy = "date_desc"
	SortByAuthor   SortBy = "author"
)

// ParseSortBy canonicalizes a sort label, defaulting to oldest-first.
func ParseSortBy(value string) SortBy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(SortByDateDesc):
		return SortByDateDesc
	case string(SortByAuthor):
		return SortByAuthor
	default:
		return SortByDate
	}
}

// Sort orders comments in place. Author ordering breaks ties by creation
// time, and all orderings are stable so equal elements keep their relative
// insertion order.
func Sort(comments []Comment, by SortBy) {
	switch by {
	case SortByDateDesc:
		sort.SliceStable(comments, func(i, j int) bool {
			return comments[i].CreatedAt.After(comments[j].CreatedAt)
		})
	case SortByAuthor:
		sort.SliceStable(comments, func(i, j int) bool {
			if comments[i].Author != comments[j].Author {
				return comments[i].Author < comments[j].Author
			}
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		})
	default:
		sort.SliceStable(comments, func(i, j int) bool {
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		})
	}
}

// Page returns the requested page of an already-sorted comment list. Pages
// are zero-indexed; a page past the end returns an empty slice.
func Page(comments []Comment, page, pageSize int) []Comment {
	if pageSize <= 0 {
		return comments
	}
	if page < 0 {
		page = 0
	}
	start := page * pageSize
	if start >= len(comments) {
		return nil
	}
	end := start + pageSize
	if end > len(comments) {
		end = len(comments)
	}
	return comments[start:end]
}
