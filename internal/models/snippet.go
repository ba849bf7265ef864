package models

import (
	"time"
)

// Snippet represents a code snippet as exchanged with the API.
// Trashed state is not carried on the object; it is a property of which
// collection the snippet was read from.
type Snippet struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Language    string    `json:"programmingLanguage"`
	Tags        []string  `json:"tags"`
	IsFavorite  bool      `json:"isFavorite"`
	UserID      string    `json:"userId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the snippet
func (s Snippet) Clone() Snippet {
	c := s
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	return c
}

// Fields returns the editable fields of the snippet
func (s Snippet) Fields() SnippetFields {
	return SnippetFields{
		Title:       s.Title,
		Description: s.Description,
		Code:        s.Code,
		Language:    s.Language,
		Tags:        append([]string(nil), s.Tags...),
	}
}

// SnippetFields is the versioned, editable part of a snippet
type SnippetFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Language    string   `json:"programmingLanguage"`
	Tags        []string `json:"tags"`
}

// Equal reports whether two field sets carry the same content
func (f SnippetFields) Equal(o SnippetFields) bool {
	if f.Title != o.Title || f.Description != o.Description || f.Code != o.Code || f.Language != o.Language {
		return false
	}
	if len(f.Tags) != len(o.Tags) {
		return false
	}
	for i := range f.Tags {
		if f.Tags[i] != o.Tags[i] {
			return false
		}
	}
	return true
}

// SnippetInput represents input for creating/updating a snippet
type SnippetInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Language    string   `json:"programmingLanguage"`
	Tags        []string `json:"tags,omitempty"`
	UserID      string   `json:"userId,omitempty"`
}

// Version is an immutable snapshot of a snippet's editable fields.
// Its index is its position in the version list, oldest first.
type Version struct {
	SnippetID   string    `json:"snippetId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Language    string    `json:"programmingLanguage"`
	Tags        []string  `json:"tags"`
	Timestamp   time.Time `json:"timestamp"`
}

// Fields returns the snapshot carried by the version
func (v Version) Fields() SnippetFields {
	return SnippetFields{
		Title:       v.Title,
		Description: v.Description,
		Code:        v.Code,
		Language:    v.Language,
		Tags:        append([]string(nil), v.Tags...),
	}
}

// SnippetFilter represents filter options for listing snippets
type SnippetFilter struct {
	UserID     string
	Query      string
	Tag        string
	IsFavorite *bool
	Trashed    bool
	Page       int
	Limit      int
}

// DefaultSnippetFilter returns default filter values
func DefaultSnippetFilter() SnippetFilter {
	return SnippetFilter{
		Page:  1,
		Limit: 10,
	}
}

// Pagination holds pagination info for list responses
type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	TotalSnippets int  `json:"totalSnippets"`
	HasNextPage   bool `json:"hasNextPage"`
	HasPrevPage   bool `json:"hasPrevPage"`
}

// NewPagination computes the pagination envelope for a page of results
func NewPagination(page, limit, total int) Pagination {
	if limit <= 0 {
		limit = 1
	}
	totalPages := total / limit
	if total%limit > 0 {
		totalPages++
	}
	if totalPages == 0 {
		totalPages = 1
	}
	return Pagination{
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalSnippets: total,
		HasNextPage:   page < totalPages,
		HasPrevPage:   page > 1,
	}
}

// SnippetListResponse represents a paginated list of snippets
type SnippetListResponse struct {
	Snippets   []Snippet  `json:"snippets"`
	Pagination Pagination `json:"pagination"`
}

// User is the owner of snippets
type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
