package validation

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// Field limits
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 500
	MaxCodeBytes         = 1024 * 1024
	MaxTagLength         = 50
	MaxTags              = 20
)

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var msgs []string
	for _, e := range ve {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// First returns the message of the first error, or "" when there is none
func (ve ValidationErrors) First() string {
	if len(ve) == 0 {
		return ""
	}
	return ve[0].Message
}

// ValidateSnippetInput validates and normalizes snippet input in place.
// Unknown languages are accepted; they are lowercased and kept as-is.
func ValidateSnippetInput(input *models.SnippetInput) ValidationErrors {
	var errs ValidationErrors

	// Title validation
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		errs = append(errs, ValidationError{Field: "title", Message: "Title is required"})
	} else if utf8.RuneCountInString(input.Title) > MaxTitleLength {
		errs = append(errs, ValidationError{Field: "title", Message: "Title must be less than " + strconv.Itoa(MaxTitleLength) + " characters"})
	}

	// Code validation
	if strings.TrimSpace(input.Code) == "" {
		errs = append(errs, ValidationError{Field: "code", Message: "Code is required"})
	} else if len(input.Code) > MaxCodeBytes {
		errs = append(errs, ValidationError{Field: "code", Message: "Code must be less than 1MB"})
	}

	input.Language = strings.ToLower(strings.TrimSpace(input.Language))
	if input.Language == "" {
		input.Language = models.DefaultLanguage
	}

	// Description length
	input.Description = strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(input.Description) > MaxDescriptionLength {
		errs = append(errs, ValidationError{Field: "description", Message: "Description must be less than " + strconv.Itoa(MaxDescriptionLength) + " characters"})
	}

	tags, tagErrs := NormalizeTags(input.Tags)
	input.Tags = tags
	errs = append(errs, tagErrs...)

	return errs
}

// NormalizeTags trims tags, drops empties and duplicates, and keeps the
// order in which they were contributed.
func NormalizeTags(tags []string) ([]string, ValidationErrors) {
	var errs ValidationErrors
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			errs = append(errs, ValidationError{Field: "tags", Message: "Tag name must be less than " + strconv.Itoa(MaxTagLength) + " characters"})
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		errs = append(errs, ValidationError{Field: "tags", Message: "A snippet can have at most " + strconv.Itoa(MaxTags) + " tags"})
	}
	return out, errs
}

// ValidateSearchQuery trims a search query and rejects empty ones
func ValidateSearchQuery(query string) (string, ValidationErrors) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ValidationErrors{{Field: "query", Message: "Search query is required"}}
	}
	return query, nil
}
