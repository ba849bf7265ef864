package validation

import (
	"strings"
	"testing"

	"github.com/MohamedElashri/snipvault/internal/models"
)

func hasFieldError(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateSnippetInput_Valid(t *testing.T) {
	input := &models.SnippetInput{
		Title:       "Valid Title",
		Description: "A valid description",
		Code:        "console.log('hello');",
		Language:    "javascript",
		Tags:        []string{"test", "example"},
	}

	errs := ValidateSnippetInput(input)
	if errs.HasErrors() {
		t.Errorf("expected no errors, got: %v", errs)
	}
}

func TestValidateSnippetInput_EmptyTitle(t *testing.T) {
	input := &models.SnippetInput{
		Title:    "   ",
		Code:     "some code",
		Language: "python",
	}

	errs := ValidateSnippetInput(input)
	if !hasFieldError(errs, "title") {
		t.Errorf("expected error on 'title' field, got %v", errs)
	}
	if errs.First() != "Title is required" {
		t.Errorf("unexpected first message %q", errs.First())
	}
}

func TestValidateSnippetInput_TitleTooLong(t *testing.T) {
	input := &models.SnippetInput{
		Title: strings.Repeat("a", MaxTitleLength+1),
		Code:  "code",
	}

	errs := ValidateSnippetInput(input)
	found := false
	for _, e := range errs {
		if e.Field == "title" && strings.Contains(e.Message, "200") {
			found = true
		}
	}
	if !found {
		t.Error("expected title length error")
	}
}

func TestValidateSnippetInput_EmptyCode(t *testing.T) {
	input := &models.SnippetInput{
		Title: "Valid Title",
		Code:  "\n\t ",
	}

	errs := ValidateSnippetInput(input)
	if !hasFieldError(errs, "code") {
		t.Error("expected error on 'code' field")
	}
}

func TestValidateSnippetInput_CodeTooLarge(t *testing.T) {
	input := &models.SnippetInput{
		Title: "Big",
		Code:  strings.Repeat("x", MaxCodeBytes+1),
	}

	errs := ValidateSnippetInput(input)
	if !hasFieldError(errs, "code") {
		t.Error("expected error for oversized code")
	}
}

func TestValidateSnippetInput_UnknownLanguageAccepted(t *testing.T) {
	input := &models.SnippetInput{
		Title:    "Brainfuck",
		Code:     "++++[>+<-]",
		Language: "  BrainFuck ",
	}

	errs := ValidateSnippetInput(input)
	if errs.HasErrors() {
		t.Fatalf("expected unknown language to be accepted, got %v", errs)
	}
	if input.Language != "brainfuck" {
		t.Errorf("expected normalized language 'brainfuck', got %q", input.Language)
	}
}

func TestValidateSnippetInput_EmptyLanguageDefaults(t *testing.T) {
	input := &models.SnippetInput{
		Title: "Title",
		Code:  "code",
	}

	ValidateSnippetInput(input)
	if input.Language != models.DefaultLanguage {
		t.Errorf("expected default language %q, got %q", models.DefaultLanguage, input.Language)
	}
}

func TestValidateSnippetInput_DescriptionTooLong(t *testing.T) {
	input := &models.SnippetInput{
		Title:       "Title",
		Code:        "code",
		Description: strings.Repeat("d", MaxDescriptionLength+1),
	}

	errs := ValidateSnippetInput(input)
	if !hasFieldError(errs, "description") {
		t.Error("expected description length error")
	}
}

func TestValidateSnippetInput_TagsNormalized(t *testing.T) {
	input := &models.SnippetInput{
		Title: "Title",
		Code:  "code",
		Tags:  []string{" go ", "", "algorithms", "go", "c++ tricks"},
	}

	errs := ValidateSnippetInput(input)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs)
	}

	want := []string{"go", "algorithms", "c++ tricks"}
	if len(input.Tags) != len(want) {
		t.Fatalf("expected tags %v, got %v", want, input.Tags)
	}
	for i := range want {
		if input.Tags[i] != want[i] {
			t.Errorf("tag %d: expected %q, got %q", i, want[i], input.Tags[i])
		}
	}
}

func TestValidateSnippetInput_TagTooLong(t *testing.T) {
	input := &models.SnippetInput{
		Title: "Title",
		Code:  "code",
		Tags:  []string{strings.Repeat("t", MaxTagLength+1)},
	}

	errs := ValidateSnippetInput(input)
	if !hasFieldError(errs, "tags") {
		t.Error("expected tag length error")
	}
}

func TestValidateSnippetInput_TooManyTags(t *testing.T) {
	tags := make([]string, 0, MaxTags+1)
	for i := 0; i <= MaxTags; i++ {
		tags = append(tags, "tag"+strings.Repeat("x", i))
	}
	input := &models.SnippetInput{Title: "Title", Code: "code", Tags: tags}

	errs := ValidateSnippetInput(input)
	if !hasFieldError(errs, "tags") {
		t.Error("expected too many tags error")
	}
}

func TestValidateSnippetInput_TrimWhitespace(t *testing.T) {
	input := &models.SnippetInput{
		Title:       "  Padded Title  ",
		Description: "  padded description  ",
		Code:        "  code  ",
		Language:    "  GO  ",
	}

	ValidateSnippetInput(input)

	if input.Title != "Padded Title" {
		t.Errorf("expected trimmed title, got %q", input.Title)
	}
	if input.Description != "padded description" {
		t.Errorf("expected trimmed description, got %q", input.Description)
	}
	if input.Code != "  code  " {
		t.Errorf("expected code to be left untouched, got %q", input.Code)
	}
	if input.Language != "go" {
		t.Errorf("expected lowercased language, got %q", input.Language)
	}
}

func TestValidateSearchQuery(t *testing.T) {
	q, errs := ValidateSearchQuery("  fib  ")
	if errs.HasErrors() || q != "fib" {
		t.Errorf("expected 'fib' without errors, got %q %v", q, errs)
	}

	if _, errs := ValidateSearchQuery("   "); !errs.HasErrors() {
		t.Error("expected error for blank query")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "title", Message: "Title is required"},
		{Field: "code", Message: "Code is required"},
	}

	got := errs.Error()
	want := "title: Title is required; code: Code is required"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestValidationErrors_Empty(t *testing.T) {
	var errs ValidationErrors
	if errs.HasErrors() {
		t.Error("expected HasErrors to be false")
	}
	if errs.Error() != "" || errs.First() != "" {
		t.Error("expected empty strings for empty errors")
	}
}
