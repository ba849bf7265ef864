package models

import "strings"

// UnknownLanguage is displayed for language values outside the known set
const UnknownLanguage = "Unknown"

// DefaultLanguage is used when a snippet is created without a language
const DefaultLanguage = "javascript"

// Language is a known programming language tag
type Language struct {
	Value     string
	Label     string
	Extension string
}

// Languages lists the known languages in display order
var Languages = []Language{
	{Value: "javascript", Label: "JavaScript", Extension: "js"},
	{Value: "typescript", Label: "TypeScript", Extension: "ts"},
	{Value: "html", Label: "HTML", Extension: "html"},
	{Value: "css", Label: "CSS", Extension: "css"},
	{Value: "python", Label: "Python", Extension: "py"},
	{Value: "java", Label: "Java", Extension: "java"},
	{Value: "csharp", Label: "C#", Extension: "cs"},
	{Value: "cpp", Label: "C++", Extension: "cpp"},
	{Value: "php", Label: "PHP", Extension: "php"},
	{Value: "ruby", Label: "Ruby", Extension: "rb"},
	{Value: "go", Label: "Go", Extension: "go"},
	{Value: "rust", Label: "Rust", Extension: "rs"},
	{Value: "swift", Label: "Swift", Extension: "swift"},
	{Value: "kotlin", Label: "Kotlin", Extension: "kt"},
	{Value: "objectivec", Label: "Objective-C", Extension: "m"},
	{Value: "scala", Label: "Scala", Extension: "scala"},
	{Value: "dart", Label: "Dart", Extension: "dart"},
	{Value: "perl", Label: "Perl", Extension: "pl"},
	{Value: "lua", Label: "Lua", Extension: "lua"},
	{Value: "haskell", Label: "Haskell", Extension: "hs"},
	{Value: "r", Label: "R", Extension: "r"},
	{Value: "shell", Label: "Shell", Extension: "sh"},
}

var languageLabels = func() map[string]string {
	m := make(map[string]string, len(Languages))
	for _, l := range Languages {
		m[l.Value] = l.Label
	}
	return m
}()

var languageExtensions = func() map[string]string {
	m := make(map[string]string, len(Languages))
	for _, l := range Languages {
		m[l.Value] = l.Extension
	}
	return m
}()

// IsKnownLanguage reports whether value is in the known set
func IsKnownLanguage(value string) bool {
	_, ok := languageLabels[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// LanguageLabel returns the display label for a language value
func LanguageLabel(value string) string {
	if label, ok := languageLabels[strings.ToLower(strings.TrimSpace(value))]; ok {
		return label
	}
	return UnknownLanguage
}

// LanguageExtension returns the file extension for a language value, or
// "txt" for unknown ones
func LanguageExtension(value string) string {
	if ext, ok := languageExtensions[strings.ToLower(strings.TrimSpace(value))]; ok {
		return ext
	}
	return "txt"
}
