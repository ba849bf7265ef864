package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/MohamedElashri/snipvault/internal/apiclient"
	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/store"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess = 0
	CLIExitError   = 1
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	favStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// OutputJSON writes data as indented JSON to stdout.
func OutputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// OutputError writes err to stderr, or as JSON to stdout in JSON mode.
// Client errors are shown by their user-facing message only.
func OutputError(jsonMode bool, err error) {
	msg := err.Error()
	kind := ""
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
		kind = string(apiErr.Kind)
	}

	if jsonMode {
		_ = OutputJSON(map[string]any{"success": false, "error": msg, "kind": kind})
		return
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), msg)
}

func favMark(fav bool) string {
	if fav {
		return favStyle.Render("★")
	}
	return ""
}

func shortTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

// printSnippets renders a snippet list as a table. The favorite column is
// read from the store so optimistic toggles show up.
func printSnippets(st *store.Store, snippets []models.Snippet) {
	if outputJSON {
		_ = OutputJSON(snippets)
		return
	}
	if len(snippets) == 0 {
		fmt.Println(mutedStyle.Render("no snippets"))
		return
	}

	rows := make([][]string, 0, len(snippets))
	for _, s := range snippets {
		rows = append(rows, []string{
			s.ID,
			favMark(st.DisplayFavorite(s.ID)),
			s.Title,
			s.Language,
			strings.Join(s.Tags, ", "),
			shortTime(s.UpdatedAt),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("ID", "", "TITLE", "LANGUAGE", "TAGS", "UPDATED").
		Rows(rows...)
	fmt.Println(t.Render())
}

func printPagination(p models.Pagination) {
	if outputJSON || p.TotalSnippets == 0 {
		return
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("page %d of %d (%d snippets)", p.CurrentPage, p.TotalPages, p.TotalSnippets)))
}

// printSnippet shows one snippet in full
func printSnippet(st *store.Store, s models.Snippet) {
	if outputJSON {
		_ = OutputJSON(s)
		return
	}

	title := headerStyle.Render(s.Title)
	if mark := favMark(st.DisplayFavorite(s.ID)); mark != "" {
		title += " " + mark
	}
	fmt.Println(title)
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%s  %s  updated %s", s.ID, s.Language, shortTime(s.UpdatedAt))))
	if len(s.Tags) > 0 {
		fmt.Println(mutedStyle.Render("tags: " + strings.Join(s.Tags, ", ")))
	}
	if s.Description != "" {
		fmt.Println()
		fmt.Println(s.Description)
	}
	fmt.Println()
	fmt.Println(s.Code)
}

func printVersions(versions []models.Version) {
	if outputJSON {
		_ = OutputJSON(versions)
		return
	}
	if len(versions) == 0 {
		fmt.Println(mutedStyle.Render("no versions"))
		return
	}

	rows := make([][]string, 0, len(versions))
	for i, v := range versions {
		rows = append(rows, []string{
			strconv.Itoa(i),
			v.Title,
			v.Language,
			strings.Join(v.Tags, ", "),
			shortTime(v.Timestamp),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("INDEX", "TITLE", "LANGUAGE", "TAGS", "SAVED").
		Rows(rows...)
	fmt.Println(t.Render())
}

// printMessage shows the server's last message, or fallback when it sent none
func printMessage(st *store.Store, fallback string) {
	msg := st.LastMessage()
	if msg == "" {
		msg = fallback
	}
	if outputJSON {
		_ = OutputJSON(map[string]any{"success": true, "message": msg})
		return
	}
	fmt.Println(msg)
}
