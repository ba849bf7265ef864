package models

import "time"

// BackupData is the portable export of every user and snippet
type BackupData struct {
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Users     []BackupUser    `json:"users"`
	Snippets  []BackupSnippet `json:"snippets"`
}

// BackupUser carries the password hash, which the API never exposes
type BackupUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// BackupSnippet is a snippet with its trash state and full history
type BackupSnippet struct {
	Snippet
	TrashedAt *time.Time `json:"trashed_at,omitempty"`
	Versions  []Version  `json:"versions,omitempty"`
}

// ExportOptions controls backup output
type ExportOptions struct {
	Format   string `json:"format"` // json or zip
	Password string `json:"password,omitempty"`
}

// ImportOptions controls how a backup is applied
type ImportOptions struct {
	Strategy string `json:"strategy"` // merge or replace
	Password string `json:"password,omitempty"`
}

// ImportResult summarizes an import
type ImportResult struct {
	UsersImported    int      `json:"users_imported"`
	SnippetsImported int      `json:"snippets_imported"`
	SnippetsSkipped  int      `json:"snippets_skipped"`
	VersionsImported int      `json:"versions_imported"`
	Errors           []string `json:"errors,omitempty"`
}

// S3SyncResult reports an upload to object storage
type S3SyncResult struct {
	Key        string    `json:"key"`
	Size       int       `json:"size"`
	Pruned     []string  `json:"pruned,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// S3BackupInfo describes a stored backup
type S3BackupInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
