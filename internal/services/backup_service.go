package services

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/repository"
)

const (
	BackupVersion = "2.0"
)

// Import strategies
const (
	StrategyMerge   = "merge"
	StrategyReplace = "replace"
)

var (
	ErrInvalidBackupFormat = errors.New("invalid backup format")
	ErrDecryptionFailed    = errors.New("decryption failed - wrong password?")
)

// BackupService handles backup and restore operations
type BackupService struct {
	db       *sql.DB
	snippets *repository.SnippetRepository
	versions *repository.VersionRepository
	users    *repository.UserRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db *sql.DB, logger *slog.Logger) *BackupService {
	return &BackupService{
		db:       db,
		snippets: repository.NewSnippetRepository(db),
		versions: repository.NewVersionRepository(db),
		users:    repository.NewUserRepository(db),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot gathers every user and snippet, trashed ones included, with
// their version history
func (b *BackupService) Snapshot(ctx context.Context) (*models.BackupData, error) {
	data := &models.BackupData{
		Version:   BackupVersion,
		CreatedAt: b.now(),
		Users:     []models.BackupUser{},
		Snippets:  []models.BackupSnippet{},
	}

	users, err := b.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	for _, u := range users {
		data.Users = append(data.Users, models.BackupUser{
			ID:           u.ID,
			Email:        u.Email,
			Name:         u.Name,
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt,
		})

		for _, trashed := range []bool{false, true} {
			list, err := b.snippets.List(ctx, models.SnippetFilter{UserID: u.ID, Trashed: trashed})
			if err != nil {
				return nil, fmt.Errorf("failed to get snippets: %w", err)
			}
			for _, s := range list.Snippets {
				entry := models.BackupSnippet{Snippet: s}
				if trashed {
					entry.TrashedAt, err = b.snippets.TrashedAt(ctx, s.ID)
					if err != nil {
						return nil, err
					}
				}
				entry.Versions, err = b.versions.List(ctx, s.ID)
				if err != nil {
					return nil, fmt.Errorf("failed to get versions: %w", err)
				}
				data.Snippets = append(data.Snippets, entry)
			}
		}
	}

	return data, nil
}

// Export creates a complete backup of all data
func (b *BackupService) Export(ctx context.Context, opts models.ExportOptions) ([]byte, string, error) {
	data, err := b.Snapshot(ctx)
	if err != nil {
		return nil, "", err
	}

	var content []byte
	if opts.Format == "zip" {
		content, err = createZipBackup(data)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create zip backup: %w", err)
		}
	} else {
		content, err = json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal backup: %w", err)
		}
	}

	if opts.Password != "" {
		content, err = encrypt(content, opts.Password)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encrypt backup: %w", err)
		}
	}

	b.logger.Info("backup exported",
		"users", len(data.Users),
		"snippets", len(data.Snippets),
		"format", opts.Format,
		"encrypted", opts.Password != "",
	)

	return content, BackupFilename(opts.Format, opts.Password != "", data.CreatedAt), nil
}

// Import restores data from a backup. Ids, timestamps, trash state and
// history are kept. With the merge strategy snippets that already exist are
// skipped; replace wipes every snippet first.
func (b *BackupService) Import(ctx context.Context, content []byte, opts models.ImportOptions) (*models.ImportResult, error) {
	var err error
	if opts.Password != "" {
		content, err = decrypt(content, opts.Password)
		if err != nil {
			return nil, ErrDecryptionFailed
		}
	}

	data, err := parseBackup(content)
	if err != nil {
		return nil, err
	}

	if opts.Strategy == StrategyReplace {
		if err := b.clearSnippets(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear existing data: %w", err)
		}
	}

	result := &models.ImportResult{}

	for _, u := range data.Users {
		err := b.users.Import(ctx, models.User{
			ID:           u.ID,
			Email:        u.Email,
			Name:         u.Name,
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("user %s: %v", u.Email, err))
			continue
		}
		result.UsersImported++
	}

	for _, entry := range data.Snippets {
		existing, err := b.snippets.GetAny(ctx, entry.UserID, entry.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("snippet %s: %v", entry.Title, err))
			continue
		}
		if existing != nil {
			result.SnippetsSkipped++
			continue
		}

		snippet := entry.Snippet
		if err := b.snippets.Import(ctx, &snippet, entry.TrashedAt); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("snippet %s: %v", entry.Title, err))
			continue
		}
		result.SnippetsImported++

		for _, v := range entry.Versions {
			if err := b.versions.Archive(ctx, snippet.ID, v.Fields(), v.Timestamp); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("version of %s: %v", entry.Title, err))
				continue
			}
			result.VersionsImported++
		}
	}

	b.logger.Info("backup imported",
		"users", result.UsersImported,
		"snippets", result.SnippetsImported,
		"skipped", result.SnippetsSkipped,
		"versions", result.VersionsImported,
		"errors", len(result.Errors),
	)

	return result, nil
}

// parseBackup accepts a JSON document or a zip archive holding metadata.json
func parseBackup(content []byte) (*models.BackupData, error) {
	var data models.BackupData
	if err := json.Unmarshal(content, &data); err == nil {
		if data.Version == "" {
			return nil, ErrInvalidBackupFormat
		}
		return &data, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, ErrInvalidBackupFormat
	}
	for _, f := range zr.File {
		if f.Name != "metadata.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata: %w", err)
		}
		err = json.NewDecoder(rc).Decode(&data)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		break
	}

	if data.Version == "" {
		return nil, ErrInvalidBackupFormat
	}
	return &data, nil
}

// createZipBackup lays snippets out as files per user, plus metadata.json
func createZipBackup(data *models.BackupData) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	for _, s := range data.Snippets {
		dir := "snippets"
		if s.TrashedAt != nil {
			dir = "trash"
		}
		filename := fmt.Sprintf("%s/%s/%s-%s.%s", dir, s.UserID, sanitizeFilename(s.Title), s.ID, models.LanguageExtension(s.Language))
		w, err := zw.Create(filename)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(s.Code)); err != nil {
			return nil, err
		}
	}

	metaW, err := zw.Create("metadata.json")
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(metaW).Encode(data); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// clearSnippets removes every snippet with its tags and versions. Users are
// kept so sessions stay valid.
func (b *BackupService) clearSnippets(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		"DELETE FROM snippet_tags",
		"DELETE FROM snippet_versions",
		"DELETE FROM snippets",
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", q, err)
		}
	}
	return tx.Commit()
}

// sanitizeFilename removes invalid characters from filename
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	result := name
	for _, c := range invalid {
		result = strings.ReplaceAll(result, c, "_")
	}
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}

// deriveKey derives a 32-byte key from password using SHA256
func deriveKey(password string) []byte {
	hash := sha256.Sum256([]byte(password))
	return hash[:]
}

// encrypt encrypts data using AES-256-GCM
func encrypt(data []byte, password string) ([]byte, error) {
	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// decrypt decrypts data using AES-256-GCM
func decrypt(data []byte, password string) ([]byte, error) {
	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// BackupFilename builds the name a backup is stored under
func BackupFilename(format string, encrypted bool, at time.Time) string {
	ext := "json"
	if format == "zip" {
		ext = "zip"
	}
	filename := fmt.Sprintf("snipvault-backup-%s.%s", at.Format("2006-01-02-150405"), ext)
	if encrypted {
		filename += ".enc"
	}
	return filename
}
