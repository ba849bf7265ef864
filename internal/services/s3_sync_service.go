package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/storage"
)

const backupPrefix = "backups/"

// ObjectStore is the subset of object storage the sync service needs.
// *storage.S3Storage satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// S3SyncService pushes backups to object storage and restores from it
type S3SyncService struct {
	store     ObjectStore
	backupSvc *BackupService
	retention int
	logger    *slog.Logger
}

// NewS3SyncService creates a new S3 sync service
func NewS3SyncService(store ObjectStore, backupSvc *BackupService, logger *slog.Logger) *S3SyncService {
	return &S3SyncService{
		store:     store,
		backupSvc: backupSvc,
		logger:    logger,
	}
}

// WithRetention keeps only the newest n backups after each push. Zero keeps
// everything.
func (s *S3SyncService) WithRetention(n int) *S3SyncService {
	s.retention = n
	return s
}

// Push exports a backup and uploads it
func (s *S3SyncService) Push(ctx context.Context, opts models.ExportOptions) (*models.S3SyncResult, error) {
	result := &models.S3SyncResult{
		StartedAt: time.Now().UTC(),
	}

	content, filename, err := s.backupSvc.Export(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup: %w", err)
	}

	key := backupPrefix + filename
	if err := s.store.Put(ctx, key, content, contentType(filename)); err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}
	result.Key = key
	result.Size = len(content)

	if s.retention > 0 {
		pruned, err := s.prune(ctx, s.retention)
		if err != nil {
			// the upload itself succeeded
			s.logger.Warn("failed to prune old backups", "error", err)
		}
		result.Pruned = pruned
	}

	result.FinishedAt = time.Now().UTC()
	s.logger.Info("backup synced to S3",
		"key", key,
		"size", len(content),
		"pruned", len(result.Pruned),
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result, nil
}

// List returns stored backups, newest first
func (s *S3SyncService) List(ctx context.Context) ([]models.S3BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]models.S3BackupInfo, 0, len(objects))
	for _, obj := range objects {
		backups = append(backups, models.S3BackupInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].LastModified.Equal(backups[j].LastModified) {
			return backups[i].Key > backups[j].Key
		}
		return backups[i].LastModified.After(backups[j].LastModified)
	})
	return backups, nil
}

// Restore downloads the backup at key and imports it. An empty key picks the
// newest backup.
func (s *S3SyncService) Restore(ctx context.Context, key string, opts models.ImportOptions) (*models.ImportResult, error) {
	if key == "" {
		backups, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(backups) == 0 {
			return nil, fmt.Errorf("no backups found")
		}
		key = backups[0].Key
	}

	content, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download backup: %w", err)
	}

	result, err := s.backupSvc.Import(ctx, content, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to import backup: %w", err)
	}

	s.logger.Info("backup restored from S3", "key", key, "snippets", result.SnippetsImported)
	return result, nil
}

// Delete removes a stored backup
func (s *S3SyncService) Delete(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, backupPrefix) {
		key = backupPrefix + key
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	s.logger.Info("backup deleted from S3", "key", key)
	return nil
}

// prune deletes all but the newest keep backups and returns the removed keys
func (s *S3SyncService) prune(ctx context.Context, keep int) ([]string, error) {
	backups, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var pruned []string
	for _, b := range backups[keep:] {
		if err := s.store.Delete(ctx, b.Key); err != nil {
			return pruned, err
		}
		pruned = append(pruned, b.Key)
	}
	return pruned, nil
}

func contentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".enc"):
		return "application/octet-stream"
	case strings.HasSuffix(filename, ".zip"):
		return "application/zip"
	default:
		return "application/json"
	}
}
