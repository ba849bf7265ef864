package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/repository"
	"github.com/MohamedElashri/snipvault/internal/storage"
	"github.com/MohamedElashri/snipvault/internal/testutil"
)

func seedBackupData(t *testing.T, svc *SnippetService, userID string) (active, trashed *models.Snippet) {
	t.Helper()
	ctx := testutil.TestContext()

	active = createSnippet(t, svc, userID, "Kept", "go")
	if _, err := svc.Update(ctx, userID, active.ID, &models.SnippetInput{Title: "Kept v2", Code: active.Code, Language: "go", Tags: []string{"go"}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	trashed = createSnippet(t, svc, userID, "Binned")
	if _, err := svc.MoveToTrash(ctx, userID, trashed.ID); err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}
	return active, trashed
}

func TestBackupService_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts models.ExportOptions
	}{
		{"json", models.ExportOptions{Format: "json"}},
		{"zip", models.ExportOptions{Format: "zip"}},
		{"encrypted", models.ExportOptions{Format: "json", Password: "hunter2"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := testutil.TestContext()

			srcDB := testutil.TestDB(t)
			srcUser := testutil.CreateUser(t, srcDB, "dev@example.com")
			srcSvc := NewSnippetService(repository.NewSnippetRepository(srcDB), testutil.TestLogger()).
				WithVersionRepo(repository.NewVersionRepository(srcDB))
			active, trashed := seedBackupData(t, srcSvc, srcUser)

			content, filename, err := NewBackupService(srcDB, testutil.TestLogger()).Export(ctx, tc.opts)
			if err != nil {
				t.Fatalf("Export failed: %v", err)
			}
			if tc.opts.Password != "" && !strings.HasSuffix(filename, ".enc") {
				t.Errorf("expected .enc filename, got %q", filename)
			}

			dstDB := testutil.TestDB(t)
			result, err := NewBackupService(dstDB, testutil.TestLogger()).Import(ctx, content, models.ImportOptions{
				Strategy: StrategyMerge,
				Password: tc.opts.Password,
			})
			if err != nil {
				t.Fatalf("Import failed: %v", err)
			}
			if result.UsersImported != 1 || result.SnippetsImported != 2 || result.VersionsImported != 1 {
				t.Errorf("unexpected import result: %+v", result)
			}

			dst := NewSnippetService(repository.NewSnippetRepository(dstDB), testutil.TestLogger()).
				WithVersionRepo(repository.NewVersionRepository(dstDB))
			got, err := dst.Get(ctx, srcUser, active.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Title != "Kept v2" {
				t.Errorf("expected title Kept v2, got %q", got.Title)
			}
			versions, _ := dst.Versions(ctx, srcUser, active.ID)
			if len(versions) != 1 || versions[0].Title != "Kept" {
				t.Errorf("expected history to survive, got %+v", versions)
			}
			trash, _ := dst.ListTrash(ctx, srcUser)
			if len(trash) != 1 || trash[0].ID != trashed.ID {
				t.Errorf("expected trashed snippet to stay trashed, got %+v", trash)
			}
		})
	}
}

func TestBackupService_MergeSkipsExisting(t *testing.T) {
	ctx := testutil.TestContext()
	db := testutil.TestDB(t)
	userID := testutil.CreateUser(t, db, "dev@example.com")
	svc := NewSnippetService(repository.NewSnippetRepository(db), testutil.TestLogger()).
		WithVersionRepo(repository.NewVersionRepository(db))
	seedBackupData(t, svc, userID)

	backup := NewBackupService(db, testutil.TestLogger())
	content, _, err := backup.Export(ctx, models.ExportOptions{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	result, err := backup.Import(ctx, content, models.ImportOptions{Strategy: StrategyMerge})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.SnippetsImported != 0 || result.SnippetsSkipped != 2 {
		t.Errorf("expected everything skipped, got %+v", result)
	}

	result, err = backup.Import(ctx, content, models.ImportOptions{Strategy: StrategyReplace})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.SnippetsImported != 2 || result.SnippetsSkipped != 0 {
		t.Errorf("expected replace to reimport everything, got %+v", result)
	}
}

func TestBackupService_ImportErrors(t *testing.T) {
	ctx := testutil.TestContext()
	backup := NewBackupService(testutil.TestDB(t), testutil.TestLogger())

	if _, err := backup.Import(ctx, []byte("not a backup"), models.ImportOptions{}); !errors.Is(err, ErrInvalidBackupFormat) {
		t.Errorf("expected ErrInvalidBackupFormat, got %v", err)
	}
	if _, err := backup.Import(ctx, []byte(`{"snippets":[]}`), models.ImportOptions{}); !errors.Is(err, ErrInvalidBackupFormat) {
		t.Errorf("expected ErrInvalidBackupFormat for a versionless document, got %v", err)
	}

	content, _, err := backup.Export(ctx, models.ExportOptions{Password: "right"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if _, err := backup.Import(ctx, content, models.ImportOptions{Password: "wrong"}); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestBackupFilename(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	tests := []struct {
		format    string
		encrypted bool
		want      string
	}{
		{"json", false, "snipvault-backup-2024-02-03-040506.json"},
		{"zip", false, "snipvault-backup-2024-02-03-040506.zip"},
		{"", true, "snipvault-backup-2024-02-03-040506.json.enc"},
	}
	for _, tt := range tests {
		if got := BackupFilename(tt.format, tt.encrypted, at); got != tt.want {
			t.Errorf("BackupFilename(%q, %v) = %q, want %q", tt.format, tt.encrypted, got, tt.want)
		}
	}
}

// memStore is an in-memory ObjectStore
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	times   map[string]time.Time
	clock   time.Time
}

func newMemStore() *memStore {
	return &memStore{
		objects: map[string][]byte{},
		times:   map[string]time.Time{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) Put(_ context.Context, key string, content []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Minute)
	m.objects[key] = content
	m.times[key] = m.clock
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return content, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.times, key)
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v)), LastModified: m.times[k]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func TestS3SyncService_PushListRestore(t *testing.T) {
	ctx := testutil.TestContext()
	db := testutil.TestDB(t)
	userID := testutil.CreateUser(t, db, "dev@example.com")
	svc := NewSnippetService(repository.NewSnippetRepository(db), testutil.TestLogger()).
		WithVersionRepo(repository.NewVersionRepository(db))
	s := createSnippet(t, svc, userID, "Synced")

	backup := NewBackupService(db, testutil.TestLogger())
	store := newMemStore()
	syncer := NewS3SyncService(store, backup, testutil.TestLogger()).WithRetention(2)

	clock := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var keys []string
	for i := 0; i < 3; i++ {
		at := clock.Add(time.Duration(i) * time.Hour)
		backup.now = func() time.Time { return at }
		result, err := syncer.Push(ctx, models.ExportOptions{Format: "json"})
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if !strings.HasPrefix(result.Key, "backups/") {
			t.Errorf("unexpected key %q", result.Key)
		}
		keys = append(keys, result.Key)
	}

	backups, err := syncer.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected retention to keep 2 backups, got %d", len(backups))
	}
	if backups[0].Key != keys[2] {
		t.Errorf("expected newest first, got %q", backups[0].Key)
	}
	if _, err := store.Get(ctx, keys[0]); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("expected oldest backup pruned, got %v", err)
	}

	if err := svc.Delete(ctx, userID, s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	result, err := syncer.Restore(ctx, "", models.ImportOptions{Strategy: StrategyMerge})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.SnippetsImported != 1 {
		t.Errorf("expected 1 snippet restored, got %+v", result)
	}
	if _, err := svc.Get(ctx, userID, s.ID); err != nil {
		t.Errorf("expected snippet back after restore, got %v", err)
	}

	if err := syncer.Delete(ctx, strings.TrimPrefix(keys[1], "backups/")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	backups, _ = syncer.List(ctx)
	if len(backups) != 1 {
		t.Errorf("expected 1 backup left, got %d", len(backups))
	}
}
