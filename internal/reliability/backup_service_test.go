package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/papertrade/internal/database"
	"github.com/aristath/papertrade/internal/events"
	testingpkg "github.com/aristath/papertrade/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory ObjectStore
type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, SizeBytes: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func newTestBackupService(t *testing.T, store ObjectStore, bus *events.Bus) (*BackupService, string) {
	db := testingpkg.NewTestDB(t, database.NamePortfolio)
	_, err := db.Conn().Exec(
		"INSERT INTO users (id, username, cash, created_at) VALUES ('u1', 'alice', 10000, 0)")
	require.NoError(t, err)

	staging := t.TempDir()
	svc := NewBackupService(store, db, "papertrade/", staging, bus, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 24, 14, 30, 22, 0, time.UTC) }
	return svc, staging
}

func TestBackupService_CreateAndUpload(t *testing.T) {
	store := newMemoryStore()
	bus := events.NewBus(zerolog.Nop())
	var completed []*events.BackupCompletedData
	bus.Subscribe(func(e *events.Event) {
		completed = append(completed, e.Data.(*events.BackupCompletedData))
	}, events.BackupCompleted)

	svc, staging := newTestBackupService(t, store, bus)

	info, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "papertrade/portfolio-backup-2025-06-24-143022.db.gz", info.Key)
	assert.Greater(t, info.SizeBytes, int64(0))

	require.Equal(t, []string{info.Key}, store.keys())
	gz, err := gzip.NewReader(bytes.NewReader(store.objects[info.Key]))
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("SQLite format 3\x00")))
	assert.Equal(t, info.SizeBytes, int64(len(raw)))

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged copy is removed after upload")

	require.Len(t, completed, 1)
	assert.Equal(t, info.Key, completed[0].Key)
}

func TestBackupService_UploadFailure(t *testing.T) {
	store := newMemoryStore()
	store.uploadErr = errors.New("bucket unreachable")
	svc, staging := newTestBackupService(t, store, events.NewBus(zerolog.Nop()))

	_, err := svc.CreateAndUpload(context.Background())
	assert.ErrorContains(t, err, "bucket unreachable")

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func seedBackups(store *memoryStore, stamps ...string) {
	for _, stamp := range stamps {
		store.objects["papertrade/portfolio-backup-"+stamp+".db.gz"] = []byte("x")
	}
	store.objects["papertrade/portfolio-backup-garbage.db.gz"] = []byte("x")
	store.objects["papertrade/other-file.txt"] = []byte("x")
}

func TestBackupService_ListBackups(t *testing.T) {
	store := newMemoryStore()
	seedBackups(store, "2025-06-20-010000", "2025-06-23-010000", "2025-06-21-010000")
	svc, _ := newTestBackupService(t, store, events.NewBus(zerolog.Nop()))

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, "papertrade/portfolio-backup-2025-06-23-010000.db.gz", backups[0].Key)
	assert.Equal(t, "papertrade/portfolio-backup-2025-06-20-010000.db.gz", backups[2].Key)
	assert.Equal(t, int64(37), backups[0].AgeHours)
}

func TestBackupService_RotateOldBackups(t *testing.T) {
	store := newMemoryStore()
	seedBackups(store,
		"2025-06-24-010000",
		"2025-06-10-010000",
		"2025-06-01-010000",
		"2025-05-01-010000",
		"2025-04-01-010000",
	)
	svc, _ := newTestBackupService(t, store, events.NewBus(zerolog.Nop()))
	ctx := context.Background()

	deleted, err := svc.RotateOldBackups(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	deleted, err = svc.RotateOldBackups(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	backups, err := svc.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, "papertrade/portfolio-backup-2025-06-01-010000.db.gz", backups[2].Key)

	// the newest three survive any retention
	deleted, err = svc.RotateOldBackups(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestBackupJob(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestBackupService(t, store, events.NewBus(zerolog.Nop()))
	job := NewBackupJob(svc, 30, zerolog.Nop())

	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.keys(), 1)

	store.uploadErr = errors.New("offline")
	assert.Error(t, job.Run())
}
