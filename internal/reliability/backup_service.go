package reliability

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/papertrade/internal/database"
	"github.com/aristath/papertrade/internal/events"
	"github.com/rs/zerolog"
)

const backupTimestampLayout = "2006-01-02-150405"

// minBackupsToKeep is the number of newest backups rotation never deletes
const minBackupsToKeep = 3

// BackupInfo represents a backup stored remotely
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService uploads gzip-compressed copies of a database to an object store
type BackupService struct {
	store      ObjectStore
	db         *database.DB
	prefix     string
	stagingDir string
	bus        *events.Bus
	log        zerolog.Logger
	now        func() time.Time
}

// NewBackupService creates a new backup service. Copies are staged in
// stagingDir before upload.
func NewBackupService(
	store ObjectStore,
	db *database.DB,
	prefix string,
	stagingDir string,
	bus *events.Bus,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		store:      store,
		db:         db,
		prefix:     prefix,
		stagingDir: stagingDir,
		bus:        bus,
		log:        log.With().Str("service", "backup").Logger(),
		now:        time.Now,
	}
}

// filenamePrefix is the key prefix shared by every backup of this database
func (s *BackupService) filenamePrefix() string {
	return s.prefix + s.db.Name() + "-backup-"
}

// CreateAndUpload takes a consistent copy of the database and uploads it
func (s *BackupService) CreateAndUpload(ctx context.Context) (*BackupInfo, error) {
	start := s.now()
	s.log.Info().Str("database", s.db.Name()).Msg("Starting backup")

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	timestamp := start.UTC().Format(backupTimestampLayout)
	copyPath := filepath.Join(s.stagingDir, fmt.Sprintf("%s-%s.db", s.db.Name(), timestamp))
	defer os.Remove(copyPath)

	if err := s.db.SnapshotTo(ctx, copyPath); err != nil {
		return nil, err
	}

	info, err := os.Stat(copyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup copy: %w", err)
	}

	file, err := os.Open(copyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup copy: %w", err)
	}
	defer file.Close()

	key := s.filenamePrefix() + timestamp + ".db.gz"
	body := compress(file)
	defer body.Close()
	if err := s.store.Upload(ctx, key, body); err != nil {
		return nil, err
	}

	duration := s.now().Sub(start)
	s.log.Info().
		Str("key", key).
		Int64("size_bytes", info.Size()).
		Dur("duration_ms", duration).
		Msg("Backup completed successfully")

	s.bus.Publish("reliability", &events.BackupCompletedData{
		Key:       key,
		SizeBytes: info.Size(),
		Duration:  duration.Seconds(),
	})

	return &BackupInfo{
		Key:       key,
		Timestamp: start.UTC().Truncate(time.Second),
		SizeBytes: info.Size(),
	}, nil
}

// compress gzips r on the fly. Closing the returned reader stops the copy.
func compress(r io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		gz := gzip.NewWriter(pw)
		_, err := io.Copy(gz, r)
		if closeErr := gz.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()
	return pr
}

// ListBackups lists stored backups, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	prefix := s.filenamePrefix()
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		// Parse timestamp from key: <prefix>portfolio-backup-2026-01-08-143022.db.gz
		if !strings.HasPrefix(obj.Key, prefix) || !strings.HasSuffix(obj.Key, ".db.gz") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), ".db.gz")
		timestamp, err := time.Parse(backupTimestampLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from key")
			continue
		}

		backups = append(backups, BackupInfo{
			Key:       obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes backups older than retentionDays. The newest
// backups are always kept, and retentionDays <= 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[minBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().Str("key", backup.Key).Time("timestamp", backup.Timestamp).Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return deleted, nil
}
