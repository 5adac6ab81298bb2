package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/isdelr/dirback/internal/archive"
	"github.com/isdelr/dirback/internal/models"
	"github.com/rs/zerolog/log"
)

// LiveEngine keeps target metadata in sqlite and archives on disk under storeDir.
type LiveEngine struct {
	db       *sql.DB
	storeDir string
	archiver Archiver
	locks    *targetLocks
	now      func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewLiveEngine creates a LiveEngine rooted at storeDir.
func NewLiveEngine(db *sql.DB, storeDir string, archiver Archiver) (*LiveEngine, error) {
	if err := os.MkdirAll(filepath.Join(storeDir, models.TargetsDirName), 0755); err != nil {
		return nil, fmt.Errorf("could not create store directory: %w", err)
	}
	return &LiveEngine{
		db:       db,
		storeDir: storeDir,
		archiver: archiver,
		locks:    newTargetLocks(),
		now:      time.Now,
	}, nil
}

// StoreDir is the root that archive paths are relative to.
func (e *LiveEngine) StoreDir() string {
	return e.storeDir
}

func (e *LiveEngine) abs(rel string) string {
	return filepath.Join(e.storeDir, filepath.FromSlash(rel))
}

// ListTargets returns every target in registration order.
func (e *LiveEngine) ListTargets(ctx context.Context) ([]models.Target, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, models.Internal("", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id, name, path, last_backup_id FROM targets ORDER BY rowid")
	if err != nil {
		return nil, models.Internal("", err)
	}
	targets := []models.Target{}
	index := make(map[string]int)
	for rows.Next() {
		var t models.Target
		if err := rows.Scan(&t.ID, &t.Name, &t.Path, &t.LastBackupID); err != nil {
			rows.Close()
			return nil, models.Internal("", err)
		}
		index[t.ID] = len(targets)
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, models.Internal("", err)
	}

	backups, err := scanBackups(tx.QueryContext(ctx, "SELECT target_id, id, created_at, note, size, checksum FROM backups ORDER BY target_id, id"))
	if err != nil {
		return nil, models.Internal("", err)
	}
	for _, b := range backups {
		if i, ok := index[b.TargetID]; ok {
			targets[i].Backups = append(targets[i].Backups, b)
		}
	}
	return targets, nil
}

// GetTarget returns the target or nil when it does not exist.
func (e *LiveEngine) GetTarget(ctx context.Context, targetID string) (*models.Target, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, models.Internal(targetID, err)
	}
	defer tx.Rollback()

	t, err := loadTarget(ctx, tx, targetID)
	if err != nil {
		return nil, models.Internal(targetID, err)
	}
	return t, nil
}

// RegisterTarget validates and stores a new target.
func (e *LiveEngine) RegisterTarget(ctx context.Context, name, path string) (models.Target, error) {
	if err := models.ValidateRegistration(name, path); err != nil {
		return models.Target{}, err
	}
	target := models.Target{ID: models.NewTargetID(), Name: name, Path: path}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Target{}, models.Internal(target.ID, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM targets WHERE id = ?", target.ID).Scan(&exists)
	if err == nil {
		return models.Target{}, models.Internal(target.ID, errors.New("generated target id collides with an existing target"))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Target{}, models.Internal(target.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO targets (id, name, path) VALUES (?, ?, ?)", target.ID, target.Name, target.Path); err != nil {
		return models.Target{}, models.Internal(target.ID, err)
	}
	if err := os.MkdirAll(e.abs(models.BackupDir(target.ID)), 0755); err != nil {
		return models.Target{}, models.Internal(target.ID, fmt.Errorf("could not create backup directory: %w", err))
	}
	if err := tx.Commit(); err != nil {
		os.RemoveAll(e.abs(models.TargetDir(target.ID)))
		return models.Target{}, models.Internal(target.ID, err)
	}

	log.Info().Str("target_id", target.ID).Str("name", target.Name).Msg("Target registered")
	return target, nil
}

// BackupTarget archives the target directory and appends the entry. The row is
// only written once the archive file is complete.
func (e *LiveEngine) BackupTarget(ctx context.Context, targetID, note string) (models.Target, error) {
	unlock := e.locks.Lock(targetID)
	defer unlock()

	target, err := e.requireTarget(ctx, targetID)
	if err != nil {
		return models.Target{}, err
	}

	entry := target.NewBackupEntry(models.NewTimestamp(e.now()), note)
	dest := e.abs(entry.ArchivePath())

	// The store may sit inside the target directory; never archive it into itself.
	result, err := e.archiver.Archive(ctx, target.Path, dest, e.storeDir)
	if err != nil {
		return models.Target{}, models.Internal(targetID, fmt.Errorf("failed to archive %s: %w", target.Path, err))
	}
	entry.Size = result.Size
	entry.Checksum = result.Checksum

	if err := target.AppendBackup(entry); err != nil {
		os.Remove(dest)
		return models.Target{}, err
	}
	if err := e.insertBackup(ctx, entry); err != nil {
		os.Remove(dest)
		return models.Target{}, models.Internal(targetID, err)
	}

	log.Info().Str("target_id", targetID).Int("backup_id", entry.ID).Int64("size", entry.Size).Msg("Backup created")
	return target.Clone(), nil
}

func (e *LiveEngine) insertBackup(ctx context.Context, entry models.BackupEntry) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO backups (target_id, id, created_at, note, size, checksum) VALUES (?, ?, ?, ?, ?, ?)",
		entry.TargetID, entry.ID, entry.CreatedAt.String(), entry.Note, entry.Size, entry.Checksum)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE targets SET last_backup_id = ? WHERE id = ?", entry.ID, entry.TargetID); err != nil {
		return err
	}
	return tx.Commit()
}

// RestoreTarget extracts a backup over the target directory.
func (e *LiveEngine) RestoreTarget(ctx context.Context, targetID string, backupID int) (models.Target, error) {
	unlock := e.locks.Lock(targetID)
	defer unlock()

	target, err := e.requireTarget(ctx, targetID)
	if err != nil {
		return models.Target{}, err
	}
	i, ok := target.FindBackup(backupID)
	if !ok {
		return models.Target{}, models.BackupNotFound(targetID, backupID)
	}
	entry := target.Backups[i]
	src := e.abs(entry.ArchivePath())

	if err := e.archiver.Verify(src, entry.Checksum); err != nil {
		return models.Target{}, archiveError(targetID, backupID, err)
	}
	if err := e.archiver.Extract(ctx, src, target.Path); err != nil {
		return models.Target{}, archiveError(targetID, backupID, err)
	}

	log.Info().Str("target_id", targetID).Int("backup_id", backupID).Str("path", target.Path).Msg("Backup restored")
	return target.Clone(), nil
}

func archiveError(targetID string, backupID int, err error) error {
	if errors.Is(err, archive.ErrMissing) || errors.Is(err, archive.ErrCorrupt) {
		return models.ArchiveUnavailable(targetID, backupID, err)
	}
	return models.Internal(targetID, err)
}

// DeleteBackup removes one entry and its archive file.
func (e *LiveEngine) DeleteBackup(ctx context.Context, targetID string, backupID int) (models.BackupEntry, error) {
	unlock := e.locks.Lock(targetID)
	defer unlock()

	target, err := e.requireTarget(ctx, targetID)
	if err != nil {
		return models.BackupEntry{}, err
	}
	removed, err := target.RemoveBackup(backupID)
	if err != nil {
		return models.BackupEntry{}, err
	}

	if _, err := e.db.ExecContext(ctx, "DELETE FROM backups WHERE target_id = ? AND id = ?", targetID, backupID); err != nil {
		return models.BackupEntry{}, models.Internal(targetID, err)
	}
	if err := os.Remove(e.abs(removed.ArchivePath())); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("target_id", targetID).Int("backup_id", backupID).Msg("Could not remove archive file")
	}

	log.Info().Str("target_id", targetID).Int("backup_id", backupID).Msg("Backup deleted")
	return removed, nil
}

// DeleteTarget removes the target, all of its entries and its archive directory.
func (e *LiveEngine) DeleteTarget(ctx context.Context, targetID string) (models.Target, error) {
	unlock := e.locks.Lock(targetID)
	defer unlock()

	target, err := e.requireTarget(ctx, targetID)
	if err != nil {
		return models.Target{}, err
	}

	// Backups go with the target through ON DELETE CASCADE.
	if _, err := e.db.ExecContext(ctx, "DELETE FROM targets WHERE id = ?", targetID); err != nil {
		return models.Target{}, models.Internal(targetID, err)
	}
	if err := os.RemoveAll(e.abs(models.TargetDir(targetID))); err != nil {
		log.Warn().Err(err).Str("target_id", targetID).Msg("Could not remove target archive directory")
	}

	log.Info().Str("target_id", targetID).Int("backups", len(target.Backups)).Msg("Target deleted")
	return *target, nil
}

func (e *LiveEngine) requireTarget(ctx context.Context, targetID string) (*models.Target, error) {
	t, err := loadTarget(ctx, e.db, targetID)
	if err != nil {
		return nil, models.Internal(targetID, err)
	}
	if t == nil {
		return nil, models.TargetNotFound(targetID)
	}
	return t, nil
}

// loadTarget reads one target with its backups; nil means absent.
func loadTarget(ctx context.Context, q querier, targetID string) (*models.Target, error) {
	var t models.Target
	err := q.QueryRowContext(ctx, "SELECT id, name, path, last_backup_id FROM targets WHERE id = ?", targetID).
		Scan(&t.ID, &t.Name, &t.Path, &t.LastBackupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.Backups, err = scanBackups(q.QueryContext(ctx,
		"SELECT target_id, id, created_at, note, size, checksum FROM backups WHERE target_id = ? ORDER BY id", targetID))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanBackups(rows *sql.Rows, err error) ([]models.BackupEntry, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var backups []models.BackupEntry
	for rows.Next() {
		var (
			b         models.BackupEntry
			createdAt string
		)
		if err := rows.Scan(&b.TargetID, &b.ID, &createdAt, &b.Note, &b.Size, &b.Checksum); err != nil {
			return nil, err
		}
		ts, err := models.ParseCanonical(createdAt)
		if err != nil {
			return nil, fmt.Errorf("backup %d of %s: %w", b.ID, b.TargetID, err)
		}
		b.CreatedAt = models.NewTimestamp(ts)
		backups = append(backups, b)
	}
	return backups, rows.Err()
}
