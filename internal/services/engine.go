package services

import (
	"context"

	"github.com/isdelr/dirback/internal/archive"
	"github.com/isdelr/dirback/internal/models"
)

// BackupEngine executes the seven target commands against one backing store.
// Every returned value is a copy; mutating it never changes engine state.
type BackupEngine interface {
	ListTargets(ctx context.Context) ([]models.Target, error)
	// GetTarget returns nil, nil when no target has the id.
	GetTarget(ctx context.Context, targetID string) (*models.Target, error)
	RegisterTarget(ctx context.Context, name, path string) (models.Target, error)
	BackupTarget(ctx context.Context, targetID, note string) (models.Target, error)
	RestoreTarget(ctx context.Context, targetID string, backupID int) (models.Target, error)
	DeleteBackup(ctx context.Context, targetID string, backupID int) (models.BackupEntry, error)
	DeleteTarget(ctx context.Context, targetID string) (models.Target, error)
}

// Archiver produces and reads the archive files behind backup entries.
type Archiver interface {
	Archive(ctx context.Context, src, dest string, exclude ...string) (archive.Result, error)
	Verify(archivePath, checksum string) error
	Extract(ctx context.Context, archivePath, destDir string) error
}

var (
	_ BackupEngine = (*LiveEngine)(nil)
	_ BackupEngine = (*SimulatedEngine)(nil)
	_ Archiver     = (*archive.TarGz)(nil)
)
