package models

import (
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

const (
	TargetsDirName = "targets"
	BackupsDirName = "backups"
	ArchiveExt     = ".tar.gz"
)

// NextBackupID returns max(existing)+1, or 1 when existing is empty.
func NextBackupID(existing []int) int {
	highest := 0
	for _, id := range existing {
		if id > highest {
			highest = id
		}
	}
	return highest + 1
}

// DeriveArchivePath builds targets/{target_id}/backups/{id:04d}_{YYYYMMDDThhmmssZ}.tar.gz.
// The result is relative to the engine's storage root and always uses forward slashes.
func DeriveArchivePath(targetID string, backupID int, createdAt time.Time) string {
	if backupID <= 0 {
		panic(fmt.Sprintf("models: archive path requested for non-positive backup id %d", backupID))
	}
	return path.Join(BackupDir(targetID), ArchiveFileName(backupID, createdAt))
}

// ArchiveFileName returns the file name component of an archive path.
func ArchiveFileName(backupID int, createdAt time.Time) string {
	return fmt.Sprintf("%04d_%s%s", backupID, FormatCompact(createdAt), ArchiveExt)
}

// TargetDir returns targets/{target_id}.
func TargetDir(targetID string) string {
	return path.Join(TargetsDirName, targetID)
}

// BackupDir returns targets/{target_id}/backups.
func BackupDir(targetID string) string {
	return path.Join(TargetsDirName, targetID, BackupsDirName)
}

// NewTargetID returns a random 128-bit identifier rendered as a UUID.
func NewTargetID() string {
	return uuid.NewString()
}
