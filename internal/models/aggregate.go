package models

import "fmt"

// ValidateRegistration rejects empty names and paths before any state changes.
// Any non-empty string is accepted as is, whitespace included.
func ValidateRegistration(name, path string) error {
	if name == "" {
		return InvalidInput("name")
	}
	if path == "" {
		return InvalidInput("path")
	}
	return nil
}

// FindTarget returns the index of the target with the given id.
func FindTarget(targets []Target, id string) (int, bool) {
	for i := range targets {
		if targets[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// FindBackup returns the index of the backup with the given id.
func (t *Target) FindBackup(id int) (int, bool) {
	for i := range t.Backups {
		if t.Backups[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// NextBackupID is the id the next appended entry must carry.
func (t *Target) NextBackupID() int {
	return NextBackupID(append(t.BackupIDs(), t.LastBackupID))
}

// NewBackupEntry prepares, but does not append, the next entry for t.
func (t *Target) NewBackupEntry(createdAt Timestamp, note string) BackupEntry {
	return BackupEntry{
		ID:        t.NextBackupID(),
		TargetID:  t.ID,
		CreatedAt: createdAt,
		Note:      note,
	}
}

// AppendBackup adds e to the ledger. Any id other than NextBackupID, or an
// entry owned by another target, is an engine bug.
func (t *Target) AppendBackup(e BackupEntry) error {
	if e.TargetID != t.ID {
		return Internal(t.ID, fmt.Errorf("backup %d belongs to target %q", e.ID, e.TargetID))
	}
	if want := t.NextBackupID(); e.ID != want {
		return Internal(t.ID, fmt.Errorf("non-monotonic backup id %d, want %d", e.ID, want))
	}
	t.Backups = append(t.Backups, e)
	t.LastBackupID = e.ID
	return nil
}

// RemoveBackup deletes one entry and returns it. The ledger is untouched when id is unknown.
func (t *Target) RemoveBackup(id int) (BackupEntry, error) {
	i, ok := t.FindBackup(id)
	if !ok {
		return BackupEntry{}, BackupNotFound(t.ID, id)
	}
	removed := t.Backups[i]
	backups := make([]BackupEntry, 0, len(t.Backups)-1)
	backups = append(backups, t.Backups[:i]...)
	backups = append(backups, t.Backups[i+1:]...)
	t.Backups = backups
	return removed, nil
}

// RemoveTarget drops the target together with all of its backups.
func RemoveTarget(targets []Target, id string) ([]Target, Target, error) {
	i, ok := FindTarget(targets, id)
	if !ok {
		return targets, Target{}, TargetNotFound(id)
	}
	removed := targets[i]
	out := make([]Target, 0, len(targets)-1)
	out = append(out, targets[:i]...)
	out = append(out, targets[i+1:]...)
	return out, removed, nil
}
