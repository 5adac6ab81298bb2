package models

import "encoding/json"

// Target is a registered backup source and the ledger of its archives.
type Target struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Path    string        `json:"path"`
	Backups []BackupEntry `json:"backups"`

	// LastBackupID is the highest backup id ever issued for this target.
	// It survives deletion of that entry so ids are never reused.
	LastBackupID int `json:"-"`
}

// BackupEntry is one point-in-time archive of a Target.
type BackupEntry struct {
	ID        int       `json:"id"`
	TargetID  string    `json:"target_id"`
	CreatedAt Timestamp `json:"created_at"`
	Note      string    `json:"note"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum,omitempty"`
}

// ArchivePath derives the entry's archive location relative to the storage root.
func (e BackupEntry) ArchivePath() string {
	return DeriveArchivePath(e.TargetID, e.ID, e.CreatedAt.Time)
}

func (e BackupEntry) MarshalJSON() ([]byte, error) {
	type entry BackupEntry
	var archivePath string
	if e.ID > 0 {
		archivePath = e.ArchivePath()
	}
	return json.Marshal(struct {
		entry
		ArchivePath string `json:"archive_path"`
	}{entry: entry(e), ArchivePath: archivePath})
}

// MarshalJSON keeps backups as an array even when the target has none.
func (t Target) MarshalJSON() ([]byte, error) {
	type target Target
	out := target(t)
	if out.Backups == nil {
		out.Backups = []BackupEntry{}
	}
	return json.Marshal(out)
}

// Clone returns a deep copy so callers never alias engine state.
func (t Target) Clone() Target {
	out := t
	if t.Backups != nil {
		out.Backups = make([]BackupEntry, len(t.Backups))
		copy(out.Backups, t.Backups)
	}
	return out
}

// BackupIDs lists the ids currently held, in ledger order.
func (t Target) BackupIDs() []int {
	ids := make([]int, len(t.Backups))
	for i, b := range t.Backups {
		ids[i] = b.ID
	}
	return ids
}

// CloneTargets deep-copies a collection.
func CloneTargets(targets []Target) []Target {
	out := make([]Target, len(targets))
	for i, t := range targets {
		out[i] = t.Clone()
	}
	return out
}
