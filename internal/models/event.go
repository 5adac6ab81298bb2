package models

import "time"

// Event represents an audited command outcome or a system alert.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "backup.create", "system.storage"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	TargetID  *string   `json:"targetId,omitempty"` // Nullable for system-wide events
	BackupID  *int      `json:"backupId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// StorageStats describes disk usage of the archive store.
type StorageStats struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}
