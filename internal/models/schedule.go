package models

import "time"

// Schedule triggers a BackupTarget command for one target on a cron expression.
type Schedule struct {
	ID             string     `json:"id"`
	TargetID       string     `json:"targetId"`
	Name           string     `json:"name"`
	CronExpression string     `json:"cronExpression"` // e.g., "0 4 * * *" for 4 AM daily
	Note           string     `json:"note"`           // Note attached to each backup entry
	IsActive       bool       `json:"isActive"`
	LastRunAt      *time.Time `json:"lastRunAt"`
	NextRunAt      *time.Time `json:"nextRunAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}
