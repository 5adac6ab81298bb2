package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/dirback/internal/commands"
	"github.com/isdelr/dirback/internal/models"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, targetID *string, backupID *int) error
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService records command outcomes and system alerts.
type EventService struct {
	db *sql.DB
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(eventType, level, message string, targetID *string, backupID *int) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		TargetID:  targetID,
		BackupID:  backupID,
		CreatedAt: time.Now().UTC(),
	}

	stmt, err := s.db.Prepare("INSERT INTO events (id, type, level, message, target_id, backup_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(event.ID, event.Type, event.Level, event.Message, event.TargetID, event.BackupID, event.CreatedAt)
	return err
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, target_id, backup_id, created_at FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.TargetID, &event.BackupID, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CommandCompleted records mutations and failures. Reads are not audited.
func (s *EventService) CommandCompleted(ctx context.Context, cmd commands.Command, result any, err error) {
	eventType, level, message, targetID, backupID := describeOutcome(cmd, result, err)
	if eventType == "" {
		return
	}
	if err := s.CreateEvent(eventType, level, message, targetID, backupID); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("Failed to record event")
	}
}

func describeOutcome(cmd commands.Command, result any, err error) (eventType, level, message string, targetID *string, backupID *int) {
	if !commands.IsMutation(cmd) {
		return "", "", "", nil, nil
	}
	if err != nil {
		if id := targetOf(cmd); id != "" {
			targetID = &id
		}
		return "command.fail", "error", fmt.Sprintf("%s failed: %s", cmd.Type(), models.KindOf(err)), targetID, nil
	}

	switch c := cmd.(type) {
	case commands.RegisterTarget:
		t, _ := result.(models.Target)
		return "target.register", "info", fmt.Sprintf("Target '%s' registered at %s.", t.Name, t.Path), &t.ID, nil
	case commands.BackupTarget:
		t, _ := result.(models.Target)
		id := c.TargetID
		if n := len(t.Backups); n > 0 {
			last := t.Backups[n-1].ID
			return "backup.create", "info", fmt.Sprintf("Backup %d created for target '%s'.", last, t.Name), &id, &last
		}
		return "backup.create", "info", fmt.Sprintf("Backup created for target '%s'.", t.Name), &id, nil
	case commands.RestoreTarget:
		id, bid := c.TargetID, c.BackupID
		return "backup.restore", "warn", fmt.Sprintf("Backup %d restored.", bid), &id, &bid
	case commands.DeleteBackup:
		id, bid := c.TargetID, c.BackupID
		return "backup.delete", "warn", fmt.Sprintf("Backup %d deleted.", bid), &id, &bid
	case commands.DeleteTarget:
		t, _ := result.(models.Target)
		id := c.TargetID
		return "target.delete", "warn", fmt.Sprintf("Target '%s' deleted with %d backups.", t.Name, len(t.Backups)), &id, nil
	}
	return "", "", "", nil, nil
}

func targetOf(cmd commands.Command) string {
	switch c := cmd.(type) {
	case commands.GetTarget:
		return c.TargetID
	case commands.BackupTarget:
		return c.TargetID
	case commands.RestoreTarget:
		return c.TargetID
	case commands.DeleteBackup:
		return c.TargetID
	case commands.DeleteTarget:
		return c.TargetID
	}
	return ""
}
