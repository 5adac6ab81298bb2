package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/dirback/internal/models"
	"github.com/robfig/cron/v3"
)

// ScheduleServiceProvider defines the interface for schedule services.
type ScheduleServiceProvider interface {
	CreateSchedule(ctx context.Context, schedule models.Schedule) (models.Schedule, error)
	GetSchedulesForTarget(targetID string) ([]models.Schedule, error)
	GetScheduleByID(scheduleID string) (models.Schedule, error)
	GetAllActiveSchedules() ([]models.Schedule, error)
	UpdateSchedule(scheduleID string, schedule models.Schedule) (models.Schedule, error)
	DeleteSchedule(scheduleID string) error
	DeactivateSchedule(scheduleID string) error
	UpdateScheduleRunTimes(scheduleID string, lastRun time.Time, nextRun time.Time) error
}

// TargetLookup resolves a target id; nil means the target does not exist.
type TargetLookup interface {
	GetTarget(ctx context.Context, targetID string) (*models.Target, error)
}

// ScheduleService provides business logic for backup schedules.
type ScheduleService struct {
	db           *sql.DB
	targets      TargetLookup
	eventService EventServiceProvider
	now          func() time.Time
}

// NewScheduleService creates a new ScheduleService.
func NewScheduleService(db *sql.DB, targets TargetLookup, eventService EventServiceProvider) *ScheduleService {
	return &ScheduleService{
		db:           db,
		targets:      targets,
		eventService: eventService,
		now:          time.Now,
	}
}

// validateCronExpression checks if a cron expression is valid.
func (s *ScheduleService) validateCronExpression(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, &models.Error{Kind: models.KindInvalidInput, Field: "cronExpression", Err: err}
	}
	return sched, nil
}

func validateSchedule(schedule models.Schedule) error {
	if strings.TrimSpace(schedule.Name) == "" {
		return models.InvalidInput("name")
	}
	return nil
}

// CreateSchedule creates a new schedule for an existing target.
func (s *ScheduleService) CreateSchedule(ctx context.Context, schedule models.Schedule) (models.Schedule, error) {
	if err := validateSchedule(schedule); err != nil {
		return models.Schedule{}, err
	}
	cronSchedule, err := s.validateCronExpression(schedule.CronExpression)
	if err != nil {
		return models.Schedule{}, err
	}
	target, err := s.targets.GetTarget(ctx, schedule.TargetID)
	if err != nil {
		return models.Schedule{}, err
	}
	if target == nil {
		return models.Schedule{}, models.TargetNotFound(schedule.TargetID)
	}

	schedule.ID = uuid.New().String()
	nextRun := cronSchedule.Next(s.now()).UTC()
	schedule.NextRunAt = &nextRun
	schedule.CreatedAt = s.now().UTC()

	stmt, err := s.db.Prepare(`
		INSERT INTO schedules (id, target_id, name, cron_expression, note, is_active, next_run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return models.Schedule{}, err
	}
	defer stmt.Close()

	_, err = stmt.Exec(schedule.ID, schedule.TargetID, schedule.Name, schedule.CronExpression, schedule.Note, schedule.IsActive, schedule.NextRunAt, schedule.CreatedAt)
	if err != nil {
		return models.Schedule{}, err
	}

	s.eventService.CreateEvent("schedule.create", "info", fmt.Sprintf("Schedule '%s' created for target '%s'.", schedule.Name, target.Name), &schedule.TargetID, nil)
	return s.GetScheduleByID(schedule.ID)
}

const scheduleColumns = "id, target_id, name, cron_expression, note, is_active, last_run_at, next_run_at, created_at"

// GetSchedulesForTarget retrieves all schedules for a specific target.
func (s *ScheduleService) GetSchedulesForTarget(targetID string) ([]models.Schedule, error) {
	rows, err := s.db.Query(`SELECT `+scheduleColumns+` FROM schedules WHERE target_id = ? ORDER BY created_at DESC`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanSchedules(rows)
}

// GetScheduleByID retrieves a single schedule by its ID.
func (s *ScheduleService) GetScheduleByID(scheduleID string) (models.Schedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, scheduleID)
	return s.scanSchedule(row)
}

// GetAllActiveSchedules retrieves all active schedules from the database.
func (s *ScheduleService) GetAllActiveSchedules() ([]models.Schedule, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleColumns + ` FROM schedules WHERE is_active = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanSchedules(rows)
}

// UpdateSchedule updates an existing schedule. Its target cannot change.
func (s *ScheduleService) UpdateSchedule(scheduleID string, schedule models.Schedule) (models.Schedule, error) {
	if err := validateSchedule(schedule); err != nil {
		return models.Schedule{}, err
	}
	cronSchedule, err := s.validateCronExpression(schedule.CronExpression)
	if err != nil {
		return models.Schedule{}, err
	}

	existing, err := s.GetScheduleByID(scheduleID)
	if err != nil {
		return models.Schedule{}, err
	}

	nextRun := cronSchedule.Next(s.now()).UTC()
	schedule.NextRunAt = &nextRun

	stmt, err := s.db.Prepare(`
		UPDATE schedules
		SET name = ?, cron_expression = ?, note = ?, is_active = ?, next_run_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return models.Schedule{}, err
	}
	defer stmt.Close()

	_, err = stmt.Exec(schedule.Name, schedule.CronExpression, schedule.Note, schedule.IsActive, schedule.NextRunAt, scheduleID)
	if err != nil {
		return models.Schedule{}, err
	}

	s.eventService.CreateEvent("schedule.update", "info", fmt.Sprintf("Schedule '%s' updated.", schedule.Name), &existing.TargetID, nil)
	return s.GetScheduleByID(scheduleID)
}

// DeleteSchedule removes a schedule from the database.
func (s *ScheduleService) DeleteSchedule(scheduleID string) error {
	schedule, err := s.GetScheduleByID(scheduleID)
	if err != nil {
		return fmt.Errorf("could not find schedule to delete: %w", err)
	}

	_, err = s.db.Exec("DELETE FROM schedules WHERE id = ?", scheduleID)
	if err == nil {
		s.eventService.CreateEvent("schedule.delete", "warn", fmt.Sprintf("Schedule '%s' was deleted.", schedule.Name), &schedule.TargetID, nil)
	}
	return err
}

// DeactivateSchedule stops a schedule from firing without deleting it.
func (s *ScheduleService) DeactivateSchedule(scheduleID string) error {
	_, err := s.db.Exec("UPDATE schedules SET is_active = FALSE WHERE id = ?", scheduleID)
	return err
}

// UpdateScheduleRunTimes updates the last and next run times for a schedule after it executes.
func (s *ScheduleService) UpdateScheduleRunTimes(scheduleID string, lastRun time.Time, nextRun time.Time) error {
	_, err := s.db.Exec("UPDATE schedules SET last_run_at = ?, next_run_at = ? WHERE id = ?", lastRun.UTC(), nextRun.UTC(), scheduleID)
	return err
}

// scanSchedules is a helper function to scan multiple rows into a slice of Schedules.
func (s *ScheduleService) scanSchedules(rows *sql.Rows) ([]models.Schedule, error) {
	schedules := []models.Schedule{}
	for rows.Next() {
		schedule, err := s.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// scanSchedule is a helper function to scan a single row into a Schedule struct.
func (s *ScheduleService) scanSchedule(scanner interface{ Scan(...any) error }) (models.Schedule, error) {
	var schedule models.Schedule
	err := scanner.Scan(
		&schedule.ID,
		&schedule.TargetID,
		&schedule.Name,
		&schedule.CronExpression,
		&schedule.Note,
		&schedule.IsActive,
		&schedule.LastRunAt,
		&schedule.NextRunAt,
		&schedule.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Schedule{}, &models.Error{Kind: models.KindNotFound, Err: errors.New("schedule not found")}
		}
		return models.Schedule{}, err
	}
	return schedule, nil
}
