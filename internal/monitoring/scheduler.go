package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/isdelr/dirback/internal/models"
	"github.com/isdelr/dirback/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// BackupRunner is the part of the dispatcher the scheduler needs.
type BackupRunner interface {
	BackupTarget(ctx context.Context, targetID, note string) (models.Target, error)
}

// Scheduler checks for due backup schedules and runs them.
type Scheduler struct {
	scheduleSvc services.ScheduleServiceProvider
	runner      BackupRunner
	eventSvc    services.EventServiceProvider
	ticker      *time.Ticker
	done        chan bool
	wg          sync.WaitGroup
	now         func() time.Time
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(scheduleSvc services.ScheduleServiceProvider, runner BackupRunner, eventSvc services.EventServiceProvider) *Scheduler {
	return &Scheduler{
		scheduleSvc: scheduleSvc,
		runner:      runner,
		eventSvc:    eventSvc,
		done:        make(chan bool),
		now:         time.Now,
	}
}

// Run starts the scheduler's ticking loop.
func (s *Scheduler) Run() {
	log.Info().Msg("Starting background scheduler...")
	s.ticker = time.NewTicker(1 * time.Minute)
	defer s.ticker.Stop()

	// Run once immediately on start
	s.checkAndRunSchedules()

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping background scheduler.")
			s.wg.Wait()
			return
		case <-s.ticker.C:
			s.checkAndRunSchedules()
		}
	}
}

// Stop halts the scheduler and waits for running backups to finish.
func (s *Scheduler) Stop() {
	s.done <- true
}

// checkAndRunSchedules queries for due schedules and executes them.
func (s *Scheduler) checkAndRunSchedules() {
	schedules, err := s.scheduleSvc.GetAllActiveSchedules()
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to retrieve active schedules")
		return
	}

	for _, schedule := range schedules {
		cronSchedule, err := cron.ParseStandard(schedule.CronExpression)
		if err != nil {
			log.Warn().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: Invalid cron expression")
			continue
		}

		now := s.now()
		// If NextRunAt is in the past, it's time to run
		if schedule.NextRunAt != nil && now.After(*schedule.NextRunAt) {
			s.wg.Add(1)
			go func(schedule models.Schedule) {
				defer s.wg.Done()
				s.executeTask(schedule)
			}(schedule)

			if err := s.scheduleSvc.UpdateScheduleRunTimes(schedule.ID, now, cronSchedule.Next(now)); err != nil {
				log.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: Failed to update run times")
			}
		}
	}
}

// executeTask dispatches a BackupTarget for the schedule's target.
func (s *Scheduler) executeTask(schedule models.Schedule) {
	log.Info().Str("schedule", schedule.Name).Str("target_id", schedule.TargetID).Msg("Scheduler: Running scheduled backup")

	note := schedule.Note
	if note == "" {
		note = fmt.Sprintf("Scheduled: %s", schedule.Name)
	}
	target, err := s.runner.BackupTarget(context.Background(), schedule.TargetID, note)

	if err != nil {
		log.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: Scheduled backup failed")
		if errors.Is(err, models.ErrNotFound) {
			// The target is gone; the schedule can never succeed again.
			if derr := s.scheduleSvc.DeactivateSchedule(schedule.ID); derr != nil {
				log.Error().Err(derr).Str("schedule_id", schedule.ID).Msg("Scheduler: Failed to deactivate schedule")
			}
		}
		msg := fmt.Sprintf("Scheduled backup '%s' failed: %s", schedule.Name, models.KindOf(err))
		s.eventSvc.CreateEvent("schedule.execute.fail", "error", msg, &schedule.TargetID, nil)
		return
	}

	var backupID *int
	if n := len(target.Backups); n > 0 {
		id := target.Backups[n-1].ID
		backupID = &id
	}
	msg := fmt.Sprintf("Scheduled backup '%s' executed successfully.", schedule.Name)
	s.eventSvc.CreateEvent("schedule.execute.success", "info", msg, &schedule.TargetID, backupID)
}
