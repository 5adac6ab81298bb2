package cmd

import (
	"database/sql"
	"fmt"

	"github.com/isdelr/dirback/internal/archive"
	"github.com/isdelr/dirback/internal/config"
	"github.com/isdelr/dirback/internal/database"
	"github.com/isdelr/dirback/internal/services"
	"github.com/rs/zerolog/log"
)

// app holds the wired services shared by serve and the one-shot commands.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	events     *services.EventService
	schedules  *services.ScheduleService
	dispatcher *services.Dispatcher
}

func openApp(cfg *config.Config) (*app, error) {
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	engine, err := newEngine(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	events := services.NewEventService(db)
	dispatcher := services.NewDispatcher(engine, events)
	schedules := services.NewScheduleService(db, dispatcher, events)

	return &app{
		cfg:        cfg,
		db:         db,
		events:     events,
		schedules:  schedules,
		dispatcher: dispatcher,
	}, nil
}

// newEngine picks the engine variant once for the whole process.
func newEngine(cfg *config.Config, db *sql.DB) (services.BackupEngine, error) {
	switch cfg.EngineMode {
	case config.EngineSimulated:
		log.Info().Int64("seed", cfg.SimulatedSeed).Msg("Using simulated engine")
		return services.NewSimulatedEngine(cfg.SimulatedSeed), nil
	case config.EngineLive:
		log.Info().Str("store_dir", cfg.StoreDir).Msg("Using live engine")
		return services.NewLiveEngine(db, cfg.StoreDir, archive.New(cfg.CompressionLevel))
	}
	return nil, fmt.Errorf("unknown engine mode %q", cfg.EngineMode)
}

func (a *app) Close() error {
	return a.db.Close()
}
