package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/dirback/internal/api/handlers"
	"github.com/isdelr/dirback/internal/auth"
	"github.com/isdelr/dirback/internal/services"
	"github.com/isdelr/dirback/internal/websocket"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Dispatcher     services.DispatcherProvider
	Events         services.EventServiceProvider
	Schedules      services.ScheduleServiceProvider
	Storage        handlers.StorageReporter
	Hub            *websocket.Hub
	Auth           *auth.Authenticator
	AllowedOrigins []string
	EngineMode     string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	targetHandler := handlers.NewTargetHandler(deps.Dispatcher)
	commandHandler := handlers.NewCommandHandler(deps.Dispatcher)
	eventHandler := handlers.NewEventHandler(deps.Events)
	scheduleHandler := handlers.NewScheduleHandler(deps.Schedules)
	systemHandler := handlers.NewSystemHandler(deps.Storage, deps.EngineMode)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.Dispatcher)

	authenticator := deps.Auth
	if authenticator == nil {
		authenticator = auth.New("")
	}

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticator.Middleware())

		// WebSocket connection endpoint
		r.Get("/ws", wsHandler.Serve)

		// Raw command envelopes
		r.Post("/commands", commandHandler.Execute)

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", targetHandler.GetAll)
			r.Post("/", targetHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", targetHandler.Get)
				r.Delete("/", targetHandler.Delete)
				r.Post("/backups", targetHandler.Backup)
				r.Delete("/backups/{backupId}", targetHandler.DeleteBackup)
				r.Post("/backups/{backupId}/restore", targetHandler.Restore)
				r.Get("/schedules", scheduleHandler.GetAllForTarget)
				r.Post("/schedules", scheduleHandler.Create)
			})
		})

		r.Route("/schedules/{scheduleId}", func(r chi.Router) {
			r.Get("/", scheduleHandler.Get)
			r.Put("/", scheduleHandler.Update)
			r.Delete("/", scheduleHandler.Delete)
		})

		r.Get("/events", eventHandler.GetRecent)

		r.Route("/system", func(r chi.Router) {
			r.Get("/info", systemHandler.Info)
			r.Get("/storage", systemHandler.Storage)
		})
	})

	return r
}
