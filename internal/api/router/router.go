// Package router assembles the HTTP surface of the crisis platform.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/haven-crisis-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/haven-crisis-platform/internal/http/middleware"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger      *logging.Logger
	Messages    *handlers.MessageHandler
	Channels    *handlers.ChannelHandler
	Protocols   *handlers.ProtocolHandler
	Safety      *handlers.SafetyHandler
	Escalations *handlers.EscalationHandler
	Security    *handlers.SecurityHandler
	Responders  *handlers.ResponderHandler

	// OperatorAuthSecret signs the operator console JWTs. Empty disables
	// the whole /admin surface.
	OperatorAuthSecret string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// MessageRate bounds inbound message traffic per IP. Zero disables.
	MessageRate  float64
	MessageBurst int
}

// New creates a new chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// User-facing message and channel surface
	r.Route("/v1", func(v1 chi.Router) {
		if cfg.MessageRate > 0 {
			v1.Use(httpmiddleware.RateLimit(cfg.MessageRate, cfg.MessageBurst))
		}
		if cfg.Messages != nil {
			v1.Post("/messages", cfg.Messages.HandleMessage)
		}
		if cfg.Channels != nil {
			v1.Route("/channels/{channelID}", func(ch chi.Router) {
				ch.Post("/messages", cfg.Channels.SendMessage)
				ch.Get("/transcript", cfg.Channels.Transcript)
				ch.Post("/end", cfg.Channels.End)
			})
		}
	})

	// Operator console (JWT protected)
	if cfg.OperatorAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.OperatorJWT(cfg.OperatorAuthSecret))

			if cfg.Escalations != nil {
				admin.Get("/escalations", cfg.Escalations.List)
				admin.Get("/escalations/{escalationID}", cfg.Escalations.Get)
				admin.Post("/escalations/{escalationID}/resolve", cfg.Escalations.Resolve)
			}
			if cfg.Safety != nil {
				admin.Get("/safety/stats", cfg.Safety.Stats)
				admin.Get("/alerts", cfg.Safety.ListAlerts)
				admin.Post("/alerts/{alertID}/ack", cfg.Safety.Acknowledge)
				admin.Post("/alerts/{alertID}/resolve", cfg.Safety.ResolveAlert)
			}
			if cfg.Protocols != nil {
				admin.Get("/protocols", cfg.Protocols.List)
				admin.Get("/protocols/{protocolID}", cfg.Protocols.Get)
			}
			if cfg.Responders != nil {
				admin.Get("/professionals", cfg.Responders.List)
				admin.Patch("/professionals/{professionalID}/availability", cfg.Responders.UpdateAvailability)
			}

			// Supervisor-only operations
			admin.Group(func(supervisor chi.Router) {
				supervisor.Use(httpmiddleware.RequireRole(httpmiddleware.RoleSupervisor))
				if cfg.Protocols != nil {
					supervisor.Put("/protocols", cfg.Protocols.Upsert)
				}
				if cfg.Responders != nil {
					supervisor.Put("/professionals", cfg.Responders.Upsert)
				}
				if cfg.Security != nil {
					supervisor.Post("/keys/rotate", cfg.Security.RotateKeys)
					supervisor.Post("/channels/{channelID}/emergency-access", cfg.Security.EmergencyAccess)
					supervisor.Get("/audit", cfg.Security.QueryAudit)
				}
			})
		})
	}

	return r
}
