package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/practice-scheduling/internal/scheduling"
	"github.com/hackgods/practice-scheduling/internal/telephony"
)

type RouterConfig struct {
	Service   *scheduling.Service
	Telephony *telephony.Functions
	Clock     scheduling.Clock
	Logger    zerolog.Logger
	PgPool    *pgxpool.Pool // nil with the memory backend
	Redis     *redis.Client // nil when locking is disabled
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	svc := cfg.Service
	r.Route("/practices/{practiceID}", func(r chi.Router) {
		r.Use(PracticeMiddleware)

		r.Post("/patients", createPatientHandler(svc))
		r.Get("/patients/{patientID}", getPatientHandler(svc))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(svc))
			r.Get("/", listAppointmentsHandler(svc))
			r.Get("/conflicts", checkConflictHandler(svc))
			r.Get("/{appointmentID}", getAppointmentHandler(svc))
			r.Patch("/{appointmentID}", updateAppointmentHandler(svc))
			r.Delete("/{appointmentID}", deleteAppointmentHandler(svc))
			r.Post("/{appointmentID}/status", changeStatusHandler(svc))
		})

		r.Route("/recurring-rules", func(r chi.Router) {
			r.Post("/", createRuleHandler(svc))
			r.Get("/", listRulesHandler(svc))
			r.Get("/{ruleID}", getRuleHandler(svc))
			r.Patch("/{ruleID}", setRuleActiveHandler(svc))
			r.Delete("/{ruleID}", deleteRuleHandler(svc))
			r.Get("/{ruleID}/occurrences", previewOccurrencesHandler(svc))
			r.Post("/{ruleID}/materialize", materializeRuleHandler(svc))
		})

		r.Get("/business-hours", getBusinessHoursHandler(svc))
		r.Put("/business-hours", putBusinessHoursHandler(svc))
		r.Get("/business-hours/status", businessHoursStatusHandler(svc, cfg.Clock))

		r.Route("/telephony", func(r chi.Router) {
			r.Post("/book_appointment", bookAppointmentFunctionHandler(cfg.Telephony))
			r.Post("/transfer_call", transferCallFunctionHandler(cfg.Telephony))
			r.Post("/functions", invokeFunctionHandler(cfg.Telephony))
		})
	})

	return r
}
