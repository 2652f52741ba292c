package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/allmeidain/adcombo-postback-notifier/internal/application"
	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
	"github.com/allmeidain/adcombo-postback-notifier/internal/ports"
)

type Handler struct {
	service *application.Service
	logger  *slog.Logger
	metrics ports.MetricsRecorder
	// metricsHandler is nil when metrics are not exported.
	metricsHandler http.Handler
}

type HandlerOption func(*Handler)

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records request metrics on recorder and, when exposition is
// non-nil, serves it on /metrics.
func WithMetrics(recorder ports.MetricsRecorder, exposition http.Handler) HandlerOption {
	return func(h *Handler) {
		if recorder != nil {
			h.metrics = recorder
		}
		h.metricsHandler = exposition
	}
}

func NewHandler(service *application.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		logger:  slog.Default(),
		metrics: nopRequestMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("module", "http")
	return h
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger, handler.metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeText(w, http.StatusNotFound, "Not found") })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/ping", handler.ping)
	r.Get("/postback", handler.postback)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok") })
	r.Get("/readyz", handler.readyz)
	if handler.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", handler.metricsHandler)
	}
	return r
}

type nopRequestMetrics struct{}

func (nopRequestMetrics) ObservePostback(domain.OutcomeKind)                {}
func (nopRequestMetrics) ObserveDispatch(domain.DispatchResult)             {}
func (nopRequestMetrics) ObserveRevenue(string, float64)                    {}
func (nopRequestMetrics) ObserveRequest(string, string, int, time.Duration) {}
