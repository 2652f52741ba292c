package http

import (
	"net/http"

	"github.com/allmeidain/adcombo-postback-notifier/internal/application"
	"github.com/allmeidain/adcombo-postback-notifier/internal/contracts"
)

func (h *Handler) ping(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "Service is awake!")
}

func (h *Handler) postback(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.HandlePostback(r.Context(), application.PostbackInput{
		Query:     r.URL.Query(),
		RequestID: requestIDFromContext(r.Context()),
	})
	if err != nil {
		status, body := mapDomainError(err)
		writeText(w, status, body)
		return
	}
	status := http.StatusOK
	if !outcome.Succeeded() {
		status = http.StatusInternalServerError
	}
	writeText(w, status, application.Summary(outcome))
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed",
			"operation", "readyz",
			"outcome", "failure",
			"request_id", requestIDFromContext(r.Context()),
			"error", err.Error(),
		)
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "ledger unavailable")
		return
	}
	cfg := h.service.Config()
	channels := make([]string, 0, len(cfg.Channels))
	for _, c := range cfg.Channels {
		channels = append(channels, string(c))
	}
	writeSuccess(w, http.StatusOK, contracts.ReadinessResponse{
		Profile:  cfg.Profile.Name,
		Channels: channels,
		Dedup:    string(cfg.Dedup),
	})
}
