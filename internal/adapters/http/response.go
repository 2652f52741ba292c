package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/allmeidain/adcombo-postback-notifier/internal/contracts"
	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{
		Status: "success",
		Data:   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// writeText answers postback callers, which expect a short plain-text body.
func writeText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAPIKey):
		return http.StatusForbidden, "Invalid API key"
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return http.StatusInternalServerError, "Ledger unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
