package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/core/chat"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("handlers: encode response: %v", err)
	}
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEmbedding), errors.Is(err, core.ErrTransport), errors.Is(err, core.ErrToolArgument):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrQueueUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, chat.ErrUnknownSummaryFormat):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Errorf("handlers: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
