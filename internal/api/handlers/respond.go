package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/dirback/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind     models.Kind `json:"kind"`
	TargetID string      `json:"target_id,omitempty"`
	BackupID int         `json:"backup_id,omitempty"`
	Field    string      `json:"field,omitempty"`
}

// StatusFor maps a failure kind to its HTTP status.
func StatusFor(kind models.Kind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidInput:
		return http.StatusBadRequest
	case models.KindArchiveUnavailable:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Kind: models.KindOf(err)}
	var typed *models.Error
	if errors.As(err, &typed) {
		resp.TargetID = typed.TargetID
		resp.BackupID = typed.BackupID
		resp.Field = typed.Field
	}
	status := StatusFor(resp.Kind)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("request_id", middleware.GetReqID(r.Context())).Str("kind", string(resp.Kind)).Msg("Request failed")

	writeJSON(w, status, resp)
}
