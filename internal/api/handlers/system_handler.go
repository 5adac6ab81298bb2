package handlers

import (
	"net/http"

	"github.com/isdelr/dirback/internal/models"
)

// StorageReporter reports disk usage of the archive store.
type StorageReporter interface {
	Stats() (models.StorageStats, error)
}

// SystemHandler serves host-level information.
type SystemHandler struct {
	storage StorageReporter
	engine  string
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(storage StorageReporter, engine string) *SystemHandler {
	return &SystemHandler{storage: storage, engine: engine}
}

// Storage handles the request for archive store disk usage.
func (h *SystemHandler) Storage(w http.ResponseWriter, r *http.Request) {
	stats, err := h.storage.Stats()
	if err != nil {
		writeError(w, r, models.Internal("", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Info handles the request for the running engine mode.
func (h *SystemHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"engine": h.engine})
}
