package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/dirback/internal/commands"
	"github.com/isdelr/dirback/internal/models"
	"github.com/isdelr/dirback/internal/services"
)

// TargetHandler exposes the target commands as REST resources.
type TargetHandler struct {
	dispatcher services.DispatcherProvider
}

// NewTargetHandler creates a new TargetHandler.
func NewTargetHandler(dispatcher services.DispatcherProvider) *TargetHandler {
	return &TargetHandler{dispatcher: dispatcher}
}

func (h *TargetHandler) run(w http.ResponseWriter, r *http.Request, cmd commands.Command, status int) {
	result, err := h.dispatcher.Dispatch(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, result)
}

// GetAll handles the request to list every target.
func (h *TargetHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, commands.ListTargets{}, http.StatusOK)
}

// Get handles the request to fetch one target. Absence is a 404 here.
func (h *TargetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.dispatcher.Dispatch(r.Context(), commands.GetTarget{TargetID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if t, _ := result.(*models.Target); t == nil {
		writeError(w, r, models.TargetNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Create handles the request to register a new target.
func (h *TargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body commands.RegisterTarget
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, models.InvalidInput("body"))
		return
	}
	h.run(w, r, body, http.StatusCreated)
}

// Delete handles the request to delete a target and all of its backups.
func (h *TargetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, commands.DeleteTarget{TargetID: chi.URLParam(r, "id")}, http.StatusOK)
}

// Backup handles the request to create a new backup. The body is optional.
func (h *TargetHandler) Backup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, models.InvalidInput("body"))
		return
	}
	h.run(w, r, commands.BackupTarget{TargetID: chi.URLParam(r, "id"), Note: body.Note}, http.StatusCreated)
}

// Restore handles the request to restore a backup over the target directory.
func (h *TargetHandler) Restore(w http.ResponseWriter, r *http.Request) {
	backupID, err := backupIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.run(w, r, commands.RestoreTarget{TargetID: chi.URLParam(r, "id"), BackupID: backupID}, http.StatusOK)
}

// DeleteBackup handles the request to delete one backup.
func (h *TargetHandler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	backupID, err := backupIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.run(w, r, commands.DeleteBackup{TargetID: chi.URLParam(r, "id"), BackupID: backupID}, http.StatusOK)
}

func backupIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "backupId"))
	if err != nil {
		return 0, models.InvalidInput("backup_id")
	}
	return id, nil
}
