package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/dirback/internal/models"
	"github.com/isdelr/dirback/internal/services"
)

// ScheduleHandler handles HTTP requests related to backup schedules.
type ScheduleHandler struct {
	service services.ScheduleServiceProvider
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(service services.ScheduleServiceProvider) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// scheduleRequest is the writable part of a schedule. IsActive defaults to true.
type scheduleRequest struct {
	Name           string `json:"name"`
	CronExpression string `json:"cronExpression"`
	Note           string `json:"note"`
	IsActive       *bool  `json:"isActive"`
}

func (req scheduleRequest) toModel(targetID string) models.Schedule {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return models.Schedule{
		TargetID:       targetID,
		Name:           req.Name,
		CronExpression: req.CronExpression,
		Note:           req.Note,
		IsActive:       active,
	}
}

// GetAllForTarget handles the request to get all schedules for a target.
func (h *ScheduleHandler) GetAllForTarget(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.GetSchedulesForTarget(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

// Get handles the request to fetch one schedule.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.service.GetScheduleByID(chi.URLParam(r, "scheduleId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// Create handles the request to create a new schedule.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, models.InvalidInput("body"))
		return
	}

	newSchedule, err := h.service.CreateSchedule(r.Context(), req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSchedule)
}

// Update handles the request to update an existing schedule.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, models.InvalidInput("body"))
		return
	}

	updatedSchedule, err := h.service.UpdateSchedule(chi.URLParam(r, "scheduleId"), req.toModel(""))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updatedSchedule)
}

// Delete handles the request to delete a schedule.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSchedule(chi.URLParam(r, "scheduleId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
