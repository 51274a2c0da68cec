package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// EventService is the medication event surface used by EventHandler
type EventService interface {
	Create(ctx context.Context, actor audit.Actor, ev *model.MedicationEvent) error
	Update(ctx context.Context, actor audit.Actor, eventID string, patch service.EventPatch) (*model.MedicationEvent, error)
	Delete(ctx context.Context, actor audit.Actor, eventID string) error
	List(ctx context.Context, filter repository.EventFilter) ([]model.MedicationEvent, error)
}

// CreateEventRequest is the body of POST /api/v1/events
type CreateEventRequest struct {
	PatientID              string     `json:"patient_id" binding:"required"`
	MedicationAssignmentID string     `json:"medication_assignment_id" binding:"required"`
	ScheduledTime          time.Time  `json:"scheduled_time" binding:"required"`
	Status                 string     `json:"status" binding:"required,oneof=taken skipped missed"`
	ActualTime             *time.Time `json:"actual_time"`
	Notes                  *string    `json:"notes" binding:"omitempty,max=1000"`
}

// UpdateEventRequest is the body of PATCH /api/v1/events/:id
type UpdateEventRequest struct {
	Status     *string    `json:"status" binding:"omitempty,oneof=taken skipped missed"`
	ActualTime *time.Time `json:"actual_time"`
	Notes      *string    `json:"notes" binding:"omitempty,max=1000"`
}

// EventHandler implements medication event API endpoints
type EventHandler struct {
	service EventService
	logger  *zap.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(service EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

// PostApiV1Events logs a dose by hand
func (h *EventHandler) PostApiV1Events(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	ev := &model.MedicationEvent{
		PatientID:              req.PatientID,
		MedicationAssignmentID: req.MedicationAssignmentID,
		ScheduledTime:          req.ScheduledTime,
		Status:                 model.EventStatus(req.Status),
		ActualTime:             req.ActualTime,
		Notes:                  req.Notes,
	}

	if err := h.service.Create(c.Request.Context(), actorFrom(c), ev); err != nil {
		respondError(c, h.logger, "log medication event", err,
			zap.String("patient_id", req.PatientID),
			zap.String("medication_assignment_id", req.MedicationAssignmentID),
		)
		return
	}

	c.JSON(http.StatusCreated, ev)
}

// PatchApiV1EventsId corrects a logged dose
func (h *EventHandler) PatchApiV1EventsId(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "update medication event", err)
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	patch := service.EventPatch{
		ActualTime: req.ActualTime,
		Notes:      req.Notes,
	}
	if req.Status != nil {
		status := model.EventStatus(*req.Status)
		patch.Status = &status
	}

	ev, err := h.service.Update(c.Request.Context(), actorFrom(c), id, patch)
	if err != nil {
		respondError(c, h.logger, "update medication event", err, zap.String("event_id", id))
		return
	}
	c.JSON(http.StatusOK, ev)
}

// DeleteApiV1EventsId deletes a logged dose
func (h *EventHandler) DeleteApiV1EventsId(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "delete medication event", err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, h.logger, "delete medication event", err, zap.String("event_id", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Medication event deleted successfully",
	})
}

// GetApiV1Events lists the logged doses of a patient
func (h *EventHandler) GetApiV1Events(c *gin.Context) {
	filter := repository.EventFilter{
		PatientID:              c.Query("patient_id"),
		MedicationAssignmentID: optionalString(c.Query("medication_assignment_id")),
	}

	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		respondError(c, h.logger, "list medication events", err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		respondError(c, h.logger, "list medication events", err)
		return
	}

	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "list medication events", err, zap.String("patient_id", filter.PatientID))
		return
	}
	if events == nil {
		events = []model.MedicationEvent{}
	}
	c.JSON(http.StatusOK, events)
}
