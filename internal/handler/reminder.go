package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ReminderService is the reminder surface used by ReminderHandler and WebhookHandler
type ReminderService interface {
	Get(ctx context.Context, reminderID string) (*model.Reminder, error)
	List(ctx context.Context, filter repository.ReminderFilter) ([]model.Reminder, error)
	Cancel(ctx context.Context, actor audit.Actor, reminderID string) (*model.Reminder, error)
	Deliveries(ctx context.Context, reminderID string) ([]model.DeliveryEvent, error)
	ApplyDeliveryStatus(ctx context.Context, providerMessageID, providerStatus, errorCode string) (*model.Reminder, error)
}

// ReminderHandler implements reminder API endpoints
type ReminderHandler struct {
	service ReminderService
	logger  *zap.Logger
}

// NewReminderHandler creates a new ReminderHandler
func NewReminderHandler(service ReminderService, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{
		service: service,
		logger:  logger,
	}
}

// GetApiV1Reminders lists the reminders of a patient
func (h *ReminderHandler) GetApiV1Reminders(c *gin.Context) {
	filter := repository.ReminderFilter{PatientID: c.Query("patient_id")}

	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseReminderStatus(raw)
		if err != nil {
			respondError(c, h.logger, "list reminders", apperror.Validation("%s", err.Error()))
			return
		}
		filter.Status = &status
	}

	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		respondError(c, h.logger, "list reminders", err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		respondError(c, h.logger, "list reminders", err)
		return
	}
	if filter.Limit, err = queryInt(c, "limit", 0); err != nil {
		respondError(c, h.logger, "list reminders", err)
		return
	}

	reminders, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "list reminders", err, zap.String("patient_id", filter.PatientID))
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	c.JSON(http.StatusOK, reminders)
}

// GetApiV1RemindersId retrieves one reminder
func (h *ReminderHandler) GetApiV1RemindersId(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "get reminder", err)
		return
	}

	reminder, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get reminder", err, zap.String("reminder_id", id))
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// PostApiV1RemindersIdCancel cancels a pending reminder
func (h *ReminderHandler) PostApiV1RemindersIdCancel(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "cancel reminder", err)
		return
	}

	reminder, err := h.service.Cancel(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, h.logger, "cancel reminder", err, zap.String("reminder_id", id))
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// GetApiV1RemindersIdDeliveries lists the delivery events of a reminder
func (h *ReminderHandler) GetApiV1RemindersIdDeliveries(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "list deliveries", err)
		return
	}

	events, err := h.service.Deliveries(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "list deliveries", err, zap.String("reminder_id", id))
		return
	}
	if events == nil {
		events = []model.DeliveryEvent{}
	}
	c.JSON(http.StatusOK, events)
}
