package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ScheduleService is the schedule store surface used by ScheduleHandler
type ScheduleService interface {
	Create(ctx context.Context, actor audit.Actor, schedule *model.ReminderSchedule) error
	Get(ctx context.Context, scheduleID string) (*model.ReminderSchedule, error)
	ListByPatient(ctx context.Context, patientID string) ([]model.ReminderSchedule, error)
	Update(ctx context.Context, actor audit.Actor, scheduleID string, patch service.SchedulePatch) (*model.ReminderSchedule, error)
	Activate(ctx context.Context, actor audit.Actor, scheduleID string) (*model.ReminderSchedule, error)
	Deactivate(ctx context.Context, actor audit.Actor, scheduleID string) (*model.ReminderSchedule, error)
	Delete(ctx context.Context, actor audit.Actor, scheduleID string) (int64, error)
	Generate(ctx context.Context, scheduleID string, days int) ([]model.Reminder, error)
}

// QuietHoursBody is a quiet hours window in a request
type QuietHoursBody struct {
	Start string `json:"start" binding:"required,clock"`
	End   string `json:"end" binding:"required,clock"`
}

// CreateScheduleRequest is the body of POST /api/v1/schedules
type CreateScheduleRequest struct {
	PatientID              string          `json:"patient_id"`
	MedicationAssignmentID string          `json:"medication_assignment_id" binding:"required"`
	Frequency              string          `json:"frequency" binding:"required,oneof=once daily twice_daily three_times_daily custom"`
	ReminderTimes          []string        `json:"reminder_times" binding:"required,min=1,dive,clock"`
	AdvanceMinutes         int             `json:"advance_minutes" binding:"min=0"`
	Channels               []string        `json:"channels" binding:"required,min=1,dive,channel"`
	AutoSkipIfTaken        bool            `json:"auto_skip_if_taken"`
	EscalateIfMissed       bool            `json:"escalate_if_missed"`
	EscalateDelayMinutes   int             `json:"escalate_delay_minutes" binding:"min=0"`
	QuietHours             *QuietHoursBody `json:"quiet_hours"`
	StartDate              *types.Date     `json:"start_date"`
	EndDate                *types.Date     `json:"end_date"`
}

// UpdateScheduleRequest is the body of PATCH /api/v1/schedules/:id. Absent fields are left unchanged.
type UpdateScheduleRequest struct {
	Frequency            *string         `json:"frequency" binding:"omitempty,oneof=once daily twice_daily three_times_daily custom"`
	ReminderTimes        []string        `json:"reminder_times" binding:"omitempty,min=1,dive,clock"`
	AdvanceMinutes       *int            `json:"advance_minutes" binding:"omitempty,min=0"`
	Channels             []string        `json:"channels" binding:"omitempty,min=1,dive,channel"`
	AutoSkipIfTaken      *bool           `json:"auto_skip_if_taken"`
	EscalateIfMissed     *bool           `json:"escalate_if_missed"`
	EscalateDelayMinutes *int            `json:"escalate_delay_minutes" binding:"omitempty,min=0"`
	QuietHours           *QuietHoursBody `json:"quiet_hours"`
	ClearQuietHours      bool            `json:"clear_quiet_hours"`
	StartDate            *types.Date     `json:"start_date"`
	EndDate              *types.Date     `json:"end_date"`
	ClearEndDate         bool            `json:"clear_end_date"`
}

// ScheduleResponse is the API representation of a reminder schedule
type ScheduleResponse struct {
	ID                     string            `json:"id"`
	PatientID              string            `json:"patient_id"`
	MedicationAssignmentID string            `json:"medication_assignment_id"`
	IsActive               bool              `json:"is_active"`
	Frequency              model.Frequency   `json:"frequency"`
	ReminderTimes          []string          `json:"reminder_times"`
	AdvanceMinutes         int               `json:"advance_minutes"`
	Channels               []model.Channel   `json:"channels"`
	AutoSkipIfTaken        bool              `json:"auto_skip_if_taken"`
	EscalateIfMissed       bool              `json:"escalate_if_missed"`
	EscalateDelayMinutes   int               `json:"escalate_delay_minutes"`
	QuietHours             *model.QuietHours `json:"quiet_hours,omitempty"`
	StartDate              types.Date        `json:"start_date"`
	EndDate                *types.Date       `json:"end_date,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

func toScheduleResponse(s *model.ReminderSchedule) ScheduleResponse {
	resp := ScheduleResponse{
		ID:                     s.ID,
		PatientID:              s.PatientID,
		MedicationAssignmentID: s.MedicationAssignmentID,
		IsActive:               s.IsActive,
		Frequency:              s.Frequency,
		ReminderTimes:          s.ReminderTimes,
		AdvanceMinutes:         s.AdvanceMinutes,
		Channels:               s.Channels,
		AutoSkipIfTaken:        s.AutoSkipIfTaken,
		EscalateIfMissed:       s.EscalateIfMissed,
		EscalateDelayMinutes:   s.EscalateDelayMinutes,
		QuietHours:             s.QuietHours,
		StartDate:              types.Date{Time: s.StartDate},
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
	if s.EndDate != nil {
		resp.EndDate = &types.Date{Time: *s.EndDate}
	}
	return resp
}

func toChannels(raw []string) []model.Channel {
	if raw == nil {
		return nil
	}
	channels := make([]model.Channel, len(raw))
	for i, c := range raw {
		channels[i] = model.Channel(c)
	}
	return channels
}

func toQuietHours(q *QuietHoursBody) *model.QuietHours {
	if q == nil {
		return nil
	}
	return &model.QuietHours{Start: q.Start, End: q.End}
}

// ScheduleHandler implements reminder schedule API endpoints
type ScheduleHandler struct {
	service ScheduleService
	logger  *zap.Logger
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(service ScheduleService, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		logger:  logger,
	}
}

// PostApiV1Schedules creates a reminder schedule
func (h *ScheduleHandler) PostApiV1Schedules(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	schedule := &model.ReminderSchedule{
		PatientID:              req.PatientID,
		MedicationAssignmentID: req.MedicationAssignmentID,
		Frequency:              model.Frequency(req.Frequency),
		ReminderTimes:          req.ReminderTimes,
		AdvanceMinutes:         req.AdvanceMinutes,
		Channels:               toChannels(req.Channels),
		AutoSkipIfTaken:        req.AutoSkipIfTaken,
		EscalateIfMissed:       req.EscalateIfMissed,
		EscalateDelayMinutes:   req.EscalateDelayMinutes,
		QuietHours:             toQuietHours(req.QuietHours),
		EndDate:                dateToTimePtr(req.EndDate),
	}
	if req.StartDate != nil {
		schedule.StartDate = dateToTime(*req.StartDate)
	}

	if err := h.service.Create(c.Request.Context(), actorFrom(c), schedule); err != nil {
		respondError(c, h.logger, "create schedule", err,
			zap.String("medication_assignment_id", req.MedicationAssignmentID),
		)
		return
	}

	c.JSON(http.StatusCreated, toScheduleResponse(schedule))
}

// GetApiV1Schedules lists the schedules of a patient
func (h *ScheduleHandler) GetApiV1Schedules(c *gin.Context) {
	patientID := c.Query("patient_id")

	schedules, err := h.service.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, h.logger, "list schedules", err, zap.String("patient_id", patientID))
		return
	}

	response := make([]ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		response = append(response, toScheduleResponse(&schedules[i]))
	}
	c.JSON(http.StatusOK, response)
}

// GetApiV1SchedulesId retrieves one schedule
func (h *ScheduleHandler) GetApiV1SchedulesId(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "get schedule", err)
		return
	}

	schedule, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get schedule", err, zap.String("schedule_id", id))
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(schedule))
}

// PatchApiV1SchedulesId partially updates a schedule
func (h *ScheduleHandler) PatchApiV1SchedulesId(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "update schedule", err)
		return
	}

	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	patch := service.SchedulePatch{
		ReminderTimes:        req.ReminderTimes,
		AdvanceMinutes:       req.AdvanceMinutes,
		Channels:             toChannels(req.Channels),
		AutoSkipIfTaken:      req.AutoSkipIfTaken,
		EscalateIfMissed:     req.EscalateIfMissed,
		EscalateDelayMinutes: req.EscalateDelayMinutes,
		QuietHours:           toQuietHours(req.QuietHours),
		ClearQuietHours:      req.ClearQuietHours,
		StartDate:            dateToTimePtr(req.StartDate),
		EndDate:              dateToTimePtr(req.EndDate),
		ClearEndDate:         req.ClearEndDate,
	}
	if req.Frequency != nil {
		f := model.Frequency(*req.Frequency)
		patch.Frequency = &f
	}

	schedule, err := h.service.Update(c.Request.Context(), actorFrom(c), id, patch)
	if err != nil {
		respondError(c, h.logger, "update schedule", err, zap.String("schedule_id", id))
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(schedule))
}

// PostApiV1SchedulesIdActivate turns a schedule on
func (h *ScheduleHandler) PostApiV1SchedulesIdActivate(c *gin.Context) {
	h.setActive(c, true)
}

// PostApiV1SchedulesIdDeactivate turns a schedule off
func (h *ScheduleHandler) PostApiV1SchedulesIdDeactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *ScheduleHandler) setActive(c *gin.Context, active bool) {
	action := "deactivate schedule"
	if active {
		action = "activate schedule"
	}

	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, action, err)
		return
	}

	var schedule *model.ReminderSchedule
	if active {
		schedule, err = h.service.Activate(c.Request.Context(), actorFrom(c), id)
	} else {
		schedule, err = h.service.Deactivate(c.Request.Context(), actorFrom(c), id)
	}
	if err != nil {
		respondError(c, h.logger, action, err, zap.String("schedule_id", id))
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(schedule))
}

// DeleteApiV1SchedulesId deletes a schedule and cancels its pending reminders
func (h *ScheduleHandler) DeleteApiV1SchedulesId(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "delete schedule", err)
		return
	}

	cancelled, err := h.service.Delete(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, h.logger, "delete schedule", err, zap.String("schedule_id", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":             "Schedule deleted successfully",
		"cancelled_reminders": cancelled,
	})
}

// PostApiV1SchedulesIdGenerate generates reminders for the next days
func (h *ScheduleHandler) PostApiV1SchedulesIdGenerate(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "generate reminders", err)
		return
	}
	days, err := queryInt(c, "days", 0)
	if err != nil {
		respondError(c, h.logger, "generate reminders", err)
		return
	}

	reminders, err := h.service.Generate(c.Request.Context(), id, days)
	if err != nil {
		respondError(c, h.logger, "generate reminders", err, zap.String("schedule_id", id))
		return
	}

	h.logger.Info("reminders generated on demand",
		zap.String("schedule_id", id),
		zap.Int("count", len(reminders)),
	)

	if reminders == nil {
		reminders = []model.Reminder{}
	}
	c.JSON(http.StatusOK, gin.H{
		"generated": len(reminders),
		"reminders": reminders,
	})
}
