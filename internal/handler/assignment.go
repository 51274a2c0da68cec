package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// AssignmentService keeps medication assignment snapshots in sync
type AssignmentService interface {
	Sync(ctx context.Context, actor audit.Actor, a *model.MedicationAssignment) (*service.SyncResult, error)
	Confirm(ctx context.Context, actor audit.Actor, assignmentID string) (*model.MedicationAssignment, error)
}

// AssignmentSnapshotRequest is the body of PUT /api/v1/assignments/:id
type AssignmentSnapshotRequest struct {
	PatientID      string `json:"patient_id" binding:"required"`
	MedicationName string `json:"medication_name" binding:"required"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Status         string `json:"status" binding:"omitempty,oneof=active paused stopped"`
}

// AssignmentHandler receives medication catalog snapshots
type AssignmentHandler struct {
	service AssignmentService
	logger  *zap.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler
func NewAssignmentHandler(service AssignmentService, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger,
	}
}

// PutApiV1AssignmentsId upserts an assignment snapshot
func (h *AssignmentHandler) PutApiV1AssignmentsId(c *gin.Context) {
	id := c.Param("id")

	var req AssignmentSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	result, err := h.service.Sync(c.Request.Context(), actorFrom(c), &model.MedicationAssignment{
		ID:             id,
		PatientID:      req.PatientID,
		MedicationName: req.MedicationName,
		Dosage:         req.Dosage,
		Frequency:      req.Frequency,
		Status:         model.AssignmentStatus(req.Status),
	})
	if err != nil {
		respondError(c, h.logger, "sync medication assignment", err, zap.String("medication_assignment_id", id))
		return
	}
	c.JSON(http.StatusOK, result)
}

// PostApiV1AssignmentsIdConfirm resumes a paused assignment
func (h *AssignmentHandler) PostApiV1AssignmentsIdConfirm(c *gin.Context) {
	id := c.Param("id")

	assignment, err := h.service.Confirm(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, h.logger, "confirm medication assignment", err, zap.String("medication_assignment_id", id))
		return
	}
	c.JSON(http.StatusOK, assignment)
}
