package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ContactService stores patient delivery addresses
type ContactService interface {
	Upsert(ctx context.Context, actor audit.Actor, contact *model.PatientContact) error
}

// PatientDataService exports and erases patient data
type PatientDataService interface {
	Export(ctx context.Context, actor audit.Actor, patientID string) (*service.PatientDataExport, error)
	Erase(ctx context.Context, actor audit.Actor, patientID string) (*service.ErasureResult, error)
}

// ContactRequest is the body of PUT /api/v1/patients/:id/contact
type ContactRequest struct {
	Name      string  `json:"name"`
	Phone     *string `json:"phone" binding:"omitempty,e164"`
	WhatsApp  *string `json:"whatsapp" binding:"omitempty,max=64"`
	Email     *string `json:"email" binding:"omitempty,email"`
	PushToken *string `json:"push_token" binding:"omitempty,max=4096"`
}

// PatientHandler implements patient contact and data rights endpoints
type PatientHandler struct {
	contacts ContactService
	data     PatientDataService
	logger   *zap.Logger
}

// NewPatientHandler creates a new PatientHandler
func NewPatientHandler(contacts ContactService, data PatientDataService, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{
		contacts: contacts,
		data:     data,
		logger:   logger,
	}
}

// PutApiV1PatientsIdContact upserts the delivery addresses of a patient
func (h *PatientHandler) PutApiV1PatientsIdContact(c *gin.Context) {
	patientID := c.Param("id")

	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	contact := &model.PatientContact{
		PatientID: patientID,
		Name:      req.Name,
		Phone:     req.Phone,
		WhatsApp:  req.WhatsApp,
		Email:     req.Email,
		PushToken: req.PushToken,
	}
	if err := h.contacts.Upsert(c.Request.Context(), actorFrom(c), contact); err != nil {
		respondError(c, h.logger, "update patient contact", err, zap.String("patient_id", patientID))
		return
	}
	c.JSON(http.StatusOK, contact)
}

// GetApiV1PatientsIdExport exports all data stored about a patient
func (h *PatientHandler) GetApiV1PatientsIdExport(c *gin.Context) {
	patientID := c.Param("id")

	export, err := h.data.Export(c.Request.Context(), actorFrom(c), patientID)
	if err != nil {
		respondError(c, h.logger, "export patient data", err, zap.String("patient_id", patientID))
		return
	}

	c.Header("Content-Disposition", attachment(fmt.Sprintf("patient_data_%s.json", patientID)))
	c.JSON(http.StatusOK, export)
}

// DeleteApiV1PatientsIdData erases all data stored about a patient
func (h *PatientHandler) DeleteApiV1PatientsIdData(c *gin.Context) {
	patientID := c.Param("id")

	result, err := h.data.Erase(c.Request.Context(), actorFrom(c), patientID)
	if err != nil {
		respondError(c, h.logger, "erase patient data", err, zap.String("patient_id", patientID))
		return
	}

	h.logger.Info("patient data erased", zap.String("patient_id", patientID))
	c.JSON(http.StatusOK, gin.H{
		"message": "Patient data erased successfully",
		"erased":  result,
	})
}
