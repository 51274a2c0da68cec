package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// AdherenceService reads adherence stats and chart points
type AdherenceService interface {
	GetStats(ctx context.Context, patientID string, assignmentID *string, period model.PeriodType) (*model.AdherenceStats, error)
	DailyScores(ctx context.Context, patientID string, assignmentID *string, days int) ([]model.DailyScore, error)
}

// ReportService renders and serves adherence reports
type ReportService interface {
	GenerateReport(ctx context.Context, actor audit.Actor, patientID string, from, to time.Time) (*model.Report, error)
	GetReport(ctx context.Context, reportID string) (*model.Report, []byte, error)
	ListReports(ctx context.Context, patientID string) ([]model.Report, error)
}

// GenerateReportRequest is the body of POST /api/v1/adherence/reports
type GenerateReportRequest struct {
	PatientID string     `json:"patient_id" binding:"required"`
	StartDate types.Date `json:"start_date" binding:"required"`
	EndDate   types.Date `json:"end_date" binding:"required"`
}

// ReportResponse is the API representation of a generated report
type ReportResponse struct {
	ID          string     `json:"id"`
	PatientID   string     `json:"patient_id"`
	StartDate   types.Date `json:"start_date"`
	EndDate     types.Date `json:"end_date"`
	DownloadURL string     `json:"download_url"`
	GeneratedAt time.Time  `json:"generated_at"`
}

func toReportResponse(r *model.Report) ReportResponse {
	return ReportResponse{
		ID:          r.ID,
		PatientID:   r.PatientID,
		StartDate:   types.Date{Time: r.DateRangeStart},
		EndDate:     types.Date{Time: r.DateRangeEnd},
		DownloadURL: "/api/v1/adherence/reports/" + r.ID,
		GeneratedAt: r.GeneratedAt,
	}
}

// AdherenceHandler implements adherence statistics and report endpoints
type AdherenceHandler struct {
	stats   AdherenceService
	reports ReportService
	logger  *zap.Logger
}

// NewAdherenceHandler creates a new AdherenceHandler
func NewAdherenceHandler(stats AdherenceService, reports ReportService, logger *zap.Logger) *AdherenceHandler {
	return &AdherenceHandler{
		stats:   stats,
		reports: reports,
		logger:  logger,
	}
}

// GetApiV1AdherenceStats returns adherence stats for a patient, optionally for one medication
func (h *AdherenceHandler) GetApiV1AdherenceStats(c *gin.Context) {
	patientID := c.Query("patient_id")
	if patientID == "" {
		respondError(c, h.logger, "get adherence stats", apperror.Validation("patient_id is required"))
		return
	}

	period := model.PeriodWeekly
	if raw := c.Query("period"); raw != "" {
		p, err := model.ParsePeriodType(raw)
		if err != nil {
			respondError(c, h.logger, "get adherence stats", apperror.Validation("%s", err.Error()))
			return
		}
		period = p
	}

	stats, err := h.stats.GetStats(c.Request.Context(), patientID, optionalString(c.Query("medication_assignment_id")), period)
	if err != nil {
		respondError(c, h.logger, "get adherence stats", err, zap.String("patient_id", patientID))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetApiV1AdherenceChart returns one scored point per day
func (h *AdherenceHandler) GetApiV1AdherenceChart(c *gin.Context) {
	patientID := c.Query("patient_id")
	if patientID == "" {
		respondError(c, h.logger, "get adherence chart", apperror.Validation("patient_id is required"))
		return
	}
	days, err := queryInt(c, "days", 7)
	if err != nil {
		respondError(c, h.logger, "get adherence chart", err)
		return
	}

	scores, err := h.stats.DailyScores(c.Request.Context(), patientID, optionalString(c.Query("medication_assignment_id")), days)
	if err != nil {
		respondError(c, h.logger, "get adherence chart", err, zap.String("patient_id", patientID))
		return
	}
	if scores == nil {
		scores = []model.DailyScore{}
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id": patientID,
		"days":       days,
		"scores":     scores,
	})
}

// PostApiV1AdherenceReports renders and stores a PDF report
func (h *AdherenceHandler) PostApiV1AdherenceReports(c *gin.Context) {
	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	report, err := h.reports.GenerateReport(c.Request.Context(), actorFrom(c), req.PatientID,
		dateToTime(req.StartDate), dateToTime(req.EndDate))
	if err != nil {
		respondError(c, h.logger, "generate report", err, zap.String("patient_id", req.PatientID))
		return
	}

	c.JSON(http.StatusCreated, toReportResponse(report))
}

// GetApiV1AdherenceReports lists the reports of a patient
func (h *AdherenceHandler) GetApiV1AdherenceReports(c *gin.Context) {
	patientID := c.Query("patient_id")

	reports, err := h.reports.ListReports(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, h.logger, "list reports", err, zap.String("patient_id", patientID))
		return
	}

	response := make([]ReportResponse, 0, len(reports))
	for i := range reports {
		response = append(response, toReportResponse(&reports[i]))
	}
	c.JSON(http.StatusOK, response)
}

// GetApiV1AdherenceReportsId downloads a report PDF
func (h *AdherenceHandler) GetApiV1AdherenceReportsId(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		respondError(c, h.logger, "download report", err)
		return
	}

	report, pdfBytes, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "download report", err, zap.String("report_id", id))
		return
	}

	c.Header("Content-Disposition", attachment(fmt.Sprintf("adherence_report_%s.pdf", report.ID)))
	c.Header("Content-Length", fmt.Sprintf("%d", len(pdfBytes)))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
