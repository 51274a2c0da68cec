package integration_tests

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

// TestAdherenceAndReportingIntegration logs doses over several days, checks
// the computed statistics and chart, renders a report and erases the patient
func TestAdherenceAndReportingIntegration(t *testing.T) {
	ctx := context.Background()
	app, cleanup := newTestApp(t, ctx)
	defer cleanup()

	patientID := uuid.New().String()
	assignmentID := uuid.New().String()
	app.seedPatient(t, patientID, assignmentID, randomPhone())

	today := time.Now().UTC().Truncate(24 * time.Hour)
	doses := []struct {
		daysAgo int
		status  string
	}{
		{3, "taken"},
		{2, "taken"},
		{1, "skipped"},
	}
	for _, d := range doses {
		scheduled := today.AddDate(0, 0, -d.daysAgo).Add(8 * time.Hour)
		body := map[string]interface{}{
			"patient_id":               patientID,
			"medication_assignment_id": assignmentID,
			"scheduled_time":           scheduled.Format(time.RFC3339),
			"status":                   d.status,
		}
		if d.status == "taken" {
			body["actual_time"] = scheduled.Add(10 * time.Minute).Format(time.RFC3339)
		}
		app.doJSON(t, http.MethodPost, "/api/v1/events", body, http.StatusCreated, nil)
	}

	// A second dose for the same time is a conflict
	app.doJSON(t, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"patient_id":               patientID,
		"medication_assignment_id": assignmentID,
		"scheduled_time":           today.AddDate(0, 0, -3).Add(8 * time.Hour).Format(time.RFC3339),
		"status":                   "taken",
	}, http.StatusConflict, nil)

	t.Run("stats", func(t *testing.T) {
		var stats model.AdherenceStats
		app.doJSON(t, http.MethodGet, "/api/v1/adherence/stats?patient_id="+patientID+"&period=weekly", nil, http.StatusOK, &stats)

		assert.Equal(t, 3, stats.TotalScheduled)
		assert.Equal(t, 2, stats.TotalTaken)
		assert.Equal(t, 1, stats.TotalSkipped)
		assert.Equal(t, 2, stats.OnTimeTaken)
		assert.InDelta(t, 66.67, stats.AdherenceScore, 0.01)
		assert.Equal(t, 2, stats.LongestStreak)
	})

	t.Run("chart", func(t *testing.T) {
		var chart struct {
			Days   int                `json:"days"`
			Scores []model.DailyScore `json:"scores"`
		}
		app.doJSON(t, http.MethodGet, "/api/v1/adherence/chart?patient_id="+patientID+"&days=7", nil, http.StatusOK, &chart)

		require.Len(t, chart.Scores, 7)
		bands := make(map[model.AdherenceBand]int)
		for _, s := range chart.Scores {
			bands[s.Band]++
		}
		assert.Equal(t, 2, bands[model.BandExcellent])
		assert.Equal(t, 1, bands[model.BandPoor])
	})

	var reportID string
	t.Run("report", func(t *testing.T) {
		var report struct {
			ID          string `json:"id"`
			DownloadURL string `json:"download_url"`
		}
		app.doJSON(t, http.MethodPost, "/api/v1/adherence/reports", map[string]interface{}{
			"patient_id": patientID,
			"start_date": today.AddDate(0, 0, -7).Format("2006-01-02"),
			"end_date":   today.Format("2006-01-02"),
		}, http.StatusCreated, &report)
		require.NotEmpty(t, report.ID)
		reportID = report.ID

		req := httptest.NewRequest(http.MethodGet, report.DownloadURL, nil)
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")), "download should be a PDF document")
	})

	t.Run("erase", func(t *testing.T) {
		var erased struct {
			Erased struct {
				Events      int64 `json:"events"`
				ReportFiles int   `json:"report_files"`
			} `json:"erased"`
		}
		app.doJSON(t, http.MethodDelete, "/api/v1/patients/"+patientID+"/data", nil, http.StatusOK, &erased)
		assert.Equal(t, int64(3), erased.Erased.Events)
		assert.Equal(t, 1, erased.Erased.ReportFiles)
		assert.Empty(t, app.storage.ListBlobs())

		var events []model.MedicationEvent
		app.doJSON(t, http.MethodGet, "/api/v1/events?patient_id="+patientID, nil, http.StatusOK, &events)
		assert.Empty(t, events)

		if reportID != "" {
			app.doJSON(t, http.MethodGet, "/api/v1/adherence/reports/"+reportID, nil, http.StatusNotFound, nil)
		}
	})
}

// TestHealthIntegration checks the health endpoint against a live database
func TestHealthIntegration(t *testing.T) {
	ctx := context.Background()
	app, cleanup := newTestApp(t, ctx)
	defer cleanup()

	var health map[string]string
	app.doJSON(t, http.MethodGet, "/health", nil, http.StatusOK, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "connected", health["database"])
}

// TestExternalIDsIntegration uses catalog ids that are not UUIDs end to end
func TestExternalIDsIntegration(t *testing.T) {
	ctx := context.Background()
	app, cleanup := newTestApp(t, ctx)
	defer cleanup()

	patientID := "patient-" + uuid.NewString()[:8]
	assignmentID := "med-" + uuid.NewString()[:8]
	app.seedPatient(t, patientID, assignmentID, randomPhone())

	var schedule struct {
		ID                     string `json:"id"`
		MedicationAssignmentID string `json:"medication_assignment_id"`
	}
	app.doJSON(t, http.MethodPost, "/api/v1/schedules", map[string]interface{}{
		"medication_assignment_id": assignmentID,
		"frequency":                "daily",
		"reminder_times":           []string{"09:00"},
		"channels":                 []string{"sms"},
	}, http.StatusCreated, &schedule)
	assert.Equal(t, assignmentID, schedule.MedicationAssignmentID)

	var reminders []model.Reminder
	app.doJSON(t, http.MethodGet, "/api/v1/reminders?patient_id="+patientID, nil, http.StatusOK, &reminders)
	require.NotEmpty(t, reminders)
	assert.Equal(t, patientID, reminders[0].PatientID)

	app.doJSON(t, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"patient_id":               patientID,
		"medication_assignment_id": assignmentID,
		"scheduled_time":           time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339),
		"status":                   "skipped",
	}, http.StatusCreated, nil)

	var stats model.AdherenceStats
	app.doJSON(t, http.MethodGet, "/api/v1/adherence/stats?patient_id="+patientID+"&medication_assignment_id="+assignmentID+"&period=daily", nil, http.StatusOK, &stats)
	assert.Equal(t, 1, stats.TotalSkipped)

	app.doJSON(t, http.MethodGet, "/api/v1/patients/"+patientID+"/export", nil, http.StatusOK, nil)
	app.doJSON(t, http.MethodDelete, "/api/v1/patients/"+patientID+"/data", nil, http.StatusOK, nil)
}
