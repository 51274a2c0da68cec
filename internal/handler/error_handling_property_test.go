package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/mock"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
)

// Every failing request returns an ErrorResponse whose code agrees with its HTTP status
func TestProperty_ErrorResponseStructure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("error responses carry a code and message matching the status", prop.ForAll(
		func(scenario string) bool {
			s := newTestServer(t, nil)

			var (
				method, path, body string
				expectedStatus     int
				expectedCode       string
			)

			switch scenario {
			case "invalid_json_schedule":
				method, path, body = http.MethodPost, "/api/v1/schedules", `{"frequency": }`
				expectedStatus, expectedCode = http.StatusBadRequest, "VALIDATION_ERROR"

			case "invalid_json_event":
				method, path, body = http.MethodPost, "/api/v1/events", `{"patient_id": "p-1", "status": }`
				expectedStatus, expectedCode = http.StatusBadRequest, "VALIDATION_ERROR"

			case "invalid_uuid_format":
				method, path = http.MethodGet, "/api/v1/reminders/not-a-uuid"
				expectedStatus, expectedCode = http.StatusBadRequest, "VALIDATION_ERROR"

			case "schedule_not_found":
				s.schedules.On("Get", mock.Anything, scheduleID).Return(nil, apperror.NotFound("schedule", scheduleID))
				method, path = http.MethodGet, "/api/v1/schedules/"+scheduleID
				expectedStatus, expectedCode = http.StatusNotFound, "NOT_FOUND"

			case "cancel_sent_reminder":
				s.reminders.On("Cancel", mock.Anything, mock.Anything, reminderID).
					Return(nil, apperror.InvalidState("reminder is already sent"))
				method, path = http.MethodPost, "/api/v1/reminders/"+reminderID+"/cancel"
				expectedStatus, expectedCode = http.StatusConflict, "INVALID_STATE"

			case "report_storage_disabled":
				s.reports.On("GetReport", mock.Anything, reportID).Return(nil, nil, service.ErrReportStorageDisabled)
				method, path = http.MethodGet, "/api/v1/adherence/reports/"+reportID
				expectedStatus, expectedCode = http.StatusServiceUnavailable, "STORAGE_DISABLED"

			case "internal_error":
				s.schedules.On("ListByPatient", mock.Anything, "patient-1").Return(nil, errors.New("connection reset"))
				method, path = http.MethodGet, "/api/v1/schedules?patient_id=patient-1"
				expectedStatus, expectedCode = http.StatusInternalServerError, "INTERNAL_ERROR"

			default:
				return false
			}

			w := s.do(method, path, body)
			if w.Code != expectedStatus {
				t.Logf("%s: expected status %d, got %d", scenario, expectedStatus, w.Code)
				return false
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Logf("%s: body is not an error response: %v", scenario, err)
				return false
			}
			if resp.Code != expectedCode || resp.Message == "" {
				t.Logf("%s: unexpected error response %+v", scenario, resp)
				return false
			}
			if expectedStatus == http.StatusInternalServerError && (resp.Details == nil || *resp.Details == "") {
				t.Logf("%s: internal errors must carry details", scenario)
				return false
			}
			return true
		},
		gen.OneConstOf(
			"invalid_json_schedule",
			"invalid_json_event",
			"invalid_uuid_format",
			"schedule_not_found",
			"cancel_sent_reminder",
			"report_storage_disabled",
			"internal_error",
		),
	))

	properties.TestingRun(t)
}

// Any malformed identifier in a path is rejected before reaching a service
func TestProperty_MalformedIDsRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("non-UUID ids yield 400 without a service call", prop.ForAll(
		func(id string) bool {
			s := newTestServer(t, nil)

			w := s.do(http.MethodGet, fmt.Sprintf("/api/v1/schedules/x%s", id), "")

			return w.Code == http.StatusBadRequest && len(s.schedules.Calls) == 0
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
