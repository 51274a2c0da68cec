package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

func (s *testServer) postForm(path string, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_DeliveryStatus(t *testing.T) {
	// Arrange
	s := newTestServer(t, nil)
	s.reminders.On("ApplyDeliveryStatus", mock.Anything, "SM123", "delivered", "").
		Return(&model.Reminder{ID: reminderID, Status: model.ReminderStatusDelivered}, nil)

	// Act
	w := s.postForm("/webhooks/delivery-status", url.Values{
		"MessageSid":    {"SM123"},
		"MessageStatus": {"delivered"},
	}, "")

	// Assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"reminder_status":"delivered"`)
	assert.Contains(t, w.Body.String(), reminderID)
}

func TestWebhookHandler_DeliveryStatus_UnknownMessage(t *testing.T) {
	s := newTestServer(t, nil)
	s.reminders.On("ApplyDeliveryStatus", mock.Anything, "SM-unknown", "failed", "30003").Return(nil, nil)

	w := s.postForm("/webhooks/delivery-status", url.Values{
		"MessageSid":    {"SM-unknown"},
		"MessageStatus": {"failed"},
		"ErrorCode":     {"30003"},
	}, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestWebhookHandler_DeliveryStatus_MissingFields(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.postForm("/webhooks/delivery-status", url.Values{"MessageStatus": {"sent"}}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	s.reminders.AssertNotCalled(t, "ApplyDeliveryStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_Inbound(t *testing.T) {
	// Arrange
	s := newTestServer(t, nil)
	s.correlator.On("HandleInbound", mock.Anything, "+36301234567", "YES").Return(&service.CorrelationResult{
		Matched:  true,
		Class:    model.ResponsePositive,
		Reminder: &model.Reminder{ID: reminderID},
	}, nil)

	// Act
	w := s.postForm("/webhooks/inbound", url.Values{"From": {"+36301234567"}, "Body": {"YES"}}, "")

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")
	assert.Equal(t, emptyTwiML, w.Body.String())
	s.correlator.AssertExpectations(t)
}

func TestWebhookHandler_Inbound_UnknownSender(t *testing.T) {
	s := newTestServer(t, nil)
	s.correlator.On("HandleInbound", mock.Anything, "+10000000000", "hello").
		Return(&service.CorrelationResult{Class: model.ResponseUnrecognized}, nil)

	w := s.postForm("/webhooks/inbound", url.Values{"From": {"+10000000000"}, "Body": {"hello"}}, "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookHandler_SignatureVerification(t *testing.T) {
	tests := []struct {
		name     string
		valid    bool
		wantCode int
	}{
		{name: "valid signature", valid: true, wantCode: http.StatusOK},
		{name: "invalid signature", valid: false, wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			verifier := new(MockVerifier)
			form := url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"sent"}}
			verifier.On("Verify", "https://reminders.example.test/webhooks/delivery-status", "sig-value", form).Return(tt.valid)

			s := newTestServer(t, verifier)
			s.reminders.On("ApplyDeliveryStatus", mock.Anything, "SM123", "sent", "").
				Return(&model.Reminder{ID: reminderID, Status: model.ReminderStatusSent}, nil).Maybe()

			// Act
			w := s.postForm("/webhooks/delivery-status", form, "sig-value")

			// Assert
			assert.Equal(t, tt.wantCode, w.Code)
			verifier.AssertExpectations(t)
			if !tt.valid {
				s.reminders.AssertNotCalled(t, "ApplyDeliveryStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}
