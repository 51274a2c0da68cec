package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

func newTestReminderService() (*ReminderService, *MockReminderRepository, *MockDeliveryEventRepository, *MockAuditRecorder) {
	reminders := new(MockReminderRepository)
	deliveries := new(MockDeliveryEventRepository)
	auditor := new(MockAuditRecorder)
	auditor.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := NewReminderService(reminders, deliveries, auditor, zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s, reminders, deliveries, auditor
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     model.DeliveryStatus
		ok       bool
	}{
		{"delivered", model.DeliveryStatusDelivered, true},
		{"read", model.DeliveryStatusRead, true},
		{"failed", model.DeliveryStatusFailed, true},
		{"undelivered", model.DeliveryStatusFailed, true},
		{"Delivered", model.DeliveryStatusDelivered, true},
		{"queued", "", false},
		{"sent", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			got, ok := MapProviderStatus(tt.provider)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReminderService_Cancel_PendingSucceeds(t *testing.T) {
	s, reminders, _, auditor := newTestReminderService()
	reminders.On("Cancel", mock.Anything, "r1").Return(&model.Reminder{ID: "r1", PatientID: "patient-1", Status: model.ReminderStatusCancelled}, nil)

	rem, err := s.Cancel(context.Background(), testActor, "r1")

	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusCancelled, rem.Status)
	auditor.AssertNumberOfCalls(t, "Record", 1)
}

func TestReminderService_Cancel_SentIsInvalidState(t *testing.T) {
	s, reminders, _, auditor := newTestReminderService()
	reminders.On("Cancel", mock.Anything, "r1").Return(nil, apperror.InvalidState("reminder r1 is sent; only pending reminders can be cancelled"))

	_, err := s.Cancel(context.Background(), testActor, "r1")

	assert.True(t, apperror.Is(err, apperror.CodeInvalidState))
	auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReminderService_ApplyDeliveryStatus_Delivered(t *testing.T) {
	// Arrange
	s, reminders, deliveries, _ := newTestReminderService()
	rem := &model.Reminder{ID: "r1", Channel: model.ChannelSMS, Status: model.ReminderStatusDelivered}
	reminders.On("ApplyDeliveryStatus", mock.Anything, "SM123", model.ReminderStatusDelivered, (*string)(nil)).Return(rem, true, nil)
	deliveries.On("Record", mock.Anything, mock.Anything).Return(nil)

	// Act
	got, err := s.ApplyDeliveryStatus(context.Background(), "SM123", "delivered", "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, rem, got)
	deliveries.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(ev *model.DeliveryEvent) bool {
		return ev.Kind == model.DeliveryEventCallback && ev.ReminderID != nil && *ev.ReminderID == "r1" &&
			ev.Status == "delivered" && ev.Channel != nil && *ev.Channel == model.ChannelSMS
	}))
}

func TestReminderService_ApplyDeliveryStatus_UndeliveredFails(t *testing.T) {
	s, reminders, deliveries, _ := newTestReminderService()
	reminders.On("ApplyDeliveryStatus", mock.Anything, "SM123", model.ReminderStatusFailed,
		mock.MatchedBy(func(reason *string) bool {
			return reason != nil && *reason == "provider reported undelivered (30003)"
		})).Return(&model.Reminder{ID: "r1", Status: model.ReminderStatusFailed}, true, nil)
	deliveries.On("Record", mock.Anything, mock.Anything).Return(nil)

	got, err := s.ApplyDeliveryStatus(context.Background(), "SM123", "undelivered", "30003")

	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusFailed, got.Status)
}

func TestReminderService_ApplyDeliveryStatus_UnknownMessageIsNoop(t *testing.T) {
	s, reminders, deliveries, _ := newTestReminderService()
	reminders.On("ApplyDeliveryStatus", mock.Anything, "SMX", model.ReminderStatusRead, (*string)(nil)).Return(nil, false, nil)
	deliveries.On("Record", mock.Anything, mock.Anything).Return(nil)

	got, err := s.ApplyDeliveryStatus(context.Background(), "SMX", "read", "")

	require.NoError(t, err)
	assert.Nil(t, got)
	deliveries.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(ev *model.DeliveryEvent) bool {
		return ev.ReminderID == nil && *ev.ProviderMessageID == "SMX"
	}))
}

func TestReminderService_ApplyDeliveryStatus_IgnoresUntrackedStatus(t *testing.T) {
	s, reminders, deliveries, _ := newTestReminderService()
	deliveries.On("Record", mock.Anything, mock.Anything).Return(nil)

	got, err := s.ApplyDeliveryStatus(context.Background(), "SM123", "queued", "")

	require.NoError(t, err)
	assert.Nil(t, got)
	reminders.AssertNotCalled(t, "ApplyDeliveryStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	deliveries.AssertNumberOfCalls(t, "Record", 1)
}

func TestReminderService_List_Validation(t *testing.T) {
	s, _, _, _ := newTestReminderService()
	from := fixedNow
	to := fixedNow.Add(-time.Hour)
	bogus := model.ReminderStatus("lost")

	_, err := s.List(context.Background(), repository.ReminderFilter{})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = s.List(context.Background(), repository.ReminderFilter{PatientID: "patient-1", Status: &bogus})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = s.List(context.Background(), repository.ReminderFilter{PatientID: "patient-1", From: &from, To: &to})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}
