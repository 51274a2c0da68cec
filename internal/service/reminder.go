package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// MapProviderStatus translates a provider callback status into a delivery status.
// Intermediate statuses such as queued or sending are not tracked.
func MapProviderStatus(providerStatus string) (model.DeliveryStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "delivered":
		return model.DeliveryStatusDelivered, true
	case "read":
		return model.DeliveryStatusRead, true
	case "failed", "undelivered":
		return model.DeliveryStatusFailed, true
	}
	return "", false
}

// ReminderService exposes reminder reads, cancellation and provider callbacks
type ReminderService struct {
	reminders  ReminderRepositoryInterface
	deliveries DeliveryEventRepositoryInterface
	audit      AuditRecorder
	now        func() time.Time
	logger     *zap.Logger
}

// NewReminderService creates a new ReminderService
func NewReminderService(
	reminders ReminderRepositoryInterface,
	deliveries DeliveryEventRepositoryInterface,
	auditor AuditRecorder,
	logger *zap.Logger,
) *ReminderService {
	return &ReminderService{
		reminders:  reminders,
		deliveries: deliveries,
		audit:      auditor,
		now:        time.Now,
		logger:     logger,
	}
}

// Get retrieves a reminder by ID
func (s *ReminderService) Get(ctx context.Context, reminderID string) (*model.Reminder, error) {
	return s.reminders.FindByID(ctx, reminderID)
}

// List returns reminders of a patient filtered by status and scheduled time range
func (s *ReminderService) List(ctx context.Context, filter repository.ReminderFilter) ([]model.Reminder, error) {
	if filter.PatientID == "" {
		return nil, apperror.Validation("patient_id is required")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperror.Validation("unknown reminder status: %q", *filter.Status)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperror.Validation("to must not be before from")
	}

	reminders, err := s.reminders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// Cancel cancels a pending reminder
func (s *ReminderService) Cancel(ctx context.Context, actor audit.Actor, reminderID string) (*model.Reminder, error) {
	rem, err := s.reminders.Cancel(ctx, reminderID)
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, actor, audit.OperationUpdate, audit.ResourceReminder, reminderID,
		map[string]interface{}{"status": string(model.ReminderStatusCancelled)}); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("reminder_id", reminderID))
	}
	s.logger.Info("reminder cancelled", zap.String("reminder_id", reminderID), zap.String("patient_id", rem.PatientID))

	return rem, nil
}

// Deliveries returns the delivery trail of a reminder
func (s *ReminderService) Deliveries(ctx context.Context, reminderID string) ([]model.DeliveryEvent, error) {
	if _, err := s.reminders.FindByID(ctx, reminderID); err != nil {
		return nil, err
	}
	return s.deliveries.ListByReminder(ctx, reminderID)
}

// ApplyDeliveryStatus handles a provider status callback. Unknown message ids,
// untracked statuses and illegal transitions are acknowledged without change.
func (s *ReminderService) ApplyDeliveryStatus(ctx context.Context, providerMessageID, providerStatus, errorCode string) (*model.Reminder, error) {
	if providerMessageID == "" {
		return nil, apperror.Validation("provider message id is required")
	}

	ev := &model.DeliveryEvent{
		ProviderMessageID: &providerMessageID,
		Kind:              model.DeliveryEventCallback,
		Status:            strings.ToLower(providerStatus),
		CreatedAt:         s.now(),
	}
	if errorCode != "" {
		ev.Error = &errorCode
	}

	var rem *model.Reminder
	label := "ignored"

	if status, ok := MapProviderStatus(providerStatus); ok {
		next, _ := status.ReminderStatus()

		var reason *string
		if next == model.ReminderStatusFailed {
			r := "provider reported " + ev.Status
			if errorCode != "" {
				r += " (" + errorCode + ")"
			}
			reason = &r
		}

		updated, applied, err := s.reminders.ApplyDeliveryStatus(ctx, providerMessageID, next, reason)
		if err != nil {
			return nil, err
		}
		rem = updated

		switch {
		case rem == nil:
			label = "unknown"
		case applied:
			label = string(status)
		default:
			label = "stale"
		}
	}

	if rem != nil {
		ev.ReminderID = &rem.ID
		ev.Channel = &rem.Channel
	}
	if err := s.deliveries.Record(ctx, ev); err != nil {
		s.logger.Warn("failed to record delivery callback", zap.Error(err), zap.String("provider_message_id", providerMessageID))
	}

	metrics.DeliveryCallbacks.WithLabelValues(label).Inc()
	s.logger.Info("delivery status callback",
		zap.String("provider_message_id", providerMessageID),
		zap.String("status", ev.Status),
		zap.String("result", label),
	)

	return rem, nil
}
