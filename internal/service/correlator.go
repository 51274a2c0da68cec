package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

var responseKeywords = map[string]model.ResponseClass{
	"YES":       model.ResponsePositive,
	"TAKEN":     model.ResponsePositive,
	"DONE":      model.ResponsePositive,
	"CONFIRMED": model.ResponsePositive,
	"✓":         model.ResponsePositive,
	"SKIP":      model.ResponseSkip,
	"LATER":     model.ResponseSkip,
	"SNOOZE":    model.ResponseSkip,
	"NO":        model.ResponseNegative,
	"MISSED":    model.ResponseNegative,
	"FORGOT":    model.ResponseNegative,
}

// ClassifyResponse maps a reply onto a response class. Only a reply that is
// exactly one keyword (ignoring case, whitespace and trailing punctuation) is recognized.
func ClassifyResponse(text string) model.ResponseClass {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	normalized = strings.TrimSpace(strings.TrimRight(normalized, ".!?,;:"))

	if class, ok := responseKeywords[normalized]; ok {
		return class
	}
	return model.ResponseUnrecognized
}

// CorrelationResult describes what an inbound reply changed. Matched is true
// when the reply was attached to a reminder; Event is set whenever a dose was recorded.
type CorrelationResult struct {
	Matched  bool                   `json:"matched"`
	Class    model.ResponseClass    `json:"class"`
	Event    *model.MedicationEvent `json:"event,omitempty"`
	Reminder *model.Reminder        `json:"reminder,omitempty"`
}

// Correlator attaches inbound replies to the reminders they answer
type Correlator struct {
	reminders  ReminderRepositoryInterface
	events     EventRepositoryInterface
	deliveries DeliveryEventRepositoryInterface
	contacts   ContactLookup
	adherence  AdherenceRecomputer
	lookback   time.Duration
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// NewCorrelator creates a new Correlator. Reminders scheduled before now-lookback are not matched.
func NewCorrelator(
	reminders ReminderRepositoryInterface,
	events EventRepositoryInterface,
	deliveries DeliveryEventRepositoryInterface,
	contacts ContactLookup,
	adherence AdherenceRecomputer,
	lookback time.Duration,
	loc *time.Location,
	logger *zap.Logger,
) *Correlator {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &Correlator{
		reminders:  reminders,
		events:     events,
		deliveries: deliveries,
		contacts:   contacts,
		adherence:  adherence,
		lookback:   lookback,
		loc:        loc,
		now:        time.Now,
		logger:     logger,
	}
}

// HandleInbound resolves the sender of an inbound message and correlates its text.
// An unknown sender is a correlation miss, not an error.
func (c *Correlator) HandleInbound(ctx context.Context, from, text string) (*CorrelationResult, error) {
	contact, err := c.contacts.ResolveSender(ctx, from)
	if err != nil {
		if apperror.Is(err, apperror.CodeNotFound) || apperror.Is(err, apperror.CodeValidation) {
			metrics.ResponsesCorrelated.WithLabelValues("unknown_sender").Inc()
			c.logger.Warn("inbound message from unknown sender",
				zap.Error(apperror.CorrelationMiss("no patient for sender %q", NormalizeAddress(from))),
			)
			return &CorrelationResult{Class: ClassifyResponse(text)}, nil
		}
		return nil, err
	}

	result, err := c.Correlate(ctx, contact.PatientID, text)
	if err != nil {
		return nil, err
	}

	ev := &model.DeliveryEvent{
		Kind:      model.DeliveryEventInbound,
		Status:    string(result.Class),
		CreatedAt: c.now(),
	}
	if result.Reminder != nil {
		ev.ReminderID = &result.Reminder.ID
		ev.ProviderMessageID = result.Reminder.ProviderMessageID
	}
	if err := c.deliveries.Record(ctx, ev); err != nil {
		c.logger.Warn("failed to record inbound message", zap.Error(err), zap.String("patient_id", contact.PatientID))
	}

	return result, nil
}

// Correlate classifies a reply from a patient and records it against the
// patient's most recent reminder that awaits a response
func (c *Correlator) Correlate(ctx context.Context, patientID, text string) (*CorrelationResult, error) {
	class := ClassifyResponse(text)
	result := &CorrelationResult{Class: class}

	status, recognized := class.EventStatus()
	if !recognized {
		metrics.ResponsesCorrelated.WithLabelValues("unrecognized").Inc()
		c.logger.Info("reply not recognized", zap.String("patient_id", patientID))
		return result, nil
	}

	now := c.now()
	rem, err := c.reminders.FindLatestAwaitingResponse(ctx, patientID, now.Add(-c.lookback))
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder awaiting response: %w", err)
	}

	if rem == nil {
		if class != model.ResponsePositive {
			metrics.ResponsesCorrelated.WithLabelValues("miss").Inc()
			c.logger.Warn("reply dropped",
				zap.Error(apperror.CorrelationMiss("no reminder awaiting a response")),
				zap.String("patient_id", patientID),
				zap.String("class", string(class)),
			)
			return result, nil
		}

		ev, err := c.logGeneralDose(ctx, patientID, now)
		if err != nil {
			return nil, err
		}
		result.Event = ev
		metrics.ResponsesCorrelated.WithLabelValues("general").Inc()
		return result, nil
	}

	ev := &model.MedicationEvent{
		ID:                     uuid.New().String(),
		MedicationAssignmentID: rem.MedicationAssignmentID,
		PatientID:              patientID,
		ScheduledTime:          rem.ActualDoseTime,
		ScheduledDate:          model.CivilDate(rem.ActualDoseTime.In(c.loc)),
		Status:                 status,
		ReminderID:             &rem.ID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if status == model.EventStatusTaken {
		ev.ActualTime = &now
	}
	ApplyDoseTiming(ev)

	updated, err := c.reminders.RespondWithEvent(ctx, rem.ID, text, now, ev)
	if apperror.Is(err, apperror.CodeConflict) {
		// the dose was already logged by hand; the reply still answers the reminder
		c.logger.Info("dose already logged, recording reply only",
			zap.String("reminder_id", rem.ID),
			zap.String("patient_id", patientID),
		)
		ev = nil
		updated, err = c.reminders.RespondWithEvent(ctx, rem.ID, text, now, nil)
	}
	if apperror.Is(err, apperror.CodeInvalidState) {
		metrics.ResponsesCorrelated.WithLabelValues("miss").Inc()
		c.logger.Warn("reminder changed state before the reply was recorded",
			zap.String("reminder_id", rem.ID),
			zap.String("patient_id", patientID),
		)
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record reply: %w", err)
	}

	if ev != nil {
		c.adherence.RecomputeAfterEventWrite(ctx, patientID, rem.MedicationAssignmentID)
	}

	metrics.ResponsesCorrelated.WithLabelValues("matched").Inc()
	c.logger.Info("reply correlated",
		zap.String("reminder_id", rem.ID),
		zap.String("patient_id", patientID),
		zap.String("class", string(class)),
	)

	result.Matched = true
	result.Event = ev
	result.Reminder = updated
	return result, nil
}

// logGeneralDose records a taken dose that is not tied to any reminder or medication
func (c *Correlator) logGeneralDose(ctx context.Context, patientID string, now time.Time) (*model.MedicationEvent, error) {
	note := "logged from a reply without an outstanding reminder"
	ev := &model.MedicationEvent{
		ID:            uuid.New().String(),
		PatientID:     patientID,
		ScheduledTime: now,
		ScheduledDate: model.CivilDate(now.In(c.loc)),
		Status:        model.EventStatusTaken,
		ActualTime:    &now,
		Notes:         &note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ApplyDoseTiming(ev)

	if err := c.events.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to log general dose: %w", err)
	}

	c.adherence.RecomputeAfterEventWrite(ctx, patientID, "")
	c.logger.Info("general dose logged from reply", zap.String("patient_id", patientID), zap.String("event_id", ev.ID))
	return ev, nil
}
