package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// DispatchResult summarises one dispatch pass. Processed counts the reminders
// this pass claimed; Failed counts those whose delivery attempt failed.
type DispatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

type dispatchOutcome string

const (
	outcomeSent        dispatchOutcome = "sent"
	outcomeRetry       dispatchOutcome = "retry"
	outcomeFailed      dispatchOutcome = "failed"
	outcomeAutoSkipped dispatchOutcome = "skipped"
	outcomeNotClaimed  dispatchOutcome = "not_claimed"
	outcomeError       dispatchOutcome = "error"
)

// Dispatcher sends due reminders through the delivery channel
type Dispatcher struct {
	reminders  ReminderRepositoryInterface
	schedules  ScheduleRepositoryInterface
	events     EventRepositoryInterface
	deliveries DeliveryEventRepositoryInterface
	contacts   ContactLookup
	sender     DeliveryChannel
	lookback   time.Duration
	batchSize  int
	now        func() time.Time
	logger     *zap.Logger
}

// NewDispatcher creates a new Dispatcher. Reminders due longer ago than lookback are ignored.
func NewDispatcher(
	reminders ReminderRepositoryInterface,
	schedules ScheduleRepositoryInterface,
	events EventRepositoryInterface,
	deliveries DeliveryEventRepositoryInterface,
	contacts ContactLookup,
	sender DeliveryChannel,
	lookback time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Dispatcher {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Dispatcher{
		reminders:  reminders,
		schedules:  schedules,
		events:     events,
		deliveries: deliveries,
		contacts:   contacts,
		sender:     sender,
		lookback:   lookback,
		batchSize:  batchSize,
		now:        time.Now,
		logger:     logger,
	}
}

// DispatchDue attempts every pending reminder that is due, at most once each.
// A failing reminder never stops the pass.
func (d *Dispatcher) DispatchDue(ctx context.Context) (*DispatchResult, error) {
	now := d.now()
	ids, err := d.reminders.DueIDs(ctx, now, now.Add(-d.lookback), d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select due reminders: %w", err)
	}

	result := &DispatchResult{}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		switch d.dispatchOne(ctx, id) {
		case outcomeSent, outcomeAutoSkipped:
			result.Processed++
		case outcomeRetry, outcomeFailed:
			result.Processed++
			result.Failed++
		case outcomeError:
			result.Failed++
		}
	}

	if len(ids) > 0 {
		d.logger.Info("dispatch pass finished",
			zap.Int("due", len(ids)),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
		)
	}

	return result, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, reminderID string) dispatchOutcome {
	claim, err := d.reminders.ClaimPending(ctx, reminderID)
	if errors.Is(err, repository.ErrNotClaimable) {
		return outcomeNotClaimed
	}
	if err != nil {
		d.logger.Warn("failed to claim reminder", zap.Error(err), zap.String("reminder_id", reminderID))
		return outcomeError
	}
	defer claim.Release(ctx)

	rem := claim.Reminder()

	if d.alreadyTaken(ctx, rem) {
		if err := claim.Cancel(ctx); err != nil {
			d.logger.Warn("failed to auto-skip reminder", zap.Error(err), zap.String("reminder_id", rem.ID))
			return outcomeError
		}
		metrics.RemindersDispatched.WithLabelValues(string(rem.Channel), string(outcomeAutoSkipped)).Inc()
		d.logger.Info("reminder auto-skipped, dose already taken",
			zap.String("reminder_id", rem.ID),
			zap.String("medication_assignment_id", rem.MedicationAssignmentID),
		)
		return outcomeAutoSkipped
	}

	contact, err := d.contacts.Resolve(ctx, rem.PatientID)
	if err != nil {
		return d.fail(ctx, claim, fmt.Sprintf("contact lookup failed: %v", err))
	}
	address, ok := contact.AddressFor(rem.Channel)
	if !ok {
		return d.fail(ctx, claim, fmt.Sprintf("patient has no %s address", rem.Channel))
	}

	start := time.Now()
	providerID, err := d.sender.Send(ctx, rem.Channel, address, rem.MessageText)
	metrics.SendLatency.WithLabelValues(string(rem.Channel)).Observe(time.Since(start).Seconds())
	if err != nil {
		return d.fail(ctx, claim, err.Error())
	}

	if err := claim.MarkSent(ctx, providerID, d.now()); err != nil {
		d.logger.Error("reminder delivered but not marked sent",
			zap.Error(err),
			zap.String("reminder_id", rem.ID),
			zap.String("provider_message_id", providerID),
		)
		return outcomeError
	}

	d.record(ctx, rem, providerID, string(model.ReminderStatusSent), nil)
	metrics.RemindersDispatched.WithLabelValues(string(rem.Channel), string(outcomeSent)).Inc()
	d.logger.Info("reminder sent",
		zap.String("reminder_id", rem.ID),
		zap.String("patient_id", rem.PatientID),
		zap.String("channel", string(rem.Channel)),
		zap.String("provider_message_id", providerID),
	)

	return outcomeSent
}

// alreadyTaken reports whether the schedule asks to skip reminders for doses
// that are already logged as taken, and such a dose exists
func (d *Dispatcher) alreadyTaken(ctx context.Context, rem *model.Reminder) bool {
	if rem.ScheduleID == "" {
		return false
	}
	schedule, err := d.schedules.FindByID(ctx, rem.ScheduleID)
	if err != nil || !schedule.AutoSkipIfTaken {
		return false
	}

	taken, err := d.events.ExistsTaken(ctx, rem.MedicationAssignmentID, rem.ActualDoseTime)
	if err != nil {
		d.logger.Warn("failed to check for a taken dose", zap.Error(err), zap.String("reminder_id", rem.ID))
		return false
	}
	return taken
}

func (d *Dispatcher) fail(ctx context.Context, claim repository.ReminderClaim, reason string) dispatchOutcome {
	rem := claim.Reminder()

	status, err := claim.RecordFailure(ctx, reason)
	if err != nil {
		d.logger.Error("failed to record delivery failure", zap.Error(err), zap.String("reminder_id", rem.ID))
		return outcomeError
	}

	outcome := outcomeRetry
	if status == model.ReminderStatusFailed {
		outcome = outcomeFailed
	}

	d.record(ctx, rem, "", string(outcome), &reason)
	metrics.RemindersDispatched.WithLabelValues(string(rem.Channel), string(outcome)).Inc()
	d.logger.Warn("reminder delivery failed",
		zap.String("reminder_id", rem.ID),
		zap.String("channel", string(rem.Channel)),
		zap.Int("retry_count", rem.RetryCount),
		zap.String("status", string(status)),
		zap.String("error", reason),
	)

	return outcome
}

func (d *Dispatcher) record(ctx context.Context, rem *model.Reminder, providerID, status string, reason *string) {
	channel := rem.Channel
	ev := &model.DeliveryEvent{
		ReminderID: &rem.ID,
		Kind:       model.DeliveryEventAttempt,
		Channel:    &channel,
		Status:     status,
		Error:      reason,
		CreatedAt:  d.now(),
	}
	if providerID != "" {
		ev.ProviderMessageID = &providerID
	}

	if err := d.deliveries.Record(ctx, ev); err != nil {
		d.logger.Warn("failed to record delivery attempt", zap.Error(err), zap.String("reminder_id", rem.ID))
	}
}
