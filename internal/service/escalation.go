package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const followUpPrefix = "Reminder: "

// Escalator creates one follow-up reminder for every unanswered reminder whose
// schedule escalates missed doses
type Escalator struct {
	reminders ReminderRepositoryInterface
	lookback  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewEscalator creates a new Escalator
func NewEscalator(reminders ReminderRepositoryInterface, lookback time.Duration, logger *zap.Logger) *Escalator {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &Escalator{
		reminders: reminders,
		lookback:  lookback,
		now:       time.Now,
		logger:    logger,
	}
}

// FollowUp builds the escalation of original, due delayMinutes after it
func FollowUp(original *model.Reminder, delayMinutes int, now time.Time) *model.Reminder {
	return &model.Reminder{
		ID:                     uuid.New().String(),
		ScheduleID:             original.ScheduleID,
		PatientID:              original.PatientID,
		MedicationAssignmentID: original.MedicationAssignmentID,
		ScheduledTime:          original.ScheduledTime.Add(time.Duration(delayMinutes) * time.Minute),
		ActualDoseTime:         original.ActualDoseTime,
		Channel:                original.Channel,
		Status:                 model.ReminderStatusPending,
		MessageText:            followUpPrefix + original.MessageText,
		MaxRetries:             original.MaxRetries,
		EscalatedFrom:          &original.ID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// EscalateDue creates follow-ups for all eligible reminders and returns how many were created
func (e *Escalator) EscalateDue(ctx context.Context) (int, error) {
	now := e.now()
	candidates, err := e.reminders.ListEscalationCandidates(ctx, now, now.Add(-e.lookback))
	if err != nil {
		return 0, fmt.Errorf("failed to list escalation candidates: %w", err)
	}

	created := 0
	for i := range candidates {
		original := &candidates[i].Reminder
		followUp := FollowUp(original, candidates[i].DelayMinutes, now)

		ok, err := e.reminders.CreateEscalation(ctx, original.ID, followUp)
		if err != nil {
			e.logger.Warn("failed to escalate reminder", zap.Error(err), zap.String("reminder_id", original.ID))
			continue
		}
		if !ok {
			continue
		}

		created++
		e.logger.Info("reminder escalated",
			zap.String("reminder_id", original.ID),
			zap.String("follow_up_id", followUp.ID),
			zap.String("patient_id", original.PatientID),
		)
	}

	return created, nil
}
