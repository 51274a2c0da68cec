package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ReminderGenerator expands schedules into concrete pending reminders
type ReminderGenerator struct {
	schedules   ScheduleRepositoryInterface
	assignments AssignmentRepositoryInterface
	reminders   ReminderRepositoryInterface
	loc         *time.Location
	maxRetries  int
	now         func() time.Time
	logger      *zap.Logger
}

// NewReminderGenerator creates a new ReminderGenerator. Dose times are wall-clock times in loc.
func NewReminderGenerator(
	schedules ScheduleRepositoryInterface,
	assignments AssignmentRepositoryInterface,
	reminders ReminderRepositoryInterface,
	loc *time.Location,
	maxRetries int,
	logger *zap.Logger,
) *ReminderGenerator {
	if maxRetries <= 0 {
		maxRetries = model.DefaultMaxRetries
	}
	return &ReminderGenerator{
		schedules:   schedules,
		assignments: assignments,
		reminders:   reminders,
		loc:         loc,
		maxRetries:  maxRetries,
		now:         time.Now,
		logger:      logger,
	}
}

// RenderMessage builds the reminder text for one dose
func RenderMessage(a *model.MedicationAssignment, doseTime time.Time) string {
	return fmt.Sprintf("Time to take %s (%s) at %s. Reply YES when taken, SKIP to skip it or NO if you missed it.",
		a.MedicationName, a.Dosage, doseTime.Format("15:04"))
}

// Generate creates the reminders of one schedule for the days [today, today+daysAhead).
// A missing or inactive schedule or assignment yields no reminders and no error.
func (g *ReminderGenerator) Generate(ctx context.Context, scheduleID string, daysAhead int) ([]model.Reminder, error) {
	if daysAhead <= 0 {
		return nil, apperror.Validation("daysAhead must be positive")
	}

	schedule, err := g.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if apperror.Is(err, apperror.CodeNotFound) {
			return []model.Reminder{}, nil
		}
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if !schedule.IsActive {
		return []model.Reminder{}, nil
	}

	assignment, err := g.assignments.FindByID(ctx, schedule.MedicationAssignmentID)
	if err != nil {
		if apperror.Is(err, apperror.CodeNotFound) {
			g.logger.Warn("schedule references unknown medication assignment",
				zap.String("schedule_id", schedule.ID),
				zap.String("medication_assignment_id", schedule.MedicationAssignmentID),
			)
			return []model.Reminder{}, nil
		}
		return nil, fmt.Errorf("failed to load medication assignment: %w", err)
	}
	if !assignment.IsActive() {
		return []model.Reminder{}, nil
	}

	channel, ok := model.HighestPriorityChannel(schedule.Channels)
	if !ok {
		g.logger.Warn("schedule has no usable channel", zap.String("schedule_id", schedule.ID))
		return []model.Reminder{}, nil
	}

	candidates := g.expand(schedule, assignment, channel, daysAhead)
	if len(candidates) == 0 {
		return []model.Reminder{}, nil
	}

	existing, err := g.reminders.ScheduledTimesBetween(ctx, schedule.MedicationAssignmentID,
		candidates[0].ScheduledTime, candidates[len(candidates)-1].ScheduledTime)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing reminders: %w", err)
	}
	taken := make(map[int64]bool, len(existing))
	for _, t := range existing {
		taken[t.Unix()] = true
	}

	fresh := make([]model.Reminder, 0, len(candidates))
	for _, rem := range candidates {
		if taken[rem.ScheduledTime.Unix()] {
			continue
		}
		fresh = append(fresh, rem)
	}
	if len(fresh) == 0 {
		return []model.Reminder{}, nil
	}

	created, err := g.reminders.InsertBatch(ctx, fresh)
	if err != nil {
		g.logger.Error("failed to insert reminders",
			zap.Error(err),
			zap.String("schedule_id", schedule.ID),
		)
		return nil, fmt.Errorf("failed to insert reminders: %w", err)
	}
	if created == nil {
		created = []model.Reminder{}
	}

	metrics.RemindersGenerated.Add(float64(len(created)))
	g.logger.Info("reminders generated",
		zap.String("schedule_id", schedule.ID),
		zap.String("patient_id", schedule.PatientID),
		zap.Int("count", len(created)),
	)

	return created, nil
}

// expand lists the candidate reminders in send-time order, leaving out past
// send times, quiet hours and days outside the validity window
func (g *ReminderGenerator) expand(schedule *model.ReminderSchedule, assignment *model.MedicationAssignment, channel model.Channel, daysAhead int) []model.Reminder {
	now := g.now()
	today := model.CivilDate(now.In(g.loc))
	start := model.CivilDate(schedule.StartDate)

	if schedule.Frequency == model.FrequencyOnce {
		// a one-off schedule fires on its start date only, once that date is in the window
		if start.Before(today) || !start.Before(today.AddDate(0, 0, daysAhead)) {
			return nil
		}
		daysAhead = 1
		today = start
	}

	times := make([]model.ClockTime, 0, len(schedule.ReminderTimes))
	for _, raw := range schedule.ReminderTimes {
		ct, err := model.ParseClockTime(raw)
		if err != nil {
			g.logger.Warn("skipping invalid reminder time",
				zap.String("schedule_id", schedule.ID),
				zap.String("reminder_time", raw),
			)
			continue
		}
		times = append(times, ct)
	}

	advance := time.Duration(schedule.AdvanceMinutes) * time.Minute
	seen := make(map[int64]bool)
	var out []model.Reminder

	for i := 0; i < daysAhead; i++ {
		day := today.AddDate(0, 0, i)
		if day.Before(start) {
			continue
		}
		if schedule.EndDate != nil && day.After(model.CivilDate(*schedule.EndDate)) {
			break
		}

		for _, ct := range times {
			doseTime := ct.On(day, g.loc)
			sendTime := doseTime.Add(-advance)

			if sendTime.Before(now) {
				continue
			}
			if schedule.QuietHours != nil && schedule.QuietHours.Contains(model.ClockOf(doseTime)) {
				g.logger.Debug("reminder suppressed by quiet hours",
					zap.String("schedule_id", schedule.ID),
					zap.Time("dose_time", doseTime),
				)
				continue
			}
			if seen[sendTime.Unix()] {
				continue
			}
			seen[sendTime.Unix()] = true

			out = append(out, model.Reminder{
				ID:                     uuid.New().String(),
				ScheduleID:             schedule.ID,
				PatientID:              schedule.PatientID,
				MedicationAssignmentID: schedule.MedicationAssignmentID,
				ScheduledTime:          sendTime,
				ActualDoseTime:         doseTime,
				Channel:                channel,
				Status:                 model.ReminderStatusPending,
				MessageText:            RenderMessage(assignment, doseTime),
				MaxRetries:             g.maxRetries,
				CreatedAt:              now,
				UpdatedAt:              now,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

// GenerateAll runs generation for every active schedule and returns the number
// of reminders created. A failing schedule is logged and does not stop the run.
func (g *ReminderGenerator) GenerateAll(ctx context.Context, daysAhead int) (int, error) {
	schedules, err := g.schedules.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active schedules: %w", err)
	}

	total := 0
	for _, schedule := range schedules {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		created, err := g.Generate(ctx, schedule.ID, daysAhead)
		if err != nil {
			g.logger.Warn("reminder generation failed for schedule",
				zap.Error(err),
				zap.String("schedule_id", schedule.ID),
			)
			continue
		}
		total += len(created)
	}

	g.logger.Info("reminder generation finished",
		zap.Int("schedules", len(schedules)),
		zap.Int("created", total),
	)

	return total, nil
}
