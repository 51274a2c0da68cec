package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const (
	// OnTimeWindow is the maximum distance between scheduled and actual dose time for an on-time dose
	OnTimeWindow = 30 * time.Minute

	// StatsMaxAge is how long a cached adherence snapshot stays fresh
	StatsMaxAge = time.Hour

	// MaxChartDays bounds the daily score chart
	MaxChartDays = 90
)

// overallPeriodStart is the lower bound of the "overall" period
var overallPeriodStart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// IsOnTime reports whether a dose taken at actual counts as on time for scheduled
func IsOnTime(scheduled, actual time.Time) bool {
	d := actual.Sub(scheduled)
	if d < 0 {
		d = -d
	}
	return d <= OnTimeWindow
}

// ApplyDoseTiming derives onTime and minutesLate from the event status and actual time.
// Events that are not taken carry no actual time.
func ApplyDoseTiming(ev *model.MedicationEvent) {
	if ev.Status != model.EventStatusTaken || ev.ActualTime == nil {
		ev.ActualTime = nil
		ev.OnTime = false
		ev.MinutesLate = nil
		return
	}

	ev.OnTime = IsOnTime(ev.ScheduledTime, *ev.ActualTime)
	late := int(ev.ActualTime.Sub(ev.ScheduledTime) / time.Minute)
	if late < 0 {
		late = 0
	}
	ev.MinutesLate = &late
}

// PeriodRange resolves the inclusive date range of a period ending today
func PeriodRange(period model.PeriodType, today time.Time) (time.Time, time.Time) {
	today = model.CivilDate(today)
	switch period {
	case model.PeriodWeekly:
		return today.AddDate(0, 0, -7), today
	case model.PeriodMonthly:
		return today.AddDate(0, 0, -30), today
	case model.PeriodOverall:
		return overallPeriodStart, today
	default:
		return today, today
	}
}

// ComputeStreaks returns the current and longest streak of perfect days.
//
// A day is perfect when it has events and all of them are taken. The current
// streak starts at the most recent perfect day, even when later days exist
// that are not perfect, and walks back over consecutive perfect calendar days.
// The longest streak counts runs of perfect days in date order; days without
// events do not break a run.
func ComputeStreaks(events []model.MedicationEvent) (int, int) {
	type tally struct{ total, taken int }
	byDate := make(map[time.Time]*tally)
	for _, ev := range events {
		d := model.CivilDate(ev.ScheduledDate)
		t, ok := byDate[d]
		if !ok {
			t = &tally{}
			byDate[d] = t
		}
		t.total++
		if ev.Status == model.EventStatusTaken {
			t.taken++
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	perfect := func(d time.Time) bool {
		t := byDate[d]
		return t.total > 0 && t.taken == t.total
	}

	current := 0
	for i, d := range dates {
		if !perfect(d) {
			continue
		}
		current = 1
		expected := d.AddDate(0, 0, -1)
		for _, prev := range dates[i+1:] {
			if !prev.Equal(expected) || !perfect(prev) {
				break
			}
			current++
			expected = expected.AddDate(0, 0, -1)
		}
		break
	}

	longest, run := 0, 0
	for _, d := range dates {
		if perfect(d) {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}

	return current, longest
}

// BuildStats aggregates the events of one period. history is the full event
// history of the key; streaks always look at all of it.
func BuildStats(patientID string, assignmentID *string, period model.PeriodType, today time.Time, history []model.MedicationEvent, calculatedAt time.Time) *model.AdherenceStats {
	start, end := PeriodRange(period, today)
	stats := RangeStats(patientID, assignmentID, start, end, history, calculatedAt)
	stats.PeriodType = period
	return stats
}

// RangeStats aggregates the events scheduled on the dates from..to inclusive
func RangeStats(patientID string, assignmentID *string, from, to time.Time, history []model.MedicationEvent, calculatedAt time.Time) *model.AdherenceStats {
	start, end := model.CivilDate(from), model.CivilDate(to)
	stats := &model.AdherenceStats{
		PatientID:              patientID,
		MedicationAssignmentID: assignmentID,
		PeriodStart:            start,
		PeriodEnd:              end,
		CalculatedAt:           calculatedAt,
	}

	for _, ev := range history {
		d := model.CivilDate(ev.ScheduledDate)
		if d.Before(start) || d.After(end) {
			continue
		}
		stats.TotalScheduled++
		switch ev.Status {
		case model.EventStatusTaken:
			stats.TotalTaken++
			if ev.OnTime {
				stats.OnTimeTaken++
			}
		case model.EventStatusSkipped:
			stats.TotalSkipped++
		case model.EventStatusMissed:
			stats.TotalMissed++
		}
	}

	if stats.TotalScheduled > 0 {
		stats.AdherenceScore = float64(stats.TotalTaken) / float64(stats.TotalScheduled) * 100
	}
	if stats.TotalTaken > 0 {
		stats.OnTimeScore = float64(stats.OnTimeTaken) / float64(stats.TotalTaken) * 100
	}
	stats.CurrentStreak, stats.LongestStreak = ComputeStreaks(history)

	return stats
}

// AdherenceCalculator maintains cached adherence snapshots
type AdherenceCalculator struct {
	events EventRepositoryInterface
	stats  AdherenceRepositoryInterface
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewAdherenceCalculator creates a new AdherenceCalculator. Calendar days are taken in loc.
func NewAdherenceCalculator(events EventRepositoryInterface, stats AdherenceRepositoryInterface, loc *time.Location, logger *zap.Logger) *AdherenceCalculator {
	return &AdherenceCalculator{
		events: events,
		stats:  stats,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

func (c *AdherenceCalculator) today() time.Time {
	return model.CivilDate(c.now().In(c.loc))
}

func (c *AdherenceCalculator) history(ctx context.Context, patientID string, assignmentID *string) ([]model.MedicationEvent, error) {
	events, err := c.events.List(ctx, repository.EventFilter{
		PatientID:              patientID,
		MedicationAssignmentID: assignmentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load medication events: %w", err)
	}
	return events, nil
}

// Recompute recalculates and stores the snapshot of one key
func (c *AdherenceCalculator) Recompute(ctx context.Context, patientID string, assignmentID *string, period model.PeriodType) (*model.AdherenceStats, error) {
	history, err := c.history(ctx, patientID, assignmentID)
	if err != nil {
		return nil, err
	}
	return c.store(ctx, BuildStats(patientID, assignmentID, period, c.today(), history, c.now()))
}

// RecomputeAll recalculates every period type of a key from one history read
func (c *AdherenceCalculator) RecomputeAll(ctx context.Context, patientID string, assignmentID *string) ([]model.AdherenceStats, error) {
	history, err := c.history(ctx, patientID, assignmentID)
	if err != nil {
		return nil, err
	}

	today, now := c.today(), c.now()
	all := make([]model.AdherenceStats, 0, len(model.AllPeriods))
	for _, period := range model.AllPeriods {
		stats, err := c.store(ctx, BuildStats(patientID, assignmentID, period, today, history, now))
		if err != nil {
			return nil, err
		}
		all = append(all, *stats)
	}
	return all, nil
}

// RecomputeAfterEventWrite refreshes the medication-scoped and patient-wide snapshots.
// Failures are logged; the event write itself has already succeeded.
func (c *AdherenceCalculator) RecomputeAfterEventWrite(ctx context.Context, patientID, assignmentID string) {
	keys := []*string{nil}
	if assignmentID != "" {
		keys = append(keys, &assignmentID)
	}

	for _, key := range keys {
		if _, err := c.RecomputeAll(ctx, patientID, key); err != nil {
			c.logger.Error("failed to recompute adherence stats",
				zap.Error(err),
				zap.String("patient_id", patientID),
				zap.String("medication_assignment_id", derefOr(key, "")),
			)
		}
	}
}

func (c *AdherenceCalculator) store(ctx context.Context, stats *model.AdherenceStats) (*model.AdherenceStats, error) {
	if err := c.stats.Upsert(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to store adherence stats: %w", err)
	}
	metrics.AdherenceRecomputations.WithLabelValues(string(stats.PeriodType)).Inc()
	return stats, nil
}

// GetStats returns the cached snapshot of a key, recomputing it when missing or stale
func (c *AdherenceCalculator) GetStats(ctx context.Context, patientID string, assignmentID *string, period model.PeriodType) (*model.AdherenceStats, error) {
	if !period.Valid() {
		return nil, apperror.Validation("unknown period type: %q", period)
	}

	cached, err := c.stats.Find(ctx, patientID, assignmentID, period)
	switch {
	case err == nil && c.now().Sub(cached.CalculatedAt) <= StatsMaxAge:
		return cached, nil
	case err != nil && !apperror.Is(err, apperror.CodeNotFound):
		return nil, fmt.Errorf("failed to load adherence stats: %w", err)
	}

	c.logger.Debug("recomputing stale adherence stats",
		zap.String("patient_id", patientID),
		zap.String("period_type", string(period)),
	)
	return c.Recompute(ctx, patientID, assignmentID, period)
}

// DailyScores returns one chart point per day for the last days days, today included
func (c *AdherenceCalculator) DailyScores(ctx context.Context, patientID string, assignmentID *string, days int) ([]model.DailyScore, error) {
	if days <= 0 {
		days = 7
	}
	if days > MaxChartDays {
		return nil, apperror.Validation("days must be at most %d", MaxChartDays)
	}

	to := c.today()
	from := to.AddDate(0, 0, -(days - 1))

	counts, err := c.events.DailyCounts(ctx, patientID, assignmentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily adherence: %w", err)
	}

	return ScoreDays(counts, from, to), nil
}

// ScoreDays turns per-day counts into one scored point for every date from..to.
// Dates without counts report no_data.
func ScoreDays(counts []model.DailyScore, from, to time.Time) []model.DailyScore {
	from, to = model.CivilDate(from), model.CivilDate(to)

	byDate := make(map[time.Time]model.DailyScore, len(counts))
	for _, d := range counts {
		byDate[model.CivilDate(d.Date)] = d
	}

	var scores []model.DailyScore
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		point := byDate[day]
		point.Date = day
		point.Score = 0
		if point.TotalScheduled > 0 {
			point.Score = float64(point.TotalTaken) / float64(point.TotalScheduled) * 100
		}
		point.Band = model.BandFor(point.Score, point.TotalScheduled)
		scores = append(scores, point)
	}

	return scores
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
