// Package scheduler runs reminder generation, escalation and dispatch on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"go.uber.org/zap"
)

const (
	jobDispatch   = "dispatch"
	jobGeneration = "generation"
)

// Dispatcher sends due reminders
type Dispatcher interface {
	DispatchDue(ctx context.Context) (*service.DispatchResult, error)
}

// Escalator creates follow-ups for unanswered reminders
type Escalator interface {
	EscalateDue(ctx context.Context) (int, error)
}

// Generator expands every active schedule
type Generator interface {
	GenerateAll(ctx context.Context, daysAhead int) (int, error)
}

// Config holds the driver settings
type Config struct {
	DispatchSpec   string
	GenerationSpec string
	DaysAhead      int
	JobTimeout     time.Duration
	Location       *time.Location
}

// Driver is the single periodic driver of the reminder pipeline
type Driver struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	escalator  Escalator
	generator  Generator
	cfg        Config
	dispatchMu sync.Mutex
	generateMu sync.Mutex
	logger     *zap.Logger
}

// NewDriver creates a Driver and registers its jobs. Jobs do not run until Start.
func NewDriver(cfg Config, dispatcher Dispatcher, escalator Escalator, generator Generator, logger *zap.Logger) (*Driver, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DaysAhead < 1 {
		cfg.DaysAhead = 7
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 4 * time.Minute
	}

	cronLogger := &zapCronLogger{logger: logger.Sugar()}
	d := &Driver{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		dispatcher: dispatcher,
		escalator:  escalator,
		generator:  generator,
		cfg:        cfg,
		logger:     logger,
	}

	if _, err := d.cron.AddFunc(cfg.DispatchSpec, func() { d.RunDispatch(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid dispatch schedule %q: %w", cfg.DispatchSpec, err)
	}
	if _, err := d.cron.AddFunc(cfg.GenerationSpec, func() { d.RunGeneration(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid generation schedule %q: %w", cfg.GenerationSpec, err)
	}

	return d, nil
}

// Start starts the cron loop in its own goroutine
func (d *Driver) Start() {
	d.cron.Start()
	d.logger.Info("scheduler started",
		zap.String("dispatch_cron", d.cfg.DispatchSpec),
		zap.String("generation_cron", d.cfg.GenerationSpec),
		zap.String("timezone", d.cfg.Location.String()),
	)
}

// Stop stops scheduling new runs and waits for running jobs until ctx is done
func (d *Driver) Stop(ctx context.Context) {
	stopped := d.cron.Stop()
	select {
	case <-stopped.Done():
		d.logger.Info("scheduler stopped")
	case <-ctx.Done():
		d.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

// RunDispatch escalates unanswered reminders, then sends everything due.
// Overlapping calls return immediately.
func (d *Driver) RunDispatch(ctx context.Context) {
	if !d.dispatchMu.TryLock() {
		d.logger.Warn("dispatch run skipped, previous run still active")
		metrics.SchedulerJobRuns.WithLabelValues(jobDispatch, "skipped").Inc()
		return
	}
	defer d.dispatchMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.JobTimeout)
	defer cancel()

	result := "ok"
	if d.escalator != nil {
		if created, err := d.escalator.EscalateDue(ctx); err != nil {
			d.logger.Error("escalation pass failed", zap.Error(err))
			result = "error"
		} else if created > 0 {
			d.logger.Info("follow-up reminders created", zap.Int("count", created))
		}
	}

	if _, err := d.dispatcher.DispatchDue(ctx); err != nil {
		d.logger.Error("dispatch pass failed", zap.Error(err))
		result = "error"
	}

	metrics.SchedulerJobRuns.WithLabelValues(jobDispatch, result).Inc()
}

// RunGeneration generates reminders for every active schedule
func (d *Driver) RunGeneration(ctx context.Context) {
	if !d.generateMu.TryLock() {
		d.logger.Warn("generation run skipped, previous run still active")
		metrics.SchedulerJobRuns.WithLabelValues(jobGeneration, "skipped").Inc()
		return
	}
	defer d.generateMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.JobTimeout)
	defer cancel()

	created, err := d.generator.GenerateAll(ctx, d.cfg.DaysAhead)
	if err != nil {
		d.logger.Error("generation pass failed", zap.Error(err))
		metrics.SchedulerJobRuns.WithLabelValues(jobGeneration, "error").Inc()
		return
	}

	d.logger.Info("generation pass finished", zap.Int("created", created), zap.Int("days_ahead", d.cfg.DaysAhead))
	metrics.SchedulerJobRuns.WithLabelValues(jobGeneration, "ok").Inc()
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l *zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
