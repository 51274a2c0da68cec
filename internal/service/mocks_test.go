package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

// MockScheduleRepository is a mock implementation of ScheduleRepositoryInterface
type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) Create(ctx context.Context, s *model.ReminderSchedule) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockScheduleRepository) FindByID(ctx context.Context, scheduleID string) (*model.ReminderSchedule, error) {
	args := m.Called(ctx, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleRepository) FindByAssignment(ctx context.Context, assignmentID string) (*model.ReminderSchedule, error) {
	args := m.Called(ctx, assignmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleRepository) FindByPatientID(ctx context.Context, patientID string) ([]model.ReminderSchedule, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleRepository) ListActive(ctx context.Context) ([]model.ReminderSchedule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleRepository) Update(ctx context.Context, s *model.ReminderSchedule) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockScheduleRepository) SetActive(ctx context.Context, scheduleID string, active bool) (int64, error) {
	args := m.Called(ctx, scheduleID, active)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockScheduleRepository) Delete(ctx context.Context, scheduleID string) (int64, error) {
	args := m.Called(ctx, scheduleID)
	return args.Get(0).(int64), args.Error(1)
}

// MockAssignmentRepository is a mock implementation of AssignmentRepositoryInterface
type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) FindByID(ctx context.Context, assignmentID string) (*model.MedicationAssignment, error) {
	args := m.Called(ctx, assignmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicationAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) Upsert(ctx context.Context, a *model.MedicationAssignment) (model.AssignmentStatus, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(model.AssignmentStatus), args.Error(1)
}

func (m *MockAssignmentRepository) TransitionStatus(ctx context.Context, assignmentID string, from []model.AssignmentStatus, next model.AssignmentStatus) (*model.MedicationAssignment, error) {
	args := m.Called(ctx, assignmentID, from, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicationAssignment), args.Error(1)
}

// MockReminderRepository is a mock implementation of ReminderRepositoryInterface
type MockReminderRepository struct {
	mock.Mock
}

func (m *MockReminderRepository) ScheduledTimesBetween(ctx context.Context, assignmentID string, from, to time.Time) ([]time.Time, error) {
	args := m.Called(ctx, assignmentID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *MockReminderRepository) InsertBatch(ctx context.Context, reminders []model.Reminder) ([]model.Reminder, error) {
	args := m.Called(ctx, reminders)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reminder), args.Error(1)
}

func (m *MockReminderRepository) FindByID(ctx context.Context, reminderID string) (*model.Reminder, error) {
	args := m.Called(ctx, reminderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reminder), args.Error(1)
}

func (m *MockReminderRepository) List(ctx context.Context, filter repository.ReminderFilter) ([]model.Reminder, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reminder), args.Error(1)
}

func (m *MockReminderRepository) DueIDs(ctx context.Context, now, since time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, now, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockReminderRepository) ClaimPending(ctx context.Context, reminderID string) (repository.ReminderClaim, error) {
	args := m.Called(ctx, reminderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.ReminderClaim), args.Error(1)
}

func (m *MockReminderRepository) Cancel(ctx context.Context, reminderID string) (*model.Reminder, error) {
	args := m.Called(ctx, reminderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reminder), args.Error(1)
}

func (m *MockReminderRepository) ApplyDeliveryStatus(ctx context.Context, providerMessageID string, status model.ReminderStatus, reason *string) (*model.Reminder, bool, error) {
	args := m.Called(ctx, providerMessageID, status, reason)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Reminder), args.Bool(1), args.Error(2)
}

func (m *MockReminderRepository) FindLatestAwaitingResponse(ctx context.Context, patientID string, since time.Time) (*model.Reminder, error) {
	args := m.Called(ctx, patientID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reminder), args.Error(1)
}

func (m *MockReminderRepository) RespondWithEvent(ctx context.Context, reminderID, responseText string, respondedAt time.Time, event *model.MedicationEvent) (*model.Reminder, error) {
	args := m.Called(ctx, reminderID, responseText, respondedAt, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reminder), args.Error(1)
}

func (m *MockReminderRepository) ListEscalationCandidates(ctx context.Context, now, since time.Time) ([]repository.EscalationCandidate, error) {
	args := m.Called(ctx, now, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.EscalationCandidate), args.Error(1)
}

func (m *MockReminderRepository) CreateEscalation(ctx context.Context, originalID string, followUp *model.Reminder) (bool, error) {
	args := m.Called(ctx, originalID, followUp)
	return args.Bool(0), args.Error(1)
}

// MockReminderClaim is a mock implementation of repository.ReminderClaim
type MockReminderClaim struct {
	mock.Mock
	reminder *model.Reminder
}

func newMockClaim(rem *model.Reminder) *MockReminderClaim {
	return &MockReminderClaim{reminder: rem}
}

func (m *MockReminderClaim) Reminder() *model.Reminder {
	return m.reminder
}

func (m *MockReminderClaim) MarkSent(ctx context.Context, providerMessageID string, sentAt time.Time) error {
	return m.Called(ctx, providerMessageID, sentAt).Error(0)
}

func (m *MockReminderClaim) RecordFailure(ctx context.Context, reason string) (model.ReminderStatus, error) {
	args := m.Called(ctx, reason)
	return args.Get(0).(model.ReminderStatus), args.Error(1)
}

func (m *MockReminderClaim) Cancel(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockReminderClaim) Release(ctx context.Context) {}

// MockEventRepository is a mock implementation of EventRepositoryInterface
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, ev *model.MedicationEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockEventRepository) FindByID(ctx context.Context, eventID string) (*model.MedicationEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicationEvent), args.Error(1)
}

func (m *MockEventRepository) Update(ctx context.Context, ev *model.MedicationEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockEventRepository) Delete(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockEventRepository) List(ctx context.Context, filter repository.EventFilter) ([]model.MedicationEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MedicationEvent), args.Error(1)
}

func (m *MockEventRepository) ExistsTaken(ctx context.Context, assignmentID string, doseTime time.Time) (bool, error) {
	args := m.Called(ctx, assignmentID, doseTime)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventRepository) DailyCounts(ctx context.Context, patientID string, assignmentID *string, from, to time.Time) ([]model.DailyScore, error) {
	args := m.Called(ctx, patientID, assignmentID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DailyScore), args.Error(1)
}

// MockAdherenceRepository is a mock implementation of AdherenceRepositoryInterface
type MockAdherenceRepository struct {
	mock.Mock
}

func (m *MockAdherenceRepository) Upsert(ctx context.Context, stats *model.AdherenceStats) error {
	return m.Called(ctx, stats).Error(0)
}

func (m *MockAdherenceRepository) Find(ctx context.Context, patientID string, assignmentID *string, period model.PeriodType) (*model.AdherenceStats, error) {
	args := m.Called(ctx, patientID, assignmentID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdherenceStats), args.Error(1)
}

func (m *MockAdherenceRepository) ListByPatient(ctx context.Context, patientID string) ([]model.AdherenceStats, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AdherenceStats), args.Error(1)
}

// MockContactRepository is a mock implementation of ContactRepositoryInterface
type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) FindByPatientID(ctx context.Context, patientID string) (*model.PatientContact, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientContact), args.Error(1)
}

func (m *MockContactRepository) FindByAddress(ctx context.Context, address string) (*model.PatientContact, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientContact), args.Error(1)
}

func (m *MockContactRepository) Upsert(ctx context.Context, c *model.PatientContact) error {
	return m.Called(ctx, c).Error(0)
}

// MockDeliveryEventRepository is a mock implementation of DeliveryEventRepositoryInterface
type MockDeliveryEventRepository struct {
	mock.Mock
}

func (m *MockDeliveryEventRepository) Record(ctx context.Context, ev *model.DeliveryEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockDeliveryEventRepository) ListByReminder(ctx context.Context, reminderID string) ([]model.DeliveryEvent, error) {
	args := m.Called(ctx, reminderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DeliveryEvent), args.Error(1)
}

// MockAuditRecorder is a mock implementation of AuditRecorder
type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Record(ctx context.Context, actor audit.Actor, op audit.OperationType, resource audit.ResourceType, resourceID string, details map[string]interface{}) error {
	return m.Called(ctx, actor, op, resource, resourceID, details).Error(0)
}

// MockDeliveryChannel is a mock implementation of DeliveryChannel
type MockDeliveryChannel struct {
	mock.Mock
}

func (m *MockDeliveryChannel) Send(ctx context.Context, channel model.Channel, address, message string) (string, error) {
	args := m.Called(ctx, channel, address, message)
	return args.String(0), args.Error(1)
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// MockAdherenceRecomputer is a mock implementation of AdherenceRecomputer
type MockAdherenceRecomputer struct {
	mock.Mock
}

func (m *MockAdherenceRecomputer) RecomputeAfterEventWrite(ctx context.Context, patientID, assignmentID string) {
	m.Called(ctx, patientID, assignmentID)
}

// MockReminderGenerator is a mock implementation of ReminderGeneratorInterface
type MockReminderGenerator struct {
	mock.Mock
}

func (m *MockReminderGenerator) Generate(ctx context.Context, scheduleID string, daysAhead int) ([]model.Reminder, error) {
	args := m.Called(ctx, scheduleID, daysAhead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reminder), args.Error(1)
}

// MockReportRepository is a mock implementation of ReportRepositoryInterface
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Save(ctx context.Context, report *model.Report) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockReportRepository) FindByID(ctx context.Context, reportID string) (*model.Report, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportRepository) ListByPatient(ctx context.Context, patientID string) ([]model.Report, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Report), args.Error(1)
}

// MockPatientDataRepository is a mock implementation of PatientDataRepositoryInterface
type MockPatientDataRepository struct {
	mock.Mock
}

func (m *MockPatientDataRepository) Erase(ctx context.Context, patientID string) (*repository.ErasedCounts, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ErasedCounts), args.Error(1)
}
