package handler

import (
	"context"
	"net/url"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

type MockScheduleService struct{ mock.Mock }

func (m *MockScheduleService) Create(ctx context.Context, actor audit.Actor, s *model.ReminderSchedule) error {
	return m.Called(ctx, actor, s).Error(0)
}

func (m *MockScheduleService) Get(ctx context.Context, id string) (*model.ReminderSchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleService) ListByPatient(ctx context.Context, patientID string) ([]model.ReminderSchedule, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleService) Update(ctx context.Context, actor audit.Actor, id string, patch service.SchedulePatch) (*model.ReminderSchedule, error) {
	args := m.Called(ctx, actor, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleService) Activate(ctx context.Context, actor audit.Actor, id string) (*model.ReminderSchedule, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleService) Deactivate(ctx context.Context, actor audit.Actor, id string) (*model.ReminderSchedule, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReminderSchedule), args.Error(1)
}

func (m *MockScheduleService) Delete(ctx context.Context, actor audit.Actor, id string) (int64, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockScheduleService) Generate(ctx context.Context, id string, days int) ([]model.Reminder, error) {
	args := m.Called(ctx, id, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reminder), args.Error(1)
}

type MockReminderService struct{ mock.Mock }

func (m *MockReminderService) Get(ctx context.Context, id string) (*model.Reminder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reminder), args.Error(1)
}

func (m *MockReminderService) List(ctx context.Context, filter repository.ReminderFilter) ([]model.Reminder, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reminder), args.Error(1)
}

func (m *MockReminderService) Cancel(ctx context.Context, actor audit.Actor, id string) (*model.Reminder, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reminder), args.Error(1)
}

func (m *MockReminderService) Deliveries(ctx context.Context, id string) ([]model.DeliveryEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DeliveryEvent), args.Error(1)
}

func (m *MockReminderService) ApplyDeliveryStatus(ctx context.Context, sid, status, errorCode string) (*model.Reminder, error) {
	args := m.Called(ctx, sid, status, errorCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reminder), args.Error(1)
}

type MockEventService struct{ mock.Mock }

func (m *MockEventService) Create(ctx context.Context, actor audit.Actor, ev *model.MedicationEvent) error {
	return m.Called(ctx, actor, ev).Error(0)
}

func (m *MockEventService) Update(ctx context.Context, actor audit.Actor, id string, patch service.EventPatch) (*model.MedicationEvent, error) {
	args := m.Called(ctx, actor, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicationEvent), args.Error(1)
}

func (m *MockEventService) Delete(ctx context.Context, actor audit.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockEventService) List(ctx context.Context, filter repository.EventFilter) ([]model.MedicationEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MedicationEvent), args.Error(1)
}

type MockAdherenceService struct{ mock.Mock }

func (m *MockAdherenceService) GetStats(ctx context.Context, patientID string, assignmentID *string, period model.PeriodType) (*model.AdherenceStats, error) {
	args := m.Called(ctx, patientID, assignmentID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdherenceStats), args.Error(1)
}

func (m *MockAdherenceService) DailyScores(ctx context.Context, patientID string, assignmentID *string, days int) ([]model.DailyScore, error) {
	args := m.Called(ctx, patientID, assignmentID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DailyScore), args.Error(1)
}

type MockReportService struct{ mock.Mock }

func (m *MockReportService) GenerateReport(ctx context.Context, actor audit.Actor, patientID string, from, to time.Time) (*model.Report, error) {
	args := m.Called(ctx, actor, patientID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportService) GetReport(ctx context.Context, id string) (*model.Report, []byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Report), args.Get(1).([]byte), args.Error(2)
}

func (m *MockReportService) ListReports(ctx context.Context, patientID string) ([]model.Report, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Report), args.Error(1)
}

type MockCorrelator struct{ mock.Mock }

func (m *MockCorrelator) HandleInbound(ctx context.Context, from, text string) (*service.CorrelationResult, error) {
	args := m.Called(ctx, from, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CorrelationResult), args.Error(1)
}

type MockVerifier struct{ mock.Mock }

func (m *MockVerifier) Verify(fullURL, signature string, form url.Values) bool {
	return m.Called(fullURL, signature, form).Bool(0)
}

type MockAssignmentService struct{ mock.Mock }

func (m *MockAssignmentService) Sync(ctx context.Context, actor audit.Actor, a *model.MedicationAssignment) (*service.SyncResult, error) {
	args := m.Called(ctx, actor, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SyncResult), args.Error(1)
}

func (m *MockAssignmentService) Confirm(ctx context.Context, actor audit.Actor, id string) (*model.MedicationAssignment, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicationAssignment), args.Error(1)
}

type MockContactService struct{ mock.Mock }

func (m *MockContactService) Upsert(ctx context.Context, actor audit.Actor, contact *model.PatientContact) error {
	return m.Called(ctx, actor, contact).Error(0)
}

type MockPatientDataService struct{ mock.Mock }

func (m *MockPatientDataService) Export(ctx context.Context, actor audit.Actor, patientID string) (*service.PatientDataExport, error) {
	args := m.Called(ctx, actor, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PatientDataExport), args.Error(1)
}

func (m *MockPatientDataService) Erase(ctx context.Context, actor audit.Actor, patientID string) (*service.ErasureResult, error) {
	args := m.Called(ctx, actor, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ErasureResult), args.Error(1)
}

type MockPinger struct{ mock.Mock }

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
