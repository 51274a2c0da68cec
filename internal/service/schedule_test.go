package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

var testActor = audit.Actor{ID: "patient-1", IPAddress: "127.0.0.1", UserAgent: "test"}

func validSchedule() *model.ReminderSchedule {
	return &model.ReminderSchedule{
		MedicationAssignmentID: "assignment-1",
		Frequency:              model.FrequencyTwiceDaily,
		ReminderTimes:          []string{"08:00", "20:00"},
		AdvanceMinutes:         15,
		Channels:               []model.Channel{model.ChannelSMS},
		StartDate:              model.CivilDate(fixedNow),
	}
}

func TestValidateSchedule(t *testing.T) {
	end := model.CivilDate(fixedNow).AddDate(0, 0, -1)

	tests := []struct {
		name   string
		mutate func(s *model.ReminderSchedule)
		valid  bool
	}{
		{"valid", func(s *model.ReminderSchedule) {}, true},
		{"empty reminder times", func(s *model.ReminderSchedule) { s.ReminderTimes = nil }, false},
		{"malformed time", func(s *model.ReminderSchedule) { s.ReminderTimes = []string{"8am"} }, false},
		{"hour out of range", func(s *model.ReminderSchedule) { s.ReminderTimes = []string{"24:00"} }, false},
		{"duplicate time", func(s *model.ReminderSchedule) { s.ReminderTimes = []string{"08:00", "08:00"} }, false},
		{"unknown frequency", func(s *model.ReminderSchedule) { s.Frequency = "hourly" }, false},
		{"negative advance", func(s *model.ReminderSchedule) { s.AdvanceMinutes = -5 }, false},
		{"no channel", func(s *model.ReminderSchedule) { s.Channels = nil }, false},
		{"unknown channel", func(s *model.ReminderSchedule) { s.Channels = []model.Channel{"pager"} }, false},
		{"end before start", func(s *model.ReminderSchedule) { s.EndDate = &end }, false},
		{"end equals start", func(s *model.ReminderSchedule) { e := s.StartDate; s.EndDate = &e }, true},
		{"bad quiet hours", func(s *model.ReminderSchedule) { s.QuietHours = &model.QuietHours{Start: "22:00", End: "7"} }, false},
		{"wrapping quiet hours", func(s *model.ReminderSchedule) { s.QuietHours = &model.QuietHours{Start: "22:00", End: "07:00"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchedule()
			tt.mutate(s)

			err := ValidateSchedule(s)

			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperror.Is(err, apperror.CodeValidation), "expected validation error, got %v", err)
			}
		})
	}
}

type scheduleFixture struct {
	schedules   *MockScheduleRepository
	assignments *MockAssignmentRepository
	generator   *MockReminderGenerator
	audit       *MockAuditRecorder
	service     *ScheduleService
}

func newScheduleFixture() *scheduleFixture {
	f := &scheduleFixture{
		schedules:   new(MockScheduleRepository),
		assignments: new(MockAssignmentRepository),
		generator:   new(MockReminderGenerator),
		audit:       new(MockAuditRecorder),
	}
	f.service = NewScheduleService(f.schedules, f.assignments, f.generator, f.audit, 7, time.UTC, zap.NewNop())
	f.service.now = func() time.Time { return fixedNow }
	f.audit.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return f
}

func TestScheduleService_Create_Success(t *testing.T) {
	// Arrange
	f := newScheduleFixture()
	f.assignments.On("FindByID", mock.Anything, "assignment-1").Return(testAssignment(), nil)
	f.schedules.On("Create", mock.Anything, mock.AnythingOfType("*model.ReminderSchedule")).Return(nil)
	f.generator.On("Generate", mock.Anything, mock.Anything, 7).Return([]model.Reminder{}, nil)
	schedule := validSchedule()
	schedule.EscalateIfMissed = true

	// Act
	err := f.service.Create(context.Background(), testActor, schedule)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, schedule.ID)
	assert.True(t, schedule.IsActive)
	assert.Equal(t, "patient-1", schedule.PatientID)
	assert.Equal(t, DefaultEscalateDelayMinutes, schedule.EscalateDelayMinutes)
	f.generator.AssertCalled(t, "Generate", mock.Anything, schedule.ID, 7)
	f.audit.AssertCalled(t, "Record", mock.Anything, testActor, audit.OperationCreate, audit.ResourceSchedule, schedule.ID, mock.Anything)
}

func TestScheduleService_Create_RejectsInactiveAssignment(t *testing.T) {
	f := newScheduleFixture()
	paused := testAssignment()
	paused.Status = model.AssignmentStatusPaused
	f.assignments.On("FindByID", mock.Anything, "assignment-1").Return(paused, nil)

	err := f.service.Create(context.Background(), testActor, validSchedule())

	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
	f.schedules.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestScheduleService_Create_RejectsInvalidTimes(t *testing.T) {
	f := newScheduleFixture()
	f.assignments.On("FindByID", mock.Anything, "assignment-1").Return(testAssignment(), nil)
	schedule := validSchedule()
	schedule.ReminderTimes = []string{"25:61"}

	err := f.service.Create(context.Background(), testActor, schedule)

	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	f.schedules.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestScheduleService_Create_DuplicateIsConflict(t *testing.T) {
	f := newScheduleFixture()
	f.assignments.On("FindByID", mock.Anything, "assignment-1").Return(testAssignment(), nil)
	f.schedules.On("Create", mock.Anything, mock.Anything).
		Return(apperror.Conflict("a reminder schedule already exists for medication assignment assignment-1", nil))

	err := f.service.Create(context.Background(), testActor, validSchedule())

	assert.True(t, apperror.Is(err, apperror.CodeConflict))
	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduleService_Update_PartialFields(t *testing.T) {
	// Arrange
	f := newScheduleFixture()
	existing := validSchedule()
	existing.ID = "schedule-1"
	existing.QuietHours = &model.QuietHours{Start: "22:00", End: "06:00"}
	f.schedules.On("FindByID", mock.Anything, "schedule-1").Return(existing, nil)
	f.schedules.On("Update", mock.Anything, mock.Anything).Return(nil)
	advance := 30

	// Act
	updated, err := f.service.Update(context.Background(), testActor, "schedule-1", SchedulePatch{
		ReminderTimes:   []string{"09:00"},
		AdvanceMinutes:  &advance,
		ClearQuietHours: true,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, updated.ReminderTimes)
	assert.Equal(t, 30, updated.AdvanceMinutes)
	assert.Nil(t, updated.QuietHours)
	assert.Equal(t, []model.Channel{model.ChannelSMS}, updated.Channels, "untouched fields keep their value")
}

func TestScheduleService_Update_RevalidatesWholeSchedule(t *testing.T) {
	f := newScheduleFixture()
	existing := validSchedule()
	existing.ID = "schedule-1"
	f.schedules.On("FindByID", mock.Anything, "schedule-1").Return(existing, nil)
	end := existing.StartDate.AddDate(0, 0, -3)

	_, err := f.service.Update(context.Background(), testActor, "schedule-1", SchedulePatch{EndDate: &end})

	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	f.schedules.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestScheduleService_Deactivate(t *testing.T) {
	f := newScheduleFixture()
	inactive := validSchedule()
	inactive.ID = "schedule-1"
	f.schedules.On("SetActive", mock.Anything, "schedule-1", false).Return(int64(4), nil)
	f.schedules.On("FindByID", mock.Anything, "schedule-1").Return(inactive, nil)

	schedule, err := f.service.Deactivate(context.Background(), testActor, "schedule-1")

	require.NoError(t, err)
	assert.Equal(t, "schedule-1", schedule.ID)
	f.audit.AssertCalled(t, "Record", mock.Anything, testActor, audit.OperationUpdate, audit.ResourceSchedule, "schedule-1",
		map[string]interface{}{"is_active": false, "cancelled_reminders": int64(4)})
	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduleService_Activate_GeneratesAhead(t *testing.T) {
	f := newScheduleFixture()
	active := validSchedule()
	active.ID = "schedule-1"
	active.IsActive = true
	f.schedules.On("SetActive", mock.Anything, "schedule-1", true).Return(int64(0), nil)
	f.schedules.On("FindByID", mock.Anything, "schedule-1").Return(active, nil)
	f.generator.On("Generate", mock.Anything, "schedule-1", 7).Return([]model.Reminder{{ID: "r1"}}, nil)

	schedule, err := f.service.Activate(context.Background(), testActor, "schedule-1")

	require.NoError(t, err)
	assert.True(t, schedule.IsActive)
	f.generator.AssertExpectations(t)
}

func TestScheduleService_Delete_ReturnsCancelledCount(t *testing.T) {
	f := newScheduleFixture()
	f.schedules.On("Delete", mock.Anything, "schedule-1").Return(int64(3), nil)

	cancelled, err := f.service.Delete(context.Background(), testActor, "schedule-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), cancelled)
}

func TestScheduleService_Generate_BoundsDays(t *testing.T) {
	f := newScheduleFixture()

	_, err := f.service.Generate(context.Background(), "schedule-1", MaxGenerationDays+1)

	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestScheduleService_Generate_UnknownScheduleIsNotFound(t *testing.T) {
	f := newScheduleFixture()
	f.schedules.On("FindByID", mock.Anything, "missing").Return(nil, apperror.NotFound("reminder schedule", "missing"))

	_, err := f.service.Generate(context.Background(), "missing", 3)

	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}
