package model

import "time"

// AssignmentStatus represents the lifecycle of a medication assignment
type AssignmentStatus string

const (
	AssignmentStatusActive  AssignmentStatus = "active"
	AssignmentStatusPaused  AssignmentStatus = "paused"
	AssignmentStatusStopped AssignmentStatus = "stopped"
)

// Valid reports whether s is a known assignment status
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusActive, AssignmentStatusPaused, AssignmentStatusStopped:
		return true
	}
	return false
}

// MedicationAssignment is a patient's prescribed course of a medication.
// It is owned by the medication catalog; this service only reads it.
type MedicationAssignment struct {
	ID             string           `json:"id"`
	PatientID      string           `json:"patient_id"`
	MedicationName string           `json:"medication_name"`
	Dosage         string           `json:"dosage"`
	Frequency      string           `json:"frequency"`
	Status         AssignmentStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsActive reports whether reminders may be generated for the assignment
func (a *MedicationAssignment) IsActive() bool {
	return a.Status == AssignmentStatusActive
}

// PatientContact holds the delivery addresses of a patient
type PatientContact struct {
	PatientID string    `json:"patient_id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	WhatsApp  *string   `json:"whatsapp,omitempty"`
	Email     *string   `json:"email,omitempty"`
	PushToken *string   `json:"push_token,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddressFor returns the contact address used for the given channel
func (c *PatientContact) AddressFor(channel Channel) (string, bool) {
	var addr *string
	switch channel {
	case ChannelSMS:
		addr = c.Phone
	case ChannelWhatsApp:
		addr = c.WhatsApp
		if addr == nil {
			addr = c.Phone
		}
	case ChannelEmail:
		addr = c.Email
	case ChannelPush:
		addr = c.PushToken
	}
	if addr == nil || *addr == "" {
		return "", false
	}
	return *addr, true
}

// QuietHours is a time-of-day window during which reminders are not sent.
// End before Start means the window wraps past midnight.
type QuietHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether the given time of day falls inside the window.
// Start is inclusive, End is exclusive.
func (q QuietHours) Contains(t ClockTime) bool {
	start, err := ParseClockTime(q.Start)
	if err != nil {
		return false
	}
	end, err := ParseClockTime(q.End)
	if err != nil {
		return false
	}

	m, s, e := t.Minutes(), start.Minutes(), end.Minutes()
	switch {
	case s == e:
		return false
	case s < e:
		return m >= s && m < e
	default:
		return m >= s || m < e
	}
}

// ReminderSchedule is the recurring reminder configuration of one medication assignment
type ReminderSchedule struct {
	ID                     string      `json:"id"`
	PatientID              string      `json:"patient_id"`
	MedicationAssignmentID string      `json:"medication_assignment_id"`
	IsActive               bool        `json:"is_active"`
	Frequency              Frequency   `json:"frequency"`
	ReminderTimes          []string    `json:"reminder_times"`
	AdvanceMinutes         int         `json:"advance_minutes"`
	Channels               []Channel   `json:"channels"`
	AutoSkipIfTaken        bool        `json:"auto_skip_if_taken"`
	EscalateIfMissed       bool        `json:"escalate_if_missed"`
	EscalateDelayMinutes   int         `json:"escalate_delay_minutes"`
	QuietHours             *QuietHours `json:"quiet_hours,omitempty"`
	StartDate              time.Time   `json:"start_date"`
	EndDate                *time.Time  `json:"end_date,omitempty"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

// Reminder is one concrete reminder occurrence generated from a schedule
type Reminder struct {
	ID                     string         `json:"id"`
	ScheduleID             string         `json:"schedule_id"`
	PatientID              string         `json:"patient_id"`
	MedicationAssignmentID string         `json:"medication_assignment_id"`
	ScheduledTime          time.Time      `json:"scheduled_time"`
	ActualDoseTime         time.Time      `json:"actual_dose_time"`
	Channel                Channel        `json:"channel"`
	Status                 ReminderStatus `json:"status"`
	MessageText            string         `json:"message_text"`
	ResponseText           *string        `json:"response_text,omitempty"`
	RespondedAt            *time.Time     `json:"responded_at,omitempty"`
	SentAt                 *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt            *time.Time     `json:"delivered_at,omitempty"`
	ReadAt                 *time.Time     `json:"read_at,omitempty"`
	ProviderMessageID      *string        `json:"provider_message_id,omitempty"`
	RetryCount             int            `json:"retry_count"`
	MaxRetries             int            `json:"max_retries"`
	LastError              *string        `json:"last_error,omitempty"`
	EscalatedFrom          *string        `json:"escalated_from,omitempty"`
	EscalatedAt            *time.Time     `json:"escalated_at,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// DefaultMaxRetries is the number of send attempts before a reminder fails
const DefaultMaxRetries = 3

// MedicationEvent is one logged dose attempt
type MedicationEvent struct {
	ID                     string      `json:"id"`
	MedicationAssignmentID string      `json:"medication_assignment_id"`
	PatientID              string      `json:"patient_id"`
	ScheduledTime          time.Time   `json:"scheduled_time"`
	ScheduledDate          time.Time   `json:"scheduled_date"`
	Status                 EventStatus `json:"status"`
	ActualTime             *time.Time  `json:"actual_time,omitempty"`
	OnTime                 bool        `json:"on_time"`
	MinutesLate            *int        `json:"minutes_late,omitempty"`
	ReminderID             *string     `json:"reminder_id,omitempty"`
	Notes                  *string     `json:"notes,omitempty"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

// AdherenceStats is a cached adherence snapshot for a patient, optionally scoped to one medication
type AdherenceStats struct {
	ID                     string     `json:"id"`
	PatientID              string     `json:"patient_id"`
	MedicationAssignmentID *string    `json:"medication_assignment_id,omitempty"`
	PeriodType             PeriodType `json:"period_type"`
	PeriodStart            time.Time  `json:"period_start"`
	PeriodEnd              time.Time  `json:"period_end"`
	TotalScheduled         int        `json:"total_scheduled"`
	TotalTaken             int        `json:"total_taken"`
	TotalSkipped           int        `json:"total_skipped"`
	TotalMissed            int        `json:"total_missed"`
	OnTimeTaken            int        `json:"on_time_taken"`
	AdherenceScore         float64    `json:"adherence_score"`
	OnTimeScore            float64    `json:"on_time_score"`
	CurrentStreak          int        `json:"current_streak"`
	LongestStreak          int        `json:"longest_streak"`
	CalculatedAt           time.Time  `json:"calculated_at"`
}

// DailyScore is one point of an adherence chart
type DailyScore struct {
	Date           time.Time     `json:"date"`
	TotalScheduled int           `json:"total_scheduled"`
	TotalTaken     int           `json:"total_taken"`
	Score          float64       `json:"score"`
	Band           AdherenceBand `json:"band"`
}

// DeliveryEventKind distinguishes outbound attempts from provider callbacks
type DeliveryEventKind string

const (
	DeliveryEventAttempt  DeliveryEventKind = "attempt"
	DeliveryEventCallback DeliveryEventKind = "callback"
	DeliveryEventInbound  DeliveryEventKind = "inbound"
)

// DeliveryEvent is an append-only record of provider traffic for a reminder
type DeliveryEvent struct {
	ID                string            `json:"id"`
	ReminderID        *string           `json:"reminder_id,omitempty"`
	ProviderMessageID *string           `json:"provider_message_id,omitempty"`
	Kind              DeliveryEventKind `json:"kind"`
	Channel           *Channel          `json:"channel,omitempty"`
	Status            string            `json:"status"`
	Error             *string           `json:"error,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Report represents a generated adherence report
type Report struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	DateRangeStart time.Time `json:"date_range_start"`
	DateRangeEnd   time.Time `json:"date_range_end"`
	FilePath       string    `json:"file_path"`
	GeneratedAt    time.Time `json:"generated_at"`
	CreatedAt      time.Time `json:"created_at"`
}
