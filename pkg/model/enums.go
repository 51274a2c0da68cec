package model

import "fmt"

// Frequency represents how often a schedule fires per day
type Frequency string

const (
	FrequencyOnce            Frequency = "once"
	FrequencyDaily           Frequency = "daily"
	FrequencyTwiceDaily      Frequency = "twice_daily"
	FrequencyThreeTimesDaily Frequency = "three_times_daily"
	FrequencyCustom          Frequency = "custom"
)

// Valid reports whether f is a known frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily, FrequencyCustom:
		return true
	}
	return false
}

// ParseFrequency converts a string into a Frequency
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency: %q", s)
	}
	return f, nil
}

// Channel represents a delivery channel
type Channel string

const (
	ChannelPush     Channel = "push"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// channelPriority lists channels from highest to lowest priority
var channelPriority = []Channel{ChannelPush, ChannelSMS, ChannelWhatsApp, ChannelEmail}

// AllChannels returns every channel in priority order
func AllChannels() []Channel {
	return append([]Channel(nil), channelPriority...)
}

// Valid reports whether c is a known channel
func (c Channel) Valid() bool {
	return c.Priority() >= 0
}

// Priority returns the rank of the channel, 0 being the highest. Unknown channels return -1.
func (c Channel) Priority() int {
	for i, ch := range channelPriority {
		if ch == c {
			return i
		}
	}
	return -1
}

// ParseChannel converts a string into a Channel
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel: %q", s)
	}
	return c, nil
}

// HighestPriorityChannel picks the single delivery channel for a reminder
func HighestPriorityChannel(channels []Channel) (Channel, bool) {
	best := Channel("")
	bestRank := len(channelPriority)
	for _, c := range channels {
		if rank := c.Priority(); rank >= 0 && rank < bestRank {
			best, bestRank = c, rank
		}
	}
	return best, best != ""
}

// ReminderStatus represents the delivery state of a reminder
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusDelivered ReminderStatus = "delivered"
	ReminderStatusRead      ReminderStatus = "read"
	ReminderStatusResponded ReminderStatus = "responded"
	ReminderStatusFailed    ReminderStatus = "failed"
	ReminderStatusCancelled ReminderStatus = "cancelled"
)

// pending -> failed happens when the dispatcher runs out of retries
var reminderTransitions = map[ReminderStatus][]ReminderStatus{
	ReminderStatusPending:   {ReminderStatusSent, ReminderStatusCancelled, ReminderStatusFailed},
	ReminderStatusSent:      {ReminderStatusDelivered, ReminderStatusRead, ReminderStatusResponded, ReminderStatusFailed},
	ReminderStatusDelivered: {ReminderStatusRead, ReminderStatusResponded, ReminderStatusFailed},
	ReminderStatusRead:      {ReminderStatusResponded},
}

// AwaitingResponse lists the statuses a reply can be correlated against
var AwaitingResponse = []ReminderStatus{ReminderStatusSent, ReminderStatusDelivered, ReminderStatusRead}

// Valid reports whether s is a known reminder status
func (s ReminderStatus) Valid() bool {
	switch s {
	case ReminderStatusPending, ReminderStatusSent, ReminderStatusDelivered, ReminderStatusRead,
		ReminderStatusResponded, ReminderStatusFailed, ReminderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s ReminderStatus) IsTerminal() bool {
	return len(reminderTransitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is a legal transition
func (s ReminderStatus) CanTransitionTo(next ReminderStatus) bool {
	for _, allowed := range reminderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PredecessorsOf returns every status that may transition into next
func PredecessorsOf(next ReminderStatus) []ReminderStatus {
	var from []ReminderStatus
	for _, s := range []ReminderStatus{ReminderStatusPending, ReminderStatusSent, ReminderStatusDelivered, ReminderStatusRead} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// ParseReminderStatus converts a string into a ReminderStatus
func ParseReminderStatus(s string) (ReminderStatus, error) {
	st := ReminderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown reminder status: %q", s)
	}
	return st, nil
}

// EventStatus represents the outcome of a dose
type EventStatus string

const (
	EventStatusTaken   EventStatus = "taken"
	EventStatusSkipped EventStatus = "skipped"
	EventStatusMissed  EventStatus = "missed"
)

// Valid reports whether s is a known event status
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusTaken, EventStatusSkipped, EventStatusMissed:
		return true
	}
	return false
}

// ParseEventStatus converts a string into an EventStatus
func ParseEventStatus(s string) (EventStatus, error) {
	st := EventStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown event status: %q", s)
	}
	return st, nil
}

// PeriodType represents the aggregation window of adherence stats
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodOverall PeriodType = "overall"
)

// AllPeriods lists every period type in recomputation order
var AllPeriods = []PeriodType{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodOverall}

// Valid reports whether p is a known period type
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodOverall:
		return true
	}
	return false
}

// ParsePeriodType converts a string into a PeriodType
func ParsePeriodType(s string) (PeriodType, error) {
	p := PeriodType(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown period type: %q", s)
	}
	return p, nil
}

// ResponseClass is the keyword classification of an inbound reply
type ResponseClass string

const (
	ResponsePositive     ResponseClass = "positive"
	ResponseSkip         ResponseClass = "skip"
	ResponseNegative     ResponseClass = "negative"
	ResponseUnrecognized ResponseClass = "unrecognized"
)

// EventStatus maps a recognized classification to the event it records
func (c ResponseClass) EventStatus() (EventStatus, bool) {
	switch c {
	case ResponsePositive:
		return EventStatusTaken, true
	case ResponseSkip:
		return EventStatusSkipped, true
	case ResponseNegative:
		return EventStatusMissed, true
	}
	return "", false
}

// AdherenceBand is the qualitative label of an adherence score
type AdherenceBand string

const (
	BandExcellent AdherenceBand = "excellent"
	BandGood      AdherenceBand = "good"
	BandFair      AdherenceBand = "fair"
	BandPoor      AdherenceBand = "poor"
	BandNoData    AdherenceBand = "no_data"
)

// BandFor labels a score; a day with nothing scheduled has no data
func BandFor(score float64, totalScheduled int) AdherenceBand {
	switch {
	case totalScheduled == 0:
		return BandNoData
	case score >= 90:
		return BandExcellent
	case score >= 75:
		return BandGood
	case score >= 60:
		return BandFair
	default:
		return BandPoor
	}
}

// DeliveryStatus is a status reported by a provider callback
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// ReminderStatus maps a callback status onto the reminder state machine
func (d DeliveryStatus) ReminderStatus() (ReminderStatus, bool) {
	switch d {
	case DeliveryStatusDelivered:
		return ReminderStatusDelivered, true
	case DeliveryStatusRead:
		return ReminderStatusRead, true
	case DeliveryStatusFailed:
		return ReminderStatusFailed, true
	}
	return "", false
}
