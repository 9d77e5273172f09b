package events

import "time"

// Event codes consumed by the notification worker. External workflows
// publish these on the platform bus; the realtime backend turns them
// into durable notifications. The vocabulary is open: unknown codes
// fall back to the generic handler.
const (
	AppointmentBooked    = "APPOINTMENT_BOOKED"
	AppointmentReminder  = "APPOINTMENT_REMINDER"
	AppointmentCancelled = "APPOINTMENT_CANCELLED"
	ReportCompleted      = "REPORT_COMPLETED"
	FollowupApproved     = "FOLLOWUP_APPROVED"
	NotifyUser           = "NOTIFY_USER"
)

// Internal lifecycle topics (in-process bus).
const (
	TopicSessionLifecycle = "session.lifecycle"
)

// Lifecycle event names.
const (
	SessionCompletedEvent = "session_completed"
	SessionCancelledEvent = "session_cancelled"
	SessionNoShowEvent    = "session_no_show"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event.
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewSessionLifecycleEvent builds the payload the notification worker
// needs to address both parties of a finished session.
func NewSessionLifecycleEvent(name, roomID, appointmentID, studentID, counselorID string) BaseEvent {
	return BaseEvent{
		Type: name,
		Data: map[string]interface{}{
			"room_id":        roomID,
			"appointment_id": appointmentID,
			"student_id":     studentID,
			"counselor_id":   counselorID,
		},
		OccurredAt: time.Now(),
	}
}
