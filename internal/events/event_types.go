package events

import "time"

// EventType enumerates domain events emitted by the auth flows.
type EventType string

const (
	EventUserRegistered         EventType = "UserRegistered"
	EventUserLoggedIn           EventType = "UserLoggedIn"
	EventPasswordResetRequested EventType = "PasswordResetRequested"
	EventPasswordChanged        EventType = "PasswordChanged"
	EventEmailVerified          EventType = "EmailVerified"
)

// Event is the payload handed to subscribers.
type Event struct {
	Type       EventType
	UserID     int64
	Email      string
	Payload    map[string]any
	OccurredAt time.Time
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, userID int64, email string, payload map[string]any) Event {
	return Event{
		Type:       eventType,
		UserID:     userID,
		Email:      email,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}
