package domain

import "time"

// Event types emitted on the launcher event stream.
const (
	EventAccountRegistered = "account_registered"
	EventChannelCreated    = "channel_created"
	EventChannelDeleted    = "channel_deleted"
	EventMOTDUpdated       = "motd_updated"
)

// Event is a launcher lifecycle event, recorded in the durable event
// log and published to the event topic.
type Event struct {
	Type      string            `json:"type"`
	Email     string            `json:"email,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEvent returns an event of the given type stamped with the current
// time.
func NewEvent(eventType string) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
	}
}
