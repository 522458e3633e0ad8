package ws

import (
	"time"
)

type EventType string

const (
	EventMatchDetected       EventType = "match.detected"
	EventMatchDispatched     EventType = "match.dispatched"
	EventMatchDispatchFailed EventType = "match.dispatch_failed"
	EventMatchAccepted       EventType = "match.accepted"
	EventMatchResearch       EventType = "match.research"
	EventPersonAdmitted      EventType = "person.admitted"
)

type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
