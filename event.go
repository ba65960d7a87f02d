package obdcan

import "fmt"

// EventType is the severity of a driver event
type EventType int

const (
	EventTypeError EventType = iota
	EventTypeWarning
	EventTypeInfo
	EventTypeDebug
)

var eventNames = [...]string{"ERROR", "WARN", "INFO", "DEBUG"}

func (et EventType) String() string {
	if et < 0 || int(et) >= len(eventNames) {
		return "UNKNOWN"
	}
	return eventNames[et]
}

// Event is an asynchronous message from a driver's receive side
type Event struct {
	Driver  string
	Type    EventType
	Details string
}

func (e Event) String() string {
	if e.Driver == "" {
		return fmt.Sprintf("[%s] %s", e.Type, e.Details)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Driver, e.Details)
}
