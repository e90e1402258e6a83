package home

import "time"

// EventLogCapacity is the number of entries the log retains.
const EventLogCapacity = 10

const eventTimeLayout = "2006-01-02 15:04:05"

type Event struct {
	Timestamp string `json:"timestamp"`
	Device    string `json:"device"`
	Action    string `json:"action"`
}

// EventLog is a bounded FIFO of device events. The oldest entry is evicted
// once the capacity is exceeded. Not safe for concurrent use; Home guards it.
type EventLog struct {
	capacity int
	entries  []Event
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = EventLogCapacity
	}
	return &EventLog{capacity: capacity, entries: make([]Event, 0, capacity)}
}

func (l *EventLog) Append(at time.Time, device, action string) {
	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, Event{
		Timestamp: at.Format(eventTimeLayout),
		Device:    device,
		Action:    action,
	})
}

// Len reports the number of retained entries.
func (l *EventLog) Len() int { return len(l.entries) }

// Entries returns a copy of all entries, oldest first.
func (l *EventLog) Entries() []Event {
	return l.Recent(len(l.entries))
}

// Recent returns a copy of the newest n entries, oldest first.
func (l *EventLog) Recent(n int) []Event {
	if n > len(l.entries) {
		n = len(l.entries)
	}
	if n < 0 {
		n = 0
	}
	out := make([]Event, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
