package main

import "fmt"

type EventKind int

const (
	NoteOn EventKind = iota
	NoteOff
)

func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "NOTE_ON"
	case NoteOff:
		return "NOTE_OFF"
	}
	return "UNKNOWN"
}

// Event is one key transition, consumed immediately by every sink.
type Event struct {
	Kind     EventKind
	Pitch    uint8
	Velocity uint8
	Channel  uint8
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s(%d) vel=%d ch=%d", e.Kind, pitchName(int(e.Pitch)), e.Pitch, e.Velocity, e.Channel)
}

// Sink receives every event the scanner emits. Implementations never report
// failures back; a dead transport is logged and skipped.
type Sink interface {
	Send(ev Event)
}

// RecordingSink keeps the most recent events in memory.
type RecordingSink struct {
	Limit  int
	events []Event
}

func NewRecordingSink(limit int) *RecordingSink {
	return &RecordingSink{Limit: limit}
}

func (r *RecordingSink) Send(ev Event) {
	r.events = append(r.events, ev)
	if r.Limit > 0 && len(r.events) > r.Limit {
		r.events = r.events[len(r.events)-r.Limit:]
	}
}

// Events returns a copy, oldest first.
func (r *RecordingSink) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *RecordingSink) Reset() { r.events = r.events[:0] }
