package engine

import "pipelined.dev/auproc"

// EventBuffer is a MIDI buffer with fixed data capacity. Events are kept
// sorted by time and their data is stored in a single byte slice, so
// reservations never allocate.
type EventBuffer struct {
	frames    int
	maxFrames int
	data      []byte
	events    []auproc.MIDIEvent
}

// NewEventBuffer returns a buffer that holds up to capacity bytes of
// event data within blocks of up to maxFrames frames.
func NewEventBuffer(capacity, maxFrames int) *EventBuffer {
	return &EventBuffer{
		frames:    maxFrames,
		maxFrames: maxFrames,
		data:      make([]byte, 0, capacity),
		events:    make([]auproc.MIDIEvent, 0, capacity),
	}
}

func (b *EventBuffer) setFrames(n int) {
	if n > b.maxFrames {
		n = b.maxFrames
	}
	b.frames = n
}

// Clear removes all events.
func (b *EventBuffer) Clear() {
	b.data = b.data[:0]
	b.events = b.events[:0]
}

// Len returns the number of events.
func (b *EventBuffer) Len() int {
	return len(b.events)
}

// Event returns event i.
func (b *EventBuffer) Event(i int) auproc.MIDIEvent {
	return b.events[i]
}

// Reserve appends an event of size bytes at time and returns its data.
// Nil is returned if size is not positive, time is outside of the block
// or before the last event, or the buffer is full.
func (b *EventBuffer) Reserve(time, size int) []byte {
	if size <= 0 || time < 0 || time >= b.frames {
		return nil
	}
	if n := len(b.events); n > 0 && time < b.events[n-1].Time {
		return nil
	}
	l := len(b.data)
	if size > cap(b.data)-l || len(b.events) == cap(b.events) {
		return nil
	}
	b.data = b.data[:l+size]
	p := b.data[l : l+size : l+size]
	b.events = append(b.events, auproc.MIDIEvent{Time: time, Data: p})
	return p
}

// Write appends a copy of data at time. False is returned if the event
// cannot be reserved.
func (b *EventBuffer) Write(time int, data []byte) bool {
	p := b.Reserve(time, len(data))
	if p == nil {
		return false
	}
	copy(p, data)
	return true
}

var _ auproc.MIDIBuffer = (*EventBuffer)(nil)
