// Package schedule replays timestamped events read from a message channel
// into consecutive blocks.
package schedule

import "pipelined.dev/auproc/message"

// Event is a scheduled payload. Start is the absolute frame of the first
// unconsumed payload element, Offset is the number of consumed elements.
type Event struct {
	Start   int64
	Offset  int
	Payload message.Value
}

// Remaining returns number of unconsumed payload elements.
func (e *Event) Remaining() int {
	return e.Payload.Len() - e.Offset
}

// End returns the absolute frame right after the last payload element.
func (e *Event) End() int64 {
	return e.Start + int64(e.Remaining())
}

// Skip consumes n elements.
func (e *Event) Skip(n int) {
	e.Offset += n
	e.Start += int64(n)
}

// AcceptFunc tells if the payload value can be scheduled.
type AcceptFunc func(message.Value) bool

// Scheduler keeps at most one pending event between blocks. The payload
// references reader memory, so the next message is not read until the
// pending event is done.
type Scheduler struct {
	reader  *message.Reader
	accept  AcceptFunc
	pending bool
	event   Event
	dropped func(int64)
}

// New returns a scheduler that reads events from provided reader. Dropped
// is called for every discarded message, it may be nil.
func New(r *message.Reader, accept AcceptFunc, dropped func(int64)) *Scheduler {
	if dropped == nil {
		dropped = func(int64) {}
	}
	return &Scheduler{
		reader:  r,
		accept:  accept,
		dropped: dropped,
	}
}

// Pull returns the pending event. If there is none, a single message is
// read without blocking. The message is expected to carry an optional
// start time followed by the payload, start defaults to provided frame.
// False is returned if there is no message or it was discarded.
func (s *Scheduler) Pull(start int64) (*Event, bool) {
	if s.pending {
		return &s.event, true
	}
	ok, err := s.reader.TryNext()
	if err != nil {
		s.dropped(1)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	v := s.reader.Value()
	if v.Kind() == message.None {
		return nil, false
	}
	if t, ok := frame(v); ok {
		start = t
		v = s.reader.Value()
	}
	if !s.accept(v) {
		s.reader.Drain()
		s.dropped(1)
		return nil, false
	}
	s.event = Event{Start: start, Payload: v}
	s.pending = true
	return &s.event, true
}

// Done discards the pending event.
func (s *Scheduler) Done() {
	s.pending = false
	s.event = Event{}
	s.reader.Drain()
}

// Pending returns true if an event is retained for next blocks.
func (s *Scheduler) Pending() bool {
	return s.pending
}

func frame(v message.Value) (int64, bool) {
	switch v.Kind() {
	case message.Integer:
		return v.Int()
	case message.Number:
		f, _ := v.Float()
		return int64(f), true
	}
	return 0, false
}

// Reset discards the pending event and every queued message. It returns
// the number of discarded messages and must be called from the reading
// side only.
func (s *Scheduler) Reset() int {
	n := 0
	if s.pending {
		s.pending = false
		s.event = Event{}
		n++
	}
	for {
		ok, err := s.reader.TryNext()
		if err != nil {
			n++
			continue
		}
		if !ok {
			break
		}
		n++
	}
	s.reader.Drain()
	return n
}
