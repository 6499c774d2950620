package midi

import (
	"pipelined.dev/auproc"
	"pipelined.dev/auproc/internal/schedule"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/metric"
)

// Sender plays MIDI events scheduled through the message channel. Each
// message is an optional start time followed by raw event bytes as
// String or Uint8/Int8 array. Events are never split: an event is
// written whole in the block its frame falls into. Events scheduled
// before an already written event of the block are dropped as late, so
// callers should schedule events in time order.
type Sender struct {
	auproc.State
	conns     []auproc.Connector
	out       auproc.MIDIConnector
	scheduler *schedule.Scheduler
	dropped   metric.DropFunc
}

// NewSender returns a sender that writes into out connector.
func NewSender(events *message.Reader, out auproc.Connector) (*Sender, error) {
	if events == nil {
		return nil, auproc.ErrNoChannel
	}
	conns := []auproc.Connector{out}
	o, err := auproc.MIDIOutput(conns, 0)
	if err != nil {
		return nil, err
	}
	s := Sender{
		conns: conns,
		out:   o,
	}
	s.dropped = metric.Dropper(&s)
	s.scheduler = schedule.New(events, isEvent, s.dropped)
	return &s, nil
}

func isEvent(v message.Value) bool {
	switch v.Kind() {
	case message.String:
		return true
	case message.Array:
		t := v.ArrayType()
		return t == message.Uint8 || t == message.Int8
	}
	return false
}

// Connectors returns sender output connector.
func (s *Sender) Connectors() []auproc.Connector {
	return s.conns
}

// Pending returns true if an event is retained for the next blocks.
func (s *Sender) Pending() bool {
	return s.scheduler.Pending()
}

// Reset discards retained event and all queued messages. Must be called
// from the processing goroutine.
func (s *Sender) Reset() {
	s.scheduler.Reset()
}

// Process writes events scheduled within the block.
func (s *Sender) Process(b auproc.Block) error {
	if s.Closed() {
		return nil
	}
	buf := s.out.MIDIBuffer(b.Frames)
	buf.Clear()

	f0, f1 := b.Start, b.End()
	for {
		e, ok := s.scheduler.Pull(f0)
		if !ok || e.Start >= f1 {
			return nil
		}
		if e.Start < f0 {
			s.dropped(1)
			s.scheduler.Done()
			continue
		}
		data := e.Payload.Bytes()
		if p := buf.Reserve(int(e.Start-b.Start), len(data)); p != nil {
			copy(p, data)
		} else {
			s.dropped(1)
		}
		f0 = e.Start
		s.scheduler.Done()
	}
}
