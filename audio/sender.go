package audio

import (
	"pipelined.dev/auproc"
	"pipelined.dev/auproc/internal/schedule"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/metric"
)

// Sender plays sample runs scheduled through the message channel. Each
// message is an optional start time followed by Float32 array. Messages
// without start time are played at the current position. Runs that
// cross the block boundary are continued in the next block.
type Sender struct {
	auproc.State
	conns     []auproc.Connector
	out       auproc.AudioConnector
	scheduler *schedule.Scheduler
}

// NewSender returns a sender that writes into out connector.
func NewSender(events *message.Reader, out auproc.Connector) (*Sender, error) {
	if events == nil {
		return nil, auproc.ErrNoChannel
	}
	conns := []auproc.Connector{out}
	o, err := auproc.AudioOutput(conns, 0)
	if err != nil {
		return nil, err
	}
	s := Sender{
		conns: conns,
		out:   o,
	}
	s.scheduler = schedule.New(events, isSamples, metric.Dropper(&s))
	return &s, nil
}

func isSamples(v message.Value) bool {
	return v.ArrayType() == message.Float32
}

// Connectors returns sender output connector.
func (s *Sender) Connectors() []auproc.Connector {
	return s.conns
}

// Pending returns true if a run is retained for the next blocks.
func (s *Sender) Pending() bool {
	return s.scheduler.Pending()
}

// Reset discards retained run and all queued messages. Must be called
// from the processing goroutine.
func (s *Sender) Reset() {
	s.scheduler.Reset()
}

// Process writes scheduled runs into the block, the rest is silence.
func (s *Sender) Process(b auproc.Block) error {
	if s.Closed() {
		return nil
	}
	out := s.out.AudioBuffer(b.Frames)
	for i := range out {
		out[i] = 0
	}

	// port buffers can be shorter than the block
	f0, f1 := b.Start, b.Start+int64(len(out))
	for {
		e, ok := s.scheduler.Pull(f0)
		if !ok {
			return nil
		}
		if e.Start >= f1 {
			return nil
		}
		if e.Start < f0 {
			skip := f0 - e.Start
			if skip >= int64(e.Remaining()) {
				s.scheduler.Done()
				continue
			}
			e.Skip(int(skip))
		}
		n := e.Payload.CopyFloat32s(out[e.Start-b.Start:], e.Offset)
		if e.End() > f1 {
			e.Skip(n)
			return nil
		}
		end := e.Start + int64(n)
		s.scheduler.Done()
		if n > 0 {
			f0 = end
		}
	}
}
