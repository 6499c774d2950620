package midi

import (
	"pipelined.dev/auproc"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/metric"
)

// Receiver captures events of the input connector. Every event is sent as
// a separate (absolute time, Uint8 array) message. Events are dropped if
// the channel is full.
type Receiver struct {
	auproc.State
	conns   []auproc.Connector
	in      auproc.MIDIConnector
	writer  *message.Writer
	dropped metric.DropFunc
}

// NewReceiver returns a receiver that reads in connector.
func NewReceiver(w *message.Writer, in auproc.Connector) (*Receiver, error) {
	if w == nil {
		return nil, auproc.ErrNoChannel
	}
	conns := []auproc.Connector{in}
	i, err := auproc.MIDIInput(conns, 0)
	if err != nil {
		return nil, err
	}
	r := Receiver{
		conns:  conns,
		in:     i,
		writer: w,
	}
	r.dropped = metric.Dropper(&r)
	return &r, nil
}

// Connectors returns receiver input connector.
func (r *Receiver) Connectors() []auproc.Connector {
	return r.conns
}

// Process sends events of the block.
func (r *Receiver) Process(b auproc.Block) error {
	if r.Closed() {
		return nil
	}
	buf := r.in.MIDIBuffer(b.Frames)
	for i := 0; i < buf.Len(); i++ {
		e := buf.Event(i)
		if len(e.Data) == 0 {
			continue
		}
		if err := r.send(b.Start+int64(e.Time), e.Data); err != nil {
			r.writer.Clear()
			r.dropped(1)
		}
	}
	return nil
}

func (r *Receiver) send(time int64, data []byte) error {
	r.writer.Clear()
	if err := r.writer.AddInteger(time); err != nil {
		return err
	}
	if err := r.writer.AddBytes(data); err != nil {
		return err
	}
	return r.writer.TrySend()
}
