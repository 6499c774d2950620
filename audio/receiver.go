package audio

import (
	"pipelined.dev/auproc"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/metric"
)

// Receiver captures every block of the input connector and sends it as
// (start time, Float32 array) message. Blocks are dropped if the channel
// is full.
type Receiver struct {
	auproc.State
	conns   []auproc.Connector
	in      auproc.AudioConnector
	writer  *message.Writer
	dropped metric.DropFunc
}

// NewReceiver returns a receiver that reads in connector.
func NewReceiver(w *message.Writer, in auproc.Connector) (*Receiver, error) {
	if w == nil {
		return nil, auproc.ErrNoChannel
	}
	conns := []auproc.Connector{in}
	i, err := auproc.AudioInput(conns, 0)
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

// Process sends the block.
func (r *Receiver) Process(b auproc.Block) error {
	if r.Closed() {
		return nil
	}
	in := r.in.AudioBuffer(b.Frames)
	if err := r.send(b.Start, in); err != nil {
		r.writer.Clear()
		r.dropped(1)
	}
	return nil
}

func (r *Receiver) send(start int64, samples []float32) error {
	r.writer.Clear()
	if err := r.writer.AddInteger(start); err != nil {
		return err
	}
	p, err := r.writer.AddArray(message.Float32, len(samples))
	if err != nil {
		return err
	}
	message.PutFloat32s(p, samples)
	return r.writer.TrySend()
}
