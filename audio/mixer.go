// Package audio provides real-time audio nodes: mixer, sender and
// receiver.
package audio

import (
	"fmt"

	"pipelined.dev/auproc"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/metric"
)

// Mixer sums up N-1 audio inputs into the last connector. Every input
// has a gain factor which can be changed with control messages.
//
// Control message is a sequence of (input, gain) pairs, where input is
// 1-based index and gain is integer or floating number.
type Mixer struct {
	auproc.State
	conns   []auproc.Connector
	inputs  []auproc.AudioConnector
	gains   []float32
	out     auproc.AudioConnector
	control *message.Reader
	dropped metric.DropFunc
}

// NewMixer returns a mixer for provided connectors. At least one input and
// one output are required. Control reader is optional.
func NewMixer(control *message.Reader, conns ...auproc.Connector) (*Mixer, error) {
	if len(conns) < 2 {
		return nil, &auproc.ConnectorError{Index: len(conns), Type: auproc.Audio, Direction: auproc.In, Err: auproc.ErrConnectorCount}
	}
	last := len(conns) - 1
	inputs := make([]auproc.AudioConnector, last)
	for i := range inputs {
		in, err := auproc.AudioInput(conns, i)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}
	out, err := auproc.AudioOutput(conns, last)
	if err != nil {
		return nil, err
	}
	gains := make([]float32, last)
	for i := range gains {
		gains[i] = 1
	}
	m := Mixer{
		conns:   conns,
		inputs:  inputs,
		gains:   gains,
		out:     out,
		control: control,
	}
	m.dropped = metric.Dropper(&m)
	return &m, nil
}

// Connectors returns mixer connectors, output is the last one.
func (m *Mixer) Connectors() []auproc.Connector {
	return m.conns
}

// Gain returns current gain of 1-based input i.
func (m *Mixer) Gain(i int) (float32, error) {
	if i < 1 || i > len(m.gains) {
		return 0, fmt.Errorf("input %d: out of range [1, %d]", i, len(m.gains))
	}
	return m.gains[i-1], nil
}

// Process applies pending gain changes and mixes the block.
func (m *Mixer) Process(b auproc.Block) error {
	if m.Closed() {
		return nil
	}
	m.applyControl()

	out := m.out.AudioBuffer(b.Frames)
	in := m.inputs[0].AudioBuffer(b.Frames)
	g := m.gains[0]
	for k := range out {
		out[k] = in[k] * g
	}
	for i := 1; i < len(m.inputs); i++ {
		in = m.inputs[i].AudioBuffer(b.Frames)
		g = m.gains[i]
		for k := range out {
			out[k] += in[k] * g
		}
	}
	return nil
}

// applyControl drains all queued control messages.
func (m *Mixer) applyControl() {
	if m.control == nil {
		return
	}
	for {
		ok, err := m.control.TryNext()
		if err != nil {
			m.dropped(1)
			continue
		}
		if !ok {
			return
		}
		if !m.applyGains() {
			m.control.Drain()
			m.dropped(1)
		}
	}
}

// applyGains applies (input, gain) pairs of the current message. False
// is returned on first malformed pair, pairs before it stay applied.
func (m *Mixer) applyGains() bool {
	for {
		v := m.control.Value()
		if v.Kind() == message.None {
			return m.control.Err() == nil
		}
		i, ok := index(v, len(m.gains))
		if !ok {
			return false
		}
		g, ok := m.control.Value().Float()
		if !ok {
			return false
		}
		m.gains[i] = float32(g)
	}
}

// index converts 1-based input value into 0-based index.
func index(v message.Value, inputs int) (int, bool) {
	f, ok := v.Float()
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	i := int64(f)
	if i < 1 || i > int64(inputs) {
		return 0, false
	}
	return int(i - 1), true
}
