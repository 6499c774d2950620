package midi

import (
	"fmt"

	"pipelined.dev/auproc"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/metric"
)

// Mixer merges events of N-1 MIDI inputs into the last connector by
// time. Events with equal time are taken from inputs in order. Every
// input has a channel map which can be changed with control messages.
//
// Control message is a sequence of (input, from, to) triples, where input
// is 1-based index and to is target channel or -1 to drop the channel.
type Mixer struct {
	auproc.State
	conns   []auproc.Connector
	inputs  []auproc.MIDIConnector
	maps    []ChannelMap
	out     auproc.MIDIConnector
	control *message.Reader
	dropped metric.DropFunc

	// merge state, reused every block
	bufs []auproc.MIDIBuffer
	next []int
}

// NewMixer returns a mixer for provided connectors. At least one input and
// one output are required. Control reader is optional.
func NewMixer(control *message.Reader, conns ...auproc.Connector) (*Mixer, error) {
	if len(conns) < 2 {
		return nil, &auproc.ConnectorError{Index: len(conns), Type: auproc.MIDI, Direction: auproc.In, Err: auproc.ErrConnectorCount}
	}
	last := len(conns) - 1
	inputs := make([]auproc.MIDIConnector, last)
	maps := make([]ChannelMap, last)
	for i := range inputs {
		in, err := auproc.MIDIInput(conns, i)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
		maps[i] = Identity()
	}
	out, err := auproc.MIDIOutput(conns, last)
	if err != nil {
		return nil, err
	}
	m := Mixer{
		conns:   conns,
		inputs:  inputs,
		maps:    maps,
		out:     out,
		control: control,
		bufs:    make([]auproc.MIDIBuffer, last),
		next:    make([]int, last),
	}
	m.dropped = metric.Dropper(&m)
	return &m, nil
}

// Connectors returns mixer connectors, output is the last one.
func (m *Mixer) Connectors() []auproc.Connector {
	return m.conns
}

// ChannelMap returns current channel map of 1-based input i.
func (m *Mixer) ChannelMap(i int) (ChannelMap, error) {
	if i < 1 || i > len(m.maps) {
		return ChannelMap{}, fmt.Errorf("input %d: out of range [1, %d]", i, len(m.maps))
	}
	return m.maps[i-1], nil
}

// Process applies pending channel map changes and merges the block.
func (m *Mixer) Process(b auproc.Block) error {
	if m.Closed() {
		return nil
	}
	m.applyControl()

	out := m.out.MIDIBuffer(b.Frames)
	out.Clear()
	for i, in := range m.inputs {
		m.bufs[i] = in.MIDIBuffer(b.Frames)
		m.next[i] = 0
	}
	for {
		i := m.earliest()
		if i < 0 {
			return nil
		}
		e := m.bufs[i].Event(m.next[i])
		m.next[i]++
		if len(e.Data) == 0 {
			continue
		}
		status, ok := m.maps[i].Remap(e.Data[0])
		if !ok {
			continue
		}
		p := out.Reserve(e.Time, len(e.Data))
		if p == nil {
			m.dropped(1)
			continue
		}
		copy(p, e.Data)
		p[0] = status
	}
}

// earliest returns input with the earliest current event or -1 if all
// inputs are exhausted. Lower index wins on equal time.
func (m *Mixer) earliest() int {
	next, time := -1, 0
	for i, buf := range m.bufs {
		if m.next[i] >= buf.Len() {
			continue
		}
		if t := buf.Event(m.next[i]).Time; next < 0 || t < time {
			next, time = i, t
		}
	}
	return next
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
		if !m.applyMaps() {
			m.control.Drain()
			m.dropped(1)
		}
	}
}

// applyMaps applies (input, from, to) triples of the current message.
// False is returned on first malformed triple.
func (m *Mixer) applyMaps() bool {
	for {
		v := m.control.Value()
		if v.Kind() == message.None {
			return m.control.Err() == nil
		}
		i, ok := integer(v)
		if !ok || i < 1 || i > int64(len(m.maps)) {
			return false
		}
		from, ok := integer(m.control.Value())
		if !ok {
			return false
		}
		to, ok := integer(m.control.Value())
		if !ok {
			return false
		}
		if err := m.maps[i-1].Set(int(from), int(to)); err != nil {
			return false
		}
	}
}

// integer returns Integer or whole Number value.
func integer(v message.Value) (int64, bool) {
	f, ok := v.Float()
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
