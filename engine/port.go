package engine

import "pipelined.dev/auproc"

// AudioPort is an audio connector backed by engine memory. A port with
// both directions is a bus: one node writes it and nodes registered
// after that read it within the same cycle.
type AudioPort struct {
	engine    *Engine
	name      string
	direction auproc.Direction
	buf       []float32
}

// NewAudioPort allocates an audio port of the engine block size.
func (e *Engine) NewAudioPort(name string, d auproc.Direction) *AudioPort {
	return &AudioPort{
		engine:    e,
		name:      name,
		direction: d,
		buf:       make([]float32, e.blockSize),
	}
}

// Name returns port name.
func (p *AudioPort) Name() string { return p.name }

// Type returns auproc.Audio.
func (p *AudioPort) Type() auproc.Type { return auproc.Audio }

// Direction returns port direction.
func (p *AudioPort) Direction() auproc.Direction { return p.direction }

// AudioBuffer returns the port buffer. Frames above block size are not
// available.
func (p *AudioPort) AudioBuffer(nframes int) []float32 {
	if nframes > len(p.buf) {
		nframes = len(p.buf)
	}
	return p.buf[:nframes]
}

func (p *AudioPort) owner() *Engine { return p.engine }

// MIDIPort is a MIDI connector backed by engine memory.
type MIDIPort struct {
	engine    *Engine
	name      string
	direction auproc.Direction
	buf       *EventBuffer
}

// NewMIDIPort allocates a MIDI port with engine MIDI capacity.
func (e *Engine) NewMIDIPort(name string, d auproc.Direction) *MIDIPort {
	return &MIDIPort{
		engine:    e,
		name:      name,
		direction: d,
		buf:       NewEventBuffer(e.midiCapacity, e.blockSize),
	}
}

// Name returns port name.
func (p *MIDIPort) Name() string { return p.name }

// Type returns auproc.MIDI.
func (p *MIDIPort) Type() auproc.Type { return auproc.MIDI }

// Direction returns port direction.
func (p *MIDIPort) Direction() auproc.Direction { return p.direction }

// MIDIBuffer returns the port event buffer for a block of nframes.
func (p *MIDIPort) MIDIBuffer(nframes int) auproc.MIDIBuffer {
	p.buf.setFrames(nframes)
	return p.buf
}

// Events returns the port event buffer.
func (p *MIDIPort) Events() *EventBuffer {
	return p.buf
}

func (p *MIDIPort) owner() *Engine { return p.engine }

type port interface {
	owner() *Engine
}
