package auproc

import "sync/atomic"

// State tracks the engine binding of a node. It's meant to be embedded
// into node structures.
type State struct {
	closed   atomic.Bool
	released atomic.Bool
}

// OnClosed is called when the engine is closed or invalidated.
func (s *State) OnClosed() {
	s.closed.Store(true)
}

// OnReleased is called when the node is released from the engine.
func (s *State) OnReleased() {
	s.closed.Store(true)
	s.released.Store(true)
}

// Closed returns true if node cannot process anymore.
func (s *State) Closed() bool {
	return s.closed.Load()
}

// Released returns true if node was released.
func (s *State) Released() bool {
	return s.released.Load()
}

// AudioInput returns connector i as readable audio connector.
func AudioInput(conns []Connector, i int) (AudioConnector, error) {
	return audioConnector(conns, i, In)
}

// AudioOutput returns connector i as writable audio connector.
func AudioOutput(conns []Connector, i int) (AudioConnector, error) {
	return audioConnector(conns, i, Out)
}

// MIDIInput returns connector i as readable MIDI connector.
func MIDIInput(conns []Connector, i int) (MIDIConnector, error) {
	return midiConnector(conns, i, In)
}

// MIDIOutput returns connector i as writable MIDI connector.
func MIDIOutput(conns []Connector, i int) (MIDIConnector, error) {
	return midiConnector(conns, i, Out)
}

func audioConnector(conns []Connector, i int, d Direction) (AudioConnector, error) {
	if err := check(conns, i, Audio, d); err != nil {
		return nil, err
	}
	c, ok := conns[i].(AudioConnector)
	if !ok {
		return nil, &ConnectorError{Index: i, Type: Audio, Direction: d, Err: ErrConnectorType}
	}
	return c, nil
}

func midiConnector(conns []Connector, i int, d Direction) (MIDIConnector, error) {
	if err := check(conns, i, MIDI, d); err != nil {
		return nil, err
	}
	c, ok := conns[i].(MIDIConnector)
	if !ok {
		return nil, &ConnectorError{Index: i, Type: MIDI, Direction: d, Err: ErrConnectorType}
	}
	return c, nil
}

func check(conns []Connector, i int, t Type, d Direction) error {
	if i < 0 || i >= len(conns) {
		return &ConnectorError{Index: i, Type: t, Direction: d, Err: ErrConnectorCount}
	}
	c := conns[i]
	if c == nil || c.Type() != t {
		return &ConnectorError{Index: i, Type: t, Direction: d, Err: ErrConnectorType}
	}
	if c.Direction()&d == 0 {
		return &ConnectorError{Index: i, Type: t, Direction: d, Err: ErrConnectorDirection}
	}
	return nil
}
