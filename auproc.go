package auproc

// Block is the unit of work of a single callback invocation.
type Block struct {
	// Frames is the number of frames in the block.
	Frames int
	// Start is the absolute frame time of the first frame.
	Start int64
}

// End returns the absolute frame time right after the block.
func (b Block) End() int64 {
	return b.Start + int64(b.Frames)
}

// Type identifies connector capability.
type Type int

// Connector types.
const (
	Audio Type = iota + 1
	MIDI
)

func (t Type) String() string {
	switch t {
	case Audio:
		return "AUDIO"
	case MIDI:
		return "MIDI"
	default:
		return "UNKNOWN"
	}
}

// Direction is a bit set of directions a connector can be used in, seen
// from the node side.
type Direction int

// Directions.
const (
	In Direction = 1 << iota
	Out
)

type (
	// Connector is a typed endpoint a node reads from or writes to.
	Connector interface {
		Name() string
		Type() Type
		Direction() Direction
	}

	// AudioConnector is a connector with audio capability.
	AudioConnector interface {
		Connector
		// AudioBuffer returns the buffer for the current block. It's
		// valid until the callback returns.
		AudioBuffer(nframes int) []float32
	}

	// MIDIConnector is a connector with MIDI capability.
	MIDIConnector interface {
		Connector
		// MIDIBuffer returns the event buffer for the current block.
		MIDIBuffer(nframes int) MIDIBuffer
	}

	// MIDIBuffer holds MIDI events of a single block sorted by time.
	MIDIBuffer interface {
		// Clear removes all events. Must be called by the writer before
		// the first Reserve of the block.
		Clear()
		// Len returns the number of events.
		Len() int
		// Event returns event at index i, 0 <= i < Len().
		Event(i int) MIDIEvent
		// Reserve appends an event and returns its data for writing.
		// Nil is returned if there is not enough space or time is out
		// of order.
		Reserve(time, size int) []byte
	}
)

// MIDIEvent is a MIDI message with its frame offset within a block.
type MIDIEvent struct {
	Time int
	Data []byte
}

type (
	// Processor is a node the engine invokes once per block.
	Processor interface {
		// Process handles a single block. A non-nil error is fatal
		// and invalidates the whole processing graph.
		Process(Block) error
		// Connectors returns connectors the node was built with.
		Connectors() []Connector
	}

	// Notifier receives engine notifications. After any of them the
	// node must not touch its connectors anymore.
	Notifier interface {
		OnClosed()
		OnReleased()
	}
)
