// Package mock provides mocks for processing nodes and connectors.
package mock

import "pipelined.dev/auproc"

// Connector mocks auproc.AudioConnector and auproc.MIDIConnector. Type
// and Direction are reported as set, buffers are allocated on call.
type Connector struct {
	ConnName      string
	ConnType      auproc.Type
	ConnDirection auproc.Direction
}

// Name returns connector name.
func (c Connector) Name() string { return c.ConnName }

// Type returns connector type.
func (c Connector) Type() auproc.Type { return c.ConnType }

// Direction returns connector direction.
func (c Connector) Direction() auproc.Direction { return c.ConnDirection }

// AudioBuffer returns new buffer of n frames.
func (c Connector) AudioBuffer(n int) []float32 { return make([]float32, n) }

// MIDIBuffer returns nil.
func (c Connector) MIDIBuffer(int) auproc.MIDIBuffer { return nil }

// Processor mocks auproc.Processor. It records processed blocks.
type Processor struct {
	auproc.State
	counter
	Conns       []auproc.Connector
	ErrorOnCall error
	// Calls is shared between processors to check the call order.
	Calls *[]*Processor
}

// Process records the block.
func (m *Processor) Process(b auproc.Block) error {
	if m.Closed() {
		return nil
	}
	if m.Calls != nil {
		*m.Calls = append(*m.Calls, m)
	}
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	m.advance(b)
	return nil
}

// Connectors returns Conns.
func (m *Processor) Connectors() []auproc.Connector {
	return m.Conns
}

// counter counts blocks and frames.
type counter struct {
	Blocks []auproc.Block
	Frames int
}

func (c *counter) advance(b auproc.Block) {
	c.Blocks = append(c.Blocks, b)
	c.Frames += b.Frames
}

// Count returns number of blocks and frames.
func (c *counter) Count() (int, int) {
	return len(c.Blocks), c.Frames
}
