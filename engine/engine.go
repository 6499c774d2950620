// Package engine is an in-process node lifecycle. It owns the block clock
// and port buffers, and invokes registered processors once per block in
// registration order.
//
// Engine methods must not be called from inside processor callbacks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/auproc"
	"pipelined.dev/auproc/log"
	"pipelined.dev/auproc/metric"
)

// Default engine parameters.
const (
	DefaultBlockSize    = 256
	DefaultSampleRate   = 44100
	DefaultMIDICapacity = 4096
)

var (
	// ErrClosed is returned when engine is closed.
	ErrClosed = errors.New("engine is closed")
	// ErrNotRegistered is returned when processor is not registered.
	ErrNotRegistered = errors.New("processor is not registered")
	// ErrRegistered is returned when processor is registered twice.
	ErrRegistered = errors.New("processor is already registered")
)

// CycleError is returned when a processor failed. The engine is closed
// after that.
type CycleError struct {
	ID  string
	Err error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("processor %s: %v", e.ID, e.Err)
}

// Is returns true for ErrClosed and any error processor failed with.
func (e *CycleError) Is(err error) bool {
	if err == ErrClosed {
		return true
	}
	return errors.Is(e.Err, err)
}

// Unwrap returns the processor error.
func (e *CycleError) Unwrap() error {
	return e.Err
}

// Option provides a way to set functional parameters to engine.
type Option func(*Engine) error

// WithBlockSize sets number of frames per block.
func WithBlockSize(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("invalid block size: %d", n)
		}
		e.blockSize = n
		return nil
	}
}

// WithSampleRate sets sample rate. It defines the cycle period of Run.
func WithSampleRate(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("invalid sample rate: %d", n)
		}
		e.sampleRate = n
		return nil
	}
}

// WithMIDICapacity sets size in bytes of MIDI port buffers.
func WithMIDICapacity(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("invalid MIDI capacity: %d", n)
		}
		e.midiCapacity = n
		return nil
	}
}

// WithLogger sets engine logger. If this option is not provided,
// log.GetLogger is used.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) error {
		e.log = l
		return nil
	}
}

// Engine invokes processors block by block.
type Engine struct {
	blockSize    int
	sampleRate   int
	midiCapacity int
	log          log.Logger

	mu     sync.Mutex
	time   int64
	closed bool
	nodes  []*node
	ids    map[auproc.Processor]*node
}

type node struct {
	id        string
	processor auproc.Processor
	active    bool
	measure   metric.MeasureFunc
}

// New creates an engine and applies provided options.
func New(options ...Option) (*Engine, error) {
	e := Engine{
		blockSize:    DefaultBlockSize,
		sampleRate:   DefaultSampleRate,
		midiCapacity: DefaultMIDICapacity,
		ids:          make(map[auproc.Processor]*node),
	}
	for _, option := range options {
		if err := option(&e); err != nil {
			return nil, err
		}
	}
	if e.log == nil {
		e.log = log.GetLogger()
	}
	return &e, nil
}

// BlockSize returns number of frames per block.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// SampleRate returns engine sample rate.
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// Time returns the start frame of the next block.
func (e *Engine) Time() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.time
}

// Closed returns true if engine is closed.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Register adds the processor to the engine. All its connectors must be
// ports of this engine. Processor is inactive after registration.
func (e *Engine) Register(p auproc.Processor) (string, error) {
	for i, c := range p.Connectors() {
		if pt, ok := c.(port); !ok || pt.owner() != e {
			return "", &auproc.ConnectorError{Index: i, Err: auproc.ErrEngineMismatch}
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrClosed
	}
	if _, ok := e.ids[p]; ok {
		return "", ErrRegistered
	}
	n := node{
		id:        xid.New().String(),
		processor: p,
		measure:   metric.Meter(p, e.sampleRate),
	}
	e.nodes = append(e.nodes, &n)
	e.ids[p] = &n
	e.log.WithFields(fields(&n)).Debug("registered")
	return n.id, nil
}

// Activate enables processing of the processor.
func (e *Engine) Activate(p auproc.Processor) error {
	return e.setActive(p, true)
}

// Deactivate disables processing of the processor. Retained state of the
// processor is kept.
func (e *Engine) Deactivate(p auproc.Processor) error {
	return e.setActive(p, false)
}

func (e *Engine) setActive(p auproc.Processor, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	n, ok := e.ids[p]
	if !ok {
		return ErrNotRegistered
	}
	n.active = active
	if active {
		e.log.WithFields(fields(n)).Debug("activated")
	} else {
		e.log.WithFields(fields(n)).Debug("deactivated")
	}
	return nil
}

// Active returns true if processor is registered and active.
func (e *Engine) Active(p auproc.Processor) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.ids[p]
	return ok && n.active
}

// Release removes the processor from the engine and notifies it.
func (e *Engine) Release(p auproc.Processor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.ids[p]
	if !ok {
		return ErrNotRegistered
	}
	delete(e.ids, p)
	for i := range e.nodes {
		if e.nodes[i] == n {
			e.nodes = append(e.nodes[:i], e.nodes[i+1:]...)
			break
		}
	}
	if nt, ok := p.(auproc.Notifier); ok {
		nt.OnReleased()
	}
	e.log.WithFields(fields(n)).Debug("released")
	return nil
}

// Close stops the engine and notifies all processors. Calling Close on
// closed engine is a no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.close()
}

func (e *Engine) close() {
	if e.closed {
		return
	}
	e.closed = true
	for _, n := range e.nodes {
		if nt, ok := n.processor.(auproc.Notifier); ok {
			nt.OnClosed()
		}
	}
	e.log.WithField("nodes", len(e.nodes)).Info("engine closed")
}

// Cycle processes a single block. Processors are invoked in registration
// order. If any processor fails, the engine is closed and *CycleError is
// returned.
func (e *Engine) Cycle() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	b := auproc.Block{Frames: e.blockSize, Start: e.time}
	for _, n := range e.nodes {
		if !n.active {
			continue
		}
		if err := n.processor.Process(b); err != nil {
			e.log.WithFields(fields(n)).WithError(err).Error("processor failed")
			e.close()
			return &CycleError{ID: n.id, Err: err}
		}
		n.measure(b.Frames)
	}
	e.time = b.End()
	return nil
}

// Run cycles the engine once per block period until context is done or
// a cycle fails. Context error is not returned.
func (e *Engine) Run(ctx context.Context) error {
	period := time.Duration(float64(e.blockSize) / float64(e.sampleRate) * float64(time.Second))
	if period <= 0 {
		period = time.Nanosecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.Cycle(); err != nil {
				return err
			}
		}
	}
}

// Render cycles the engine n times without waiting. It's used for
// offline processing.
func (e *Engine) Render(n int) error {
	for i := 0; i < n; i++ {
		if err := e.Cycle(); err != nil {
			return err
		}
	}
	return nil
}

func fields(n *node) logrus.Fields {
	return logrus.Fields{
		"id":   n.id,
		"node": fmt.Sprintf("%T", n.processor),
	}
}
