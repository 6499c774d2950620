// Package message provides a bounded single-producer/single-consumer channel
// of typed values.
//
// The channel is a byte ring of fixed capacity. A message is a sequence of
// typed values built by the Writer and committed as one unit, the Reader
// never observes a partially written message. Reader.TryNext never blocks
// and never allocates, so it is safe to poll from a real-time callback.
// Writer.TrySend has the same property and is used by nodes that push
// captured data out of the callback.
//
// Exactly one writer and one reader exist per channel. Callers must uphold
// this contract, the channel does not arbitrate concurrent writers.
package message

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
)

// DefaultCapacity is the capacity in bytes used when nothing else is
// requested.
const DefaultCapacity = 16 * 1024

// prefixSize is the size of message length prefix.
const prefixSize = 4

// minCapacity fits a length prefix and a single numeric value.
const minCapacity = prefixSize + 9

var (
	// ErrFull is returned when the channel has not enough space for the
	// message. The message stays in the writer and can be sent again.
	ErrFull = errors.New("channel is full")
	// ErrTooLarge is returned when the message can never fit the channel.
	ErrTooLarge = errors.New("message exceeds channel capacity")
	// ErrCorrupt is returned when the reader hits malformed data.
	ErrCorrupt = errors.New("corrupt message")
	// ErrClosed is returned when sending into closed channel.
	ErrClosed = errors.New("channel is closed")
	// ErrInvalid is returned when value cannot be encoded.
	ErrInvalid = errors.New("invalid value")
	// ErrReaderTaken is returned if the reader was already handed out.
	ErrReaderTaken = errors.New("reader already taken")
	// ErrWriterTaken is returned if the writer was already handed out.
	ErrWriterTaken = errors.New("writer already taken")
)

// Channel is a fixed-capacity byte ring carrying messages between one
// writer and one reader.
type Channel struct {
	buf  []byte
	head atomic.Uint64 // total bytes committed by writer
	tail atomic.Uint64 // total bytes released by reader

	// space and data are 1-slot wake up signals. Sends are non-blocking.
	space chan struct{}
	data  chan struct{}

	closed atomic.Bool
	reader atomic.Bool
	writer atomic.Bool
}

// New returns a channel with provided capacity in bytes.
func New(capacity int) (*Channel, error) {
	if capacity < minCapacity {
		return nil, fmt.Errorf("capacity %d is less than %d bytes", capacity, minCapacity)
	}
	return &Channel{
		buf:   make([]byte, capacity),
		space: make(chan struct{}, 1),
		data:  make(chan struct{}, 1),
	}, nil
}

// Cap returns capacity of the channel in bytes.
func (c *Channel) Cap() int {
	return len(c.buf)
}

// Len returns number of queued bytes, including length prefixes.
func (c *Channel) Len() int {
	return int(c.head.Load() - c.tail.Load())
}

// Writer returns the writer of this channel. It can be called only once.
func (c *Channel) Writer() (*Writer, error) {
	if !c.writer.CompareAndSwap(false, true) {
		return nil, ErrWriterTaken
	}
	return &Writer{
		ch:  c,
		buf: make([]byte, 0, len(c.buf)-prefixSize),
	}, nil
}

// Reader returns the reader of this channel. It can be called only once.
func (c *Channel) Reader() (*Reader, error) {
	if !c.reader.CompareAndSwap(false, true) {
		return nil, ErrReaderTaken
	}
	return &Reader{
		ch:  c,
		msg: make([]byte, len(c.buf)-prefixSize),
	}, nil
}

// Close closes the channel. Queued messages can still be read. Blocked
// writer and reader are woken up.
func (c *Channel) Close() {
	if c.closed.CompareAndSwap(false, true) {
		notify(c.data)
		notify(c.space)
	}
}

// Closed returns true if channel was closed.
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

// commit copies message into the ring. Called by the writer only.
func (c *Channel) commit(msg []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	n := uint64(prefixSize + len(msg))
	if n > uint64(len(c.buf)) {
		return ErrTooLarge
	}
	head := c.head.Load()
	if n > uint64(len(c.buf))-(head-c.tail.Load()) {
		return ErrFull
	}
	var prefix [prefixSize]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(msg)))
	c.put(head, prefix[:])
	c.put(head+prefixSize, msg)
	c.head.Store(head + n)
	notify(c.data)
	return nil
}

// fetch moves the next message into dst. Called by the reader only. If
// the length prefix is corrupt, all queued bytes are discarded.
func (c *Channel) fetch(dst []byte) (int, bool, error) {
	tail := c.tail.Load()
	head := c.head.Load()
	avail := head - tail
	if avail == 0 {
		return 0, false, nil
	}
	if avail < prefixSize {
		c.discard(head)
		return 0, false, ErrCorrupt
	}
	var prefix [prefixSize]byte
	c.get(tail, prefix[:])
	n := uint64(binary.LittleEndian.Uint32(prefix[:]))
	if n > uint64(len(dst)) || prefixSize+n > avail {
		c.discard(head)
		return 0, false, ErrCorrupt
	}
	c.get(tail+prefixSize, dst[:n])
	c.tail.Store(tail + prefixSize + n)
	notify(c.space)
	return int(n), true, nil
}

func (c *Channel) discard(head uint64) {
	c.tail.Store(head)
	notify(c.space)
}

func (c *Channel) put(pos uint64, p []byte) {
	i := int(pos % uint64(len(c.buf)))
	n := copy(c.buf[i:], p)
	copy(c.buf, p[n:])
}

func (c *Channel) get(pos uint64, p []byte) {
	i := int(pos % uint64(len(c.buf)))
	n := copy(p, c.buf[i:])
	copy(p[n:], c.buf)
}

func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
