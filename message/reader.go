package message

import (
	"context"
	"io"
)

// Reader consumes messages one at a time and values of the current
// message one at a time. The message is copied out of the ring when it's
// read, so the ring space is released right away and returned values stay
// valid until the next message is read.
type Reader struct {
	ch  *Channel
	msg []byte
	n   int
	pos int
	err error
}

// TryNext reads the next message without blocking. False is returned if
// the channel is empty. Unread values of the previous message are
// discarded. ErrCorrupt is returned if the channel had to be
// resynchronized.
func (r *Reader) TryNext() (bool, error) {
	r.n, r.pos, r.err = 0, 0, nil
	n, ok, err := r.ch.fetch(r.msg)
	if !ok {
		return false, err
	}
	r.n = n
	return true, nil
}

// Next reads the next message. It blocks until a message is available or
// context is done. io.EOF is returned when channel is closed and empty.
func (r *Reader) Next(ctx context.Context) error {
	for {
		ok, err := r.TryNext()
		if err != nil || ok {
			return err
		}
		if r.ch.Closed() && r.ch.Len() == 0 {
			return io.EOF
		}
		select {
		case <-r.ch.data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Value returns the next value of the current message. Value of kind None
// is returned past the last value or if the message is malformed, in the
// latter case Err returns ErrCorrupt.
func (r *Reader) Value() Value {
	if r.pos >= r.n {
		return Value{}
	}
	v, size, err := decode(r.msg[r.pos:r.n])
	if err != nil {
		r.err = err
		r.pos = r.n
		return Value{}
	}
	r.pos += size
	return v
}

// Drain discards the rest of the current message.
func (r *Reader) Drain() {
	r.pos = r.n
}

// Err returns decoding error of the current message.
func (r *Reader) Err() error {
	return r.err
}
