package message

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
)

// Writer builds messages and commits them into the channel. Building a
// message doesn't allocate, the writer buffer is sized to the channel
// capacity. If any Add call fails, the whole message is cleared.
type Writer struct {
	ch  *Channel
	buf []byte
}

// Len returns the encoded size of the message being built.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Clear discards the message being built.
func (w *Writer) Clear() {
	w.buf = w.buf[:0]
}

// AddInteger appends integer value.
func (w *Writer) AddInteger(v int64) error {
	p, err := w.grow(numericSize)
	if err != nil {
		return err
	}
	p[0] = byte(Integer)
	binary.LittleEndian.PutUint64(p[1:], uint64(v))
	return nil
}

// AddNumber appends floating number value.
func (w *Writer) AddNumber(v float64) error {
	p, err := w.grow(numericSize)
	if err != nil {
		return err
	}
	p[0] = byte(Number)
	binary.LittleEndian.PutUint64(p[1:], math.Float64bits(v))
	return nil
}

// AddString appends string value.
func (w *Writer) AddString(s string) error {
	p, err := w.grow(stringHeaderLen + len(s))
	if err != nil {
		return err
	}
	p[0] = byte(String)
	binary.LittleEndian.PutUint32(p[1:], uint32(len(s)))
	copy(p[stringHeaderLen:], s)
	return nil
}

// AddArray appends array of n elements of provided type and returns its
// element space for the caller to fill.
func (w *Writer) AddArray(t ArrayType, n int) ([]byte, error) {
	size := t.Size()
	if size == 0 || n < 0 {
		w.Clear()
		return nil, ErrInvalid
	}
	p, err := w.grow(arrayHeaderLen + n*size)
	if err != nil {
		return nil, err
	}
	p[0] = byte(Array)
	p[1] = byte(t)
	binary.LittleEndian.PutUint32(p[2:], uint32(n))
	return p[arrayHeaderLen:], nil
}

// AddBytes appends uint8 array value.
func (w *Writer) AddBytes(b []byte) error {
	p, err := w.AddArray(Uint8, len(b))
	if err != nil {
		return err
	}
	copy(p, b)
	return nil
}

// AddFloat32s appends float32 array value.
func (w *Writer) AddFloat32s(f []float32) error {
	p, err := w.AddArray(Float32, len(f))
	if err != nil {
		return err
	}
	PutFloat32s(p, f)
	return nil
}

// Add appends values.
func (w *Writer) Add(values ...Value) error {
	for _, v := range values {
		if err := w.add(v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) add(v Value) error {
	switch v.kind {
	case Integer:
		return w.AddInteger(int64(v.bits))
	case Number:
		return w.AddNumber(math.Float64frombits(v.bits))
	case String:
		p, err := w.grow(stringHeaderLen + len(v.raw))
		if err != nil {
			return err
		}
		p[0] = byte(String)
		binary.LittleEndian.PutUint32(p[1:], uint32(len(v.raw)))
		copy(p[stringHeaderLen:], v.raw)
		return nil
	case Array:
		size := v.typ.Size()
		if size == 0 || len(v.raw)%size != 0 {
			w.Clear()
			return ErrInvalid
		}
		p, err := w.AddArray(v.typ, len(v.raw)/size)
		if err != nil {
			return err
		}
		copy(p, v.raw)
		return nil
	}
	w.Clear()
	return ErrInvalid
}

// TrySend commits the message without blocking. If channel is full, ErrFull
// is returned and the message is kept, so it can be sent again or
// cleared. On other errors the message is cleared.
func (w *Writer) TrySend() error {
	err := w.ch.commit(w.buf)
	switch {
	case err == nil:
		w.buf = w.buf[:0]
	case !errors.Is(err, ErrFull):
		w.Clear()
	}
	return err
}

// Send commits the message. It blocks until there is enough space in the
// channel or context is done.
func (w *Writer) Send(ctx context.Context) error {
	for {
		err := w.TrySend()
		if !errors.Is(err, ErrFull) {
			return err
		}
		select {
		case <-w.ch.space:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Write sends a new message with provided values.
func (w *Writer) Write(ctx context.Context, values ...Value) error {
	w.Clear()
	if err := w.Add(values...); err != nil {
		return err
	}
	return w.Send(ctx)
}

func (w *Writer) grow(n int) ([]byte, error) {
	l := len(w.buf)
	if n > cap(w.buf)-l {
		w.Clear()
		return nil, ErrTooLarge
	}
	w.buf = w.buf[:l+n]
	return w.buf[l:], nil
}
