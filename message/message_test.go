package message_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"pipelined.dev/auproc/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newChannel(t *testing.T, capacity int) (*message.Channel, *message.Writer, *message.Reader) {
	t.Helper()
	ch, err := message.New(capacity)
	require.NoError(t, err)
	w, err := ch.Writer()
	require.NoError(t, err)
	r, err := ch.Reader()
	require.NoError(t, err)
	return ch, w, r
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		description string
		values      []message.Value
	}{
		{
			description: "empty message",
		},
		{
			description: "scalars",
			values:      []message.Value{message.Int(-42), message.Num(0.25), message.Str("gain")},
		},
		{
			description: "arrays",
			values: []message.Value{
				message.Int(100),
				message.Float32s([]float32{0.5, -1, 2.25}),
				message.Bytes([]byte{0x90, 60, 100}),
				message.RawArray(message.Int16, []byte{1, 0, 2, 0}),
			},
		},
		{
			description: "empty string and array",
			values:      []message.Value{message.Str(""), message.Bytes(nil)},
		},
	}
	for _, test := range tests {
		_, w, r := newChannel(t, message.DefaultCapacity)
		require.NoError(t, w.Write(context.Background(), test.values...), test.description)

		ok, err := r.TryNext()
		require.NoError(t, err, test.description)
		require.True(t, ok, test.description)
		for _, expected := range test.values {
			v := r.Value()
			assert.Equal(t, expected.Kind(), v.Kind(), test.description)
			assert.Equal(t, expected.ArrayType(), v.ArrayType(), test.description)
			assert.Equal(t, expected.Len(), v.Len(), test.description)
			assert.Equal(t, expected.String(), v.String(), test.description)
			switch expected.Kind() {
			case message.Integer:
				e, _ := expected.Int()
				a, ok := v.Int()
				assert.True(t, ok)
				assert.Equal(t, e, a, test.description)
			case message.Number:
				e, _ := expected.Float()
				a, ok := v.Float()
				assert.True(t, ok)
				assert.Equal(t, e, a, test.description)
			case message.String, message.Array:
				assert.Equal(t, len(expected.Bytes()), len(v.Bytes()), test.description)
				if len(expected.Bytes()) > 0 {
					assert.Equal(t, expected.Bytes(), v.Bytes(), test.description)
				}
			}
		}
		assert.Equal(t, message.None, r.Value().Kind(), test.description)
		assert.NoError(t, r.Err(), test.description)

		ok, err = r.TryNext()
		assert.NoError(t, err)
		assert.False(t, ok, test.description)
	}
}

func TestFloat32Values(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3, 0.4, 0.5}
	v := message.Float32s(samples)
	assert.Equal(t, samples, v.Float32s())
	assert.Equal(t, float32(0.3), v.Float32(2))

	dst := make([]float32, 2)
	assert.Equal(t, 2, v.CopyFloat32s(dst, 3))
	assert.Equal(t, []float32{0.4, 0.5}, dst)
	assert.Equal(t, 0, v.CopyFloat32s(dst, 5))
	assert.Equal(t, 0, message.Bytes([]byte{1}).CopyFloat32s(dst, 0))

	f, ok := message.Int(3).Float()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	_, ok = message.Num(3).Int()
	assert.False(t, ok)
	s, ok := message.Str("abc").Text()
	assert.True(t, ok)
	assert.Equal(t, "abc", s)
}

func TestFullChannel(t *testing.T) {
	// prefix + integer + prefix + integer = 26
	_, w, r := newChannel(t, 30)

	require.NoError(t, w.AddInteger(1))
	require.NoError(t, w.TrySend())
	require.NoError(t, w.AddInteger(2))
	require.NoError(t, w.TrySend())

	require.NoError(t, w.AddInteger(3))
	assert.Equal(t, message.ErrFull, w.TrySend())
	// message is kept after ErrFull
	assert.Equal(t, 9, w.Len())

	ok, err := r.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := r.Value().Int()
	assert.Equal(t, int64(1), v)

	// space was released on read
	require.NoError(t, w.TrySend())
	for _, expected := range []int64{2, 3} {
		ok, err = r.TryNext()
		require.NoError(t, err)
		require.True(t, ok)
		v, _ = r.Value().Int()
		assert.Equal(t, expected, v)
	}
}

func TestWrapAround(t *testing.T) {
	_, w, r := newChannel(t, 64)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		payload := []byte{byte(i), byte(i + 1), byte(i + 2)}
		require.NoError(t, w.Write(ctx, message.Int(int64(i)), message.Bytes(payload)))
		require.NoError(t, r.Next(ctx))
		n, ok := r.Value().Int()
		require.True(t, ok)
		assert.Equal(t, int64(i), n)
		assert.Equal(t, payload, r.Value().Bytes())
	}
}

func TestTooLarge(t *testing.T) {
	_, w, _ := newChannel(t, 32)
	err := w.AddBytes(make([]byte, 64))
	assert.Equal(t, message.ErrTooLarge, err)
	assert.Equal(t, 0, w.Len())

	assert.Equal(t, message.ErrInvalid, w.Add(message.Value{}))
	assert.Equal(t, message.ErrInvalid, w.Add(message.RawArray(message.Int32, []byte{1, 2, 3})))
	_, err = w.AddArray(message.ArrayType(99), 1)
	assert.Equal(t, message.ErrInvalid, err)
}

func TestSize(t *testing.T) {
	values := []message.Value{message.Int(1), message.Num(0.5), message.Str("ab"), message.Bytes([]byte{1, 2, 3})}
	assert.Equal(t, 4+9+9+7+9, message.Size(values...))

	// a message of exactly channel capacity fits
	_, w, r := newChannel(t, message.Size(values...))
	require.NoError(t, w.Write(context.Background(), values...))
	ok, err := r.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := r.Value().Int()
	assert.Equal(t, int64(1), v)
}

func TestExclusiveEnds(t *testing.T) {
	ch, _, _ := newChannel(t, message.DefaultCapacity)
	_, err := ch.Reader()
	assert.Equal(t, message.ErrReaderTaken, err)
	_, err = ch.Writer()
	assert.Equal(t, message.ErrWriterTaken, err)

	_, err = message.New(4)
	assert.Error(t, err)
}

func TestDrain(t *testing.T) {
	_, w, r := newChannel(t, message.DefaultCapacity)
	ctx := context.Background()
	require.NoError(t, w.Write(ctx, message.Int(1), message.Int(2), message.Int(3)))
	require.NoError(t, w.Write(ctx, message.Int(4)))

	require.NoError(t, r.Next(ctx))
	r.Value()
	r.Drain()
	assert.Equal(t, message.None, r.Value().Kind())

	require.NoError(t, r.Next(ctx))
	v, _ := r.Value().Int()
	assert.Equal(t, int64(4), v)
}

func TestBlockingSend(t *testing.T) {
	ch, w, r := newChannel(t, 64)
	const messages = 200
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer ch.Close()
		for i := 0; i < messages; i++ {
			if err := w.Write(ctx, message.Int(int64(i)), message.Str("event")); err != nil {
				return err
			}
		}
		return nil
	})
	received := make([]int64, 0, messages)
	g.Go(func() error {
		for {
			err := r.Next(ctx)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			v, _ := r.Value().Int()
			received = append(received, v)
		}
	})
	require.NoError(t, g.Wait())
	require.Len(t, received, messages)
	for i, v := range received {
		assert.Equal(t, int64(i), v)
	}
}

func TestSendCancel(t *testing.T) {
	_, w, _ := newChannel(t, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Write(ctx, message.Int(1)))
	assert.Equal(t, context.DeadlineExceeded, w.Write(ctx, message.Int(2)))
}

func TestClosed(t *testing.T) {
	ch, w, r := newChannel(t, message.DefaultCapacity)
	ctx := context.Background()
	require.NoError(t, w.Write(ctx, message.Int(1)))
	ch.Close()
	assert.Equal(t, message.ErrClosed, w.Write(ctx, message.Int(2)))
	// queued message is still readable
	require.NoError(t, r.Next(ctx))
	assert.Equal(t, io.EOF, r.Next(ctx))
}
