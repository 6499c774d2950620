package schedule_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/auproc/internal/schedule"
	"pipelined.dev/auproc/message"
)

func acceptBytes(v message.Value) bool {
	return v.ArrayType() == message.Uint8
}

func TestPull(t *testing.T) {
	ch, err := message.New(message.DefaultCapacity)
	require.NoError(t, err)
	w, _ := ch.Writer()
	r, _ := ch.Reader()
	ctx := context.Background()

	var dropped int64
	s := schedule.New(r, acceptBytes, func(n int64) { dropped += n })

	_, ok := s.Pull(0)
	assert.False(t, ok, "empty channel")

	require.NoError(t, w.Write(ctx, message.Int(10), message.Bytes([]byte{1, 2, 3})))
	require.NoError(t, w.Write(ctx, message.Num(20.7), message.Bytes([]byte{4})))
	require.NoError(t, w.Write(ctx, message.Bytes([]byte{5, 6})))
	require.NoError(t, w.Write(ctx, message.Int(40), message.Str("wrong")))

	e, ok := s.Pull(0)
	require.True(t, ok)
	assert.Equal(t, int64(10), e.Start)
	assert.Equal(t, int64(13), e.End())
	e.Skip(2)
	assert.Equal(t, int64(12), e.Start)
	assert.Equal(t, 1, e.Remaining())

	// pending event is returned again
	e, ok = s.Pull(100)
	require.True(t, ok)
	assert.Equal(t, int64(12), e.Start)
	assert.True(t, s.Pending())
	s.Done()
	assert.False(t, s.Pending())

	e, ok = s.Pull(0)
	require.True(t, ok)
	assert.Equal(t, int64(20), e.Start, "number start is truncated")
	s.Done()

	e, ok = s.Pull(33)
	require.True(t, ok)
	assert.Equal(t, int64(33), e.Start, "missing start defaults to block start")
	assert.Equal(t, []byte{5, 6}, e.Payload.Bytes())
	s.Done()

	_, ok = s.Pull(0)
	assert.False(t, ok, "wrong payload is discarded")
	assert.Equal(t, int64(1), dropped)
	_, ok = s.Pull(0)
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	ch, err := message.New(message.DefaultCapacity)
	require.NoError(t, err)
	w, _ := ch.Writer()
	r, _ := ch.Reader()
	ctx := context.Background()

	s := schedule.New(r, acceptBytes, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write(ctx, message.Int(int64(i)), message.Bytes([]byte{byte(i)})))
	}
	_, ok := s.Pull(0)
	require.True(t, ok)

	assert.Equal(t, 3, s.Reset())
	assert.False(t, s.Pending())
	assert.Equal(t, 0, ch.Len())
	_, ok = s.Pull(0)
	assert.False(t, ok)
}
