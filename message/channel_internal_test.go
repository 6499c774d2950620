package message

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorruptPrefix(t *testing.T) {
	ch, err := New(64)
	require.NoError(t, err)
	w, _ := ch.Writer()
	r, _ := ch.Reader()

	// length prefix pointing past the queued data
	binary.LittleEndian.PutUint32(ch.buf, 1000)
	ch.head.Store(prefixSize + 2)

	ok, err := r.TryNext()
	assert.False(t, ok)
	assert.Equal(t, ErrCorrupt, err)
	assert.Equal(t, 0, ch.Len())

	// channel is usable again
	require.NoError(t, w.AddInteger(7))
	require.NoError(t, w.TrySend())
	ok, err = r.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := r.Value().Int()
	assert.Equal(t, int64(7), v)
}

func TestCorruptValue(t *testing.T) {
	ch, err := New(64)
	require.NoError(t, err)
	r, _ := ch.Reader()

	// message of 3 bytes: truncated integer
	msg := []byte{byte(Integer), 1, 2}
	require.NoError(t, ch.commit(msg))

	ok, err := r.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, None, r.Value().Kind())
	assert.Equal(t, ErrCorrupt, r.Err())
}

func TestDecodeArrayBounds(t *testing.T) {
	p := []byte{byte(Array), byte(Float32), 10, 0, 0, 0, 1, 2, 3, 4}
	_, _, err := decode(p)
	assert.Equal(t, ErrCorrupt, err)

	p = []byte{byte(Array), 0, 1, 0, 0, 0, 1}
	_, _, err = decode(p)
	assert.Equal(t, ErrCorrupt, err)
}
