package audio_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/auproc"
	"pipelined.dev/auproc/audio"
	"pipelined.dev/auproc/engine"
	"pipelined.dev/auproc/log"
	"pipelined.dev/auproc/message"
)

func newEngine(t *testing.T, blockSize int) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.WithBlockSize(blockSize), engine.WithLogger(log.Discard()))
	require.NoError(t, err)
	return e
}

func newChannel(t *testing.T, capacity int) (*message.Writer, *message.Reader) {
	t.Helper()
	ch, err := message.New(capacity)
	require.NoError(t, err)
	w, err := ch.Writer()
	require.NoError(t, err)
	r, err := ch.Reader()
	require.NoError(t, err)
	return w, r
}

func fill(c auproc.AudioConnector, frames int, fn func(k int) float32) {
	buf := c.AudioBuffer(frames)
	for k := range buf {
		buf[k] = fn(k)
	}
}

func TestNewMixer(t *testing.T) {
	e := newEngine(t, 8)
	in := e.NewAudioPort("in", auproc.In)
	out := e.NewAudioPort("out", auproc.Out)
	midi := e.NewMIDIPort("midi", auproc.In)
	tests := []struct {
		conns []auproc.Connector
		err   error
	}{
		{conns: []auproc.Connector{in, out}},
		{conns: []auproc.Connector{in, in, out}},
		{conns: []auproc.Connector{in}, err: auproc.ErrConnectorCount},
		{conns: []auproc.Connector{in, midi, out}, err: auproc.ErrConnectorType},
		{conns: []auproc.Connector{out, out}, err: auproc.ErrConnectorDirection},
		{conns: []auproc.Connector{in, in}, err: auproc.ErrConnectorDirection},
	}
	for _, test := range tests {
		m, err := audio.NewMixer(nil, test.conns...)
		if test.err != nil {
			assert.ErrorIs(t, err, test.err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, test.conns, m.Connectors())
		g, err := m.Gain(1)
		require.NoError(t, err)
		assert.Equal(t, float32(1), g)
		_, err = m.Gain(len(test.conns))
		assert.Error(t, err)
	}
}

func TestMixer(t *testing.T) {
	const frames = 16
	tests := []struct {
		inputs int
		gains  []message.Value
		want   []float32
	}{
		{
			inputs: 1,
			want:   []float32{1},
		},
		{
			inputs: 2,
			gains:  []message.Value{message.Int(1), message.Num(0.5), message.Int(2), message.Int(3)},
			want:   []float32{0.5, 3},
		},
		{
			inputs: 3,
			gains:  []message.Value{message.Int(3), message.Num(-0.25)},
			want:   []float32{1, 1, -0.25},
		},
	}
	for _, test := range tests {
		e := newEngine(t, frames)
		w, r := newChannel(t, message.DefaultCapacity)
		inputs := make([]*engine.AudioPort, test.inputs)
		conns := make([]auproc.Connector, 0, test.inputs+1)
		for i := range inputs {
			inputs[i] = e.NewAudioPort("in", auproc.In)
			conns = append(conns, inputs[i])
		}
		out := e.NewAudioPort("out", auproc.Out)
		conns = append(conns, out)
		m, err := audio.NewMixer(r, conns...)
		require.NoError(t, err)

		for i, in := range inputs {
			i := i
			fill(in, frames, func(k int) float32 { return float32((i + 1) * (k + 1)) })
		}
		if test.gains != nil {
			require.NoError(t, w.Write(context.Background(), test.gains...))
		}
		require.NoError(t, m.Process(auproc.Block{Frames: frames}))

		result := out.AudioBuffer(frames)
		for k := range result {
			var sum float32
			for i := range inputs {
				sum += float32((i+1)*(k+1)) * test.want[i]
			}
			assert.Equal(t, sum, result[k])
		}
		for i := range test.want {
			g, err := m.Gain(i + 1)
			require.NoError(t, err)
			assert.Equal(t, test.want[i], g)
		}
	}
}

func TestMixerControl(t *testing.T) {
	const frames = 4
	e := newEngine(t, frames)
	w, r := newChannel(t, message.DefaultCapacity)
	in1 := e.NewAudioPort("in1", auproc.In)
	in2 := e.NewAudioPort("in2", auproc.In)
	out := e.NewAudioPort("out", auproc.Out)
	m, err := audio.NewMixer(r, in1, in2, out)
	require.NoError(t, err)
	fill(in1, frames, func(int) float32 { return 1 })
	fill(in2, frames, func(int) float32 { return 10 })

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, message.Int(3), message.Num(5)))
	require.NoError(t, w.Write(ctx, message.Int(1), message.Str("loud")))
	require.NoError(t, w.Write(ctx, message.Num(1.5), message.Num(5)))
	require.NoError(t, w.Write(ctx, message.Int(2), message.Num(0)))

	require.NoError(t, m.Process(auproc.Block{Frames: frames}))
	assert.Equal(t, []float32{1, 1, 1, 1}, out.AudioBuffer(frames))

	require.NoError(t, w.Write(ctx, message.Int(1), message.Int(2)))
	require.NoError(t, m.Process(auproc.Block{Frames: frames, Start: frames}))
	assert.Equal(t, []float32{2, 2, 2, 2}, out.AudioBuffer(frames))
}

// collect concatenates non-silent regions of blocks.
func collect(t *testing.T, s *audio.Sender, out *engine.AudioPort, frames, blocks int) []float32 {
	t.Helper()
	var result []float32
	for i := 0; i < blocks; i++ {
		require.NoError(t, s.Process(auproc.Block{Frames: frames, Start: int64(i * frames)}))
		for _, v := range out.AudioBuffer(frames) {
			if v != 0 {
				result = append(result, v)
			}
		}
	}
	return result
}

func ramp(start, n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = float32(start + i)
	}
	return f
}

func TestSenderContinuity(t *testing.T) {
	const frames = 16
	e := newEngine(t, frames)
	w, r := newChannel(t, message.DefaultCapacity)
	out := e.NewAudioPort("out", auproc.Out)
	s, err := audio.NewSender(r, out)
	require.NoError(t, err)

	event := ramp(1, 20)
	require.NoError(t, w.Write(context.Background(), message.Int(10), message.Float32s(event)))

	require.NoError(t, s.Process(auproc.Block{Frames: frames}))
	first := append([]float32(nil), out.AudioBuffer(frames)...)
	assert.Equal(t, make([]float32, 10), first[:10])
	assert.Equal(t, event[:6], first[10:])
	assert.True(t, s.Pending())

	require.NoError(t, s.Process(auproc.Block{Frames: frames, Start: frames}))
	second := out.AudioBuffer(frames)
	assert.Equal(t, event[6:], second[:14])
	assert.Equal(t, make([]float32, 2), second[14:])
	assert.False(t, s.Pending())
}

func TestSender(t *testing.T) {
	const frames = 8
	tests := []struct {
		msg    string
		events [][]message.Value
		blocks int
		want   []float32
	}{
		{
			msg: "short events in one block",
			events: [][]message.Value{
				{message.Int(1), message.Float32s(ramp(1, 2))},
				{message.Float32s(ramp(3, 2))},
				{message.Int(6), message.Float32s(ramp(5, 2))},
			},
			blocks: 1,
			want:   ramp(1, 6),
		},
		{
			msg: "event spans three blocks",
			events: [][]message.Value{
				{message.Num(4.9), message.Float32s(ramp(1, 20))},
			},
			blocks: 4,
			want:   ramp(1, 20),
		},
		{
			msg: "past part is skipped",
			events: [][]message.Value{
				{message.Int(-3), message.Float32s(ramp(1, 6))},
				{message.Int(-10), message.Float32s(ramp(1, 2))},
			},
			blocks: 1,
			want:   ramp(4, 3),
		},
		{
			msg: "malformed events are dropped",
			events: [][]message.Value{
				{message.Int(0), message.Bytes([]byte{1, 2})},
				{message.Str("samples")},
				{message.Float32s(ramp(1, 3))},
			},
			blocks: 3,
			want:   ramp(1, 3),
		},
	}
	for _, test := range tests {
		e := newEngine(t, frames)
		w, r := newChannel(t, message.DefaultCapacity)
		out := e.NewAudioPort("out", auproc.Out)
		s, err := audio.NewSender(r, out)
		require.NoError(t, err)
		for _, values := range test.events {
			require.NoError(t, w.Write(context.Background(), values...), test.msg)
		}
		assert.Equal(t, test.want, collect(t, s, out, frames, test.blocks), test.msg)
	}
}

func TestSenderLate(t *testing.T) {
	const frames = 8
	e := newEngine(t, frames)
	w, r := newChannel(t, message.DefaultCapacity)
	out := e.NewAudioPort("out", auproc.Out)
	s, err := audio.NewSender(r, out)
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), message.Int(20), message.Float32s(ramp(1, 4))))
	require.NoError(t, s.Process(auproc.Block{Frames: frames}))
	assert.Equal(t, make([]float32, frames), out.AudioBuffer(frames))
	assert.True(t, s.Pending())

	s.Reset()
	assert.False(t, s.Pending())
	assert.Empty(t, collect(t, s, out, frames, 4))
}

func TestSenderShortBuffer(t *testing.T) {
	const frames = 4
	e := newEngine(t, frames)
	w, r := newChannel(t, message.DefaultCapacity)
	out := e.NewAudioPort("out", auproc.Out)
	s, err := audio.NewSender(r, out)
	require.NoError(t, err)

	event := ramp(1, 6)
	require.NoError(t, w.Write(context.Background(), message.Int(2), message.Float32s(event)))

	// block is longer than the port buffer
	require.NoError(t, s.Process(auproc.Block{Frames: 4 * frames}))
	assert.Equal(t, []float32{0, 0, 1, 2}, out.AudioBuffer(frames))
	assert.True(t, s.Pending())

	require.NoError(t, s.Process(auproc.Block{Frames: 4 * frames, Start: frames}))
	assert.Equal(t, []float32{3, 4, 5, 6}, out.AudioBuffer(frames))
	assert.False(t, s.Pending())
}

func TestNewSender(t *testing.T) {
	e := newEngine(t, 8)
	_, r := newChannel(t, 64)
	_, err := audio.NewSender(nil, e.NewAudioPort("out", auproc.Out))
	assert.ErrorIs(t, err, auproc.ErrNoChannel)
	_, err = audio.NewSender(r, e.NewAudioPort("in", auproc.In))
	assert.ErrorIs(t, err, auproc.ErrConnectorDirection)
	_, err = audio.NewSender(r, e.NewMIDIPort("out", auproc.Out))
	assert.ErrorIs(t, err, auproc.ErrConnectorType)
}

func TestReceiver(t *testing.T) {
	const frames = 4
	e := newEngine(t, frames)
	// room for a single block message: prefix, integer and array header
	// with samples
	w, r := newChannel(t, 4+9+6+frames*4)
	in := e.NewAudioPort("in", auproc.In)
	rc, err := audio.NewReceiver(w, in)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		i := i
		fill(in, frames, func(k int) float32 { return float32(i*frames + k) })
		require.NoError(t, rc.Process(auproc.Block{Frames: frames, Start: int64(i * frames)}))
	}

	ok, err := r.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	start, _ := r.Value().Int()
	assert.Equal(t, int64(0), start)
	assert.Equal(t, []float32{0, 1, 2, 3}, r.Value().Float32s())
	assert.Equal(t, message.None, r.Value().Kind())

	ok, err = r.TryNext()
	require.NoError(t, err)
	assert.False(t, ok, "blocks 1 and 2 are dropped")

	fill(in, frames, func(k int) float32 { return float32(-k) })
	require.NoError(t, rc.Process(auproc.Block{Frames: frames, Start: 3 * frames}))
	ok, err = r.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	start, _ = r.Value().Int()
	assert.Equal(t, int64(12), start)
	assert.Equal(t, []float32{0, -1, -2, -3}, r.Value().Float32s())
}

func TestClosedNodes(t *testing.T) {
	const frames = 4
	e := newEngine(t, frames)
	w, r := newChannel(t, 256)
	in := e.NewAudioPort("in", auproc.In)
	out := e.NewAudioPort("out", auproc.Out)
	fill(out, frames, func(int) float32 { return 7 })

	s, err := audio.NewSender(r, out)
	require.NoError(t, err)
	rc, err := audio.NewReceiver(w, in)
	require.NoError(t, err)
	s.OnClosed()
	rc.OnReleased()

	require.NoError(t, s.Process(auproc.Block{Frames: frames}))
	require.NoError(t, rc.Process(auproc.Block{Frames: frames}))
	assert.Equal(t, []float32{7, 7, 7, 7}, out.AudioBuffer(frames))
	ok, err := r.TryNext()
	require.NoError(t, err)
	assert.False(t, ok)
}
