// Package wav reads and writes wav files as mono float32 signal. It's
// used to feed audio senders and to store captured blocks.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"pipelined.dev/signal"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")

// ErrInvalidFile is returned when file is not a valid wav.
var ErrInvalidFile = errors.New("wav is not valid")

type (
	// Reader reads wav file. Multi-channel files are mixed down to mono.
	Reader struct {
		file        *os.File
		decoder     *wav.Decoder
		ib          *audio.IntBuffer
		numChannels int
		bitDepth    signal.BitDepth
		ints        signal.Signed
		floats      signal.Floating
		samples     []float32
	}

	// Writer writes mono wav file.
	Writer struct {
		file     *os.File
		encoder  *wav.Encoder
		ib       *audio.IntBuffer
		bitDepth signal.BitDepth
		clipped  []float32
		ints     signal.Signed
		floats   signal.Floating
	}
)

func supported(bitDepth signal.BitDepth) bool {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
		return true
	}
	return false
}

// allocate returns int and float signals of provided dimensions.
func allocate(channels, length int, bitDepth signal.BitDepth) (signal.Signed, signal.Floating) {
	a := signal.Allocator{
		Channels: channels,
		Length:   length,
		Capacity: length,
	}
	return a.Int32(bitDepth), a.Float32()
}

// Open opens wav file for reading.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("%w, failed to close %v: %v", ErrInvalidFile, path, err)
		}
		return nil, ErrInvalidFile
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if !supported(bitDepth) {
		file.Close()
		return nil, fmt.Errorf("%v: %w: %d", path, ErrUnsupportedBitDepth, bitDepth)
	}
	format := decoder.Format()
	return &Reader{
		file:        file,
		decoder:     decoder,
		numChannels: format.NumChannels,
		bitDepth:    bitDepth,
		ib: &audio.IntBuffer{
			Format:         format,
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// SampleRate returns file sample rate.
func (r *Reader) SampleRate() int {
	return int(r.decoder.SampleRate)
}

// NumChannels returns number of channels of the file.
func (r *Reader) NumChannels() int {
	return r.numChannels
}

// Read reads up to len(dst) frames. Channels are averaged. It returns
// io.EOF when there are no more frames.
func (r *Reader) Read(dst []float32) (int, error) {
	size := len(dst) * r.numChannels
	if len(r.samples) != size {
		r.ib.Data = make([]int, size)
		r.samples = make([]float32, size)
		r.ints, r.floats = allocate(r.numChannels, len(dst), r.bitDepth)
	}
	n, err := r.decoder.PCMBuffer(r.ib)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	signal.WriteInt(r.ib.Data[:n], r.ints)
	signal.SignedAsFloating(r.ints, r.floats)
	signal.ReadFloat32(r.floats, r.samples)
	frames := n / r.numChannels
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < r.numChannels; c++ {
			sum += r.samples[i*r.numChannels+c]
		}
		dst[i] = sum / float32(r.numChannels)
	}
	return frames, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Create creates mono wav file.
func Create(path string, sampleRate int, bitDepth signal.BitDepth) (*Writer, error) {
	if !supported(bitDepth) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file:     f,
		encoder:  wav.NewEncoder(f, sampleRate, int(bitDepth), 1, 1),
		bitDepth: bitDepth,
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Write encodes samples. Values outside of [-1, 1] are clipped.
func (w *Writer) Write(samples []float32) error {
	if len(w.clipped) != len(samples) {
		w.ib.Data = make([]int, len(samples))
		w.clipped = make([]float32, len(samples))
		w.ints, w.floats = allocate(1, len(samples), w.bitDepth)
	}
	for i, s := range samples {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		w.clipped[i] = s
	}
	signal.WriteFloat32(w.clipped, w.floats)
	signal.FloatingAsSigned(w.floats, w.ints)
	signal.ReadInt(w.ints, w.ib.Data)
	return w.encoder.Write(w.ib)
}

// Close flushes encoder and closes the file.
func (w *Writer) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
