package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"pipelined.dev/signal"

	"pipelined.dev/auproc"
	"pipelined.dev/auproc/audio"
	"pipelined.dev/auproc/engine"
	"pipelined.dev/auproc/log"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/metric"
	"pipelined.dev/auproc/wav"
)

// inflight is the number of captured blocks that can wait to be written.
const inflight = 4

type renderCommand struct {
	in        stringList
	out       string
	gains     stringList
	bitDepth  int
	blockSize int
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Mix wav files down to a mono wav file"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.Var(&cmd.in, "in", "input wav file, can be repeated (required)")
	fs.StringVar(&cmd.out, "out", "", "output wav file (required)")
	fs.Var(&cmd.gains, "gain", "input gain as <input>:<gain>, inputs are counted from 1")
	fs.IntVar(&cmd.bitDepth, "bitdepth", 16, "output bit depth")
	fs.IntVar(&cmd.blockSize, "block", engine.DefaultBlockSize, "frames per block")
}

func (cmd *renderCommand) Validate() error {
	var message string
	if len(cmd.in) == 0 {
		message = message + "Missing -in required flag\n"
	}
	if cmd.out == "" {
		message = message + "Missing -out required flag\n"
	}
	if message != "" {
		return errors.New(message)
	}
	return nil
}

// track is a wav file played by its own sender.
type track struct {
	reader *wav.Reader
	writer *message.Writer
	ready  chan struct{}
}

func (cmd *renderCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	gains, err := parseGains(cmd.gains, len(cmd.in))
	if err != nil {
		return err
	}
	tracks := make([]*track, 0, len(cmd.in))
	defer func() {
		for _, t := range tracks {
			t.reader.Close()
		}
	}()
	for _, path := range cmd.in {
		r, err := wav.Open(path)
		if err != nil {
			return err
		}
		tracks = append(tracks, &track{reader: r, ready: make(chan struct{})})
		if sr := tracks[0].reader.SampleRate(); r.SampleRate() != sr {
			return fmt.Errorf("%v: sample rate %d doesn't match %d", path, r.SampleRate(), sr)
		}
	}
	sampleRate := tracks[0].reader.SampleRate()

	logger := log.GetLogger()
	e, err := engine.New(
		engine.WithBlockSize(cmd.blockSize),
		engine.WithSampleRate(sampleRate),
		engine.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer e.Close()

	// every message carries a start time and a block of samples
	blockMessage := 4 + 9 + 6 + 4*cmd.blockSize
	mixerConns := make([]auproc.Connector, 0, len(tracks)+1)
	for i, t := range tracks {
		events, err := message.New(2 * blockMessage)
		if err != nil {
			return err
		}
		t.writer, _ = events.Writer()
		r, _ := events.Reader()
		bus := e.NewAudioPort(fmt.Sprintf("track-%d", i+1), auproc.In|auproc.Out)
		s, err := audio.NewSender(r, bus)
		if err != nil {
			return err
		}
		if err := register(e, s); err != nil {
			return err
		}
		mixerConns = append(mixerConns, bus)
	}

	control, err := message.New(message.DefaultCapacity)
	if err != nil {
		return err
	}
	controlWriter, _ := control.Writer()
	controlReader, _ := control.Reader()
	for _, g := range gains {
		if err := controlWriter.Write(context.Background(), message.Int(int64(g.input)), message.Num(g.gain)); err != nil {
			return err
		}
	}
	mix := e.NewAudioPort("mix", auproc.In|auproc.Out)
	mixer, err := audio.NewMixer(controlReader, append(mixerConns, mix)...)
	if err != nil {
		return err
	}
	if err := register(e, mixer); err != nil {
		return err
	}

	capture, err := message.New(inflight * blockMessage)
	if err != nil {
		return err
	}
	captureWriter, _ := capture.Writer()
	captureReader, _ := capture.Reader()
	receiver, err := audio.NewReceiver(captureWriter, mix)
	if err != nil {
		return err
	}
	if err := register(e, receiver); err != nil {
		return err
	}

	out, err := wav.Create(cmd.out, sampleRate, signal.BitDepth(cmd.bitDepth))
	if err != nil {
		return err
	}

	credits := make(chan struct{}, inflight)
	for i := 0; i < inflight; i++ {
		credits <- struct{}{}
	}
	g, ctx := errgroup.WithContext(context.Background())
	for _, t := range tracks {
		t := t
		g.Go(func() error {
			return t.produce(ctx, cmd.blockSize)
		})
	}
	g.Go(func() error {
		defer capture.Close()
		return drive(ctx, e, tracks, credits)
	})
	g.Go(func() error {
		return consume(ctx, captureReader, out, cmd.blockSize, credits)
	})
	if err := g.Wait(); err != nil {
		out.Close()
		return err
	}
	logger.WithField("frames", e.Time()).
		WithField("dropped", metric.Get(receiver)[metric.DropCounter]).
		Infof("rendered %v", cmd.out)
	return out.Close()
}

// produce sends the track block by block and signals every sent block.
func (t *track) produce(ctx context.Context, blockSize int) error {
	defer close(t.ready)
	buf := make([]float32, blockSize)
	var pos int64
	for {
		n, err := t.reader.Read(buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		t.writer.Clear()
		if err := t.writer.AddInteger(pos); err != nil {
			return err
		}
		if err := t.writer.AddFloat32s(buf[:n]); err != nil {
			return err
		}
		if err := t.writer.Send(ctx); err != nil {
			return err
		}
		pos += int64(n)
		select {
		case t.ready <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drive cycles the engine when every unfinished track has sent the
// block and there is space for one more captured block.
func drive(ctx context.Context, e *engine.Engine, tracks []*track, credits <-chan struct{}) error {
	ready := make([]<-chan struct{}, len(tracks))
	for i := range tracks {
		ready[i] = tracks[i].ready
	}
	for {
		live := 0
		for i := range ready {
			if ready[i] == nil {
				continue
			}
			select {
			case _, ok := <-ready[i]:
				if ok {
					live++
				} else {
					ready[i] = nil
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if live == 0 {
			return nil
		}
		select {
		case <-credits:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := e.Cycle(); err != nil {
			return err
		}
	}
}

// consume writes captured blocks into the wav file.
func consume(ctx context.Context, r *message.Reader, w *wav.Writer, blockSize int, credits chan<- struct{}) error {
	buf := make([]float32, blockSize)
	for {
		if err := r.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		r.Value()
		n := r.Value().CopyFloat32s(buf, 0)
		if err := w.Write(buf[:n]); err != nil {
			return err
		}
		credits <- struct{}{}
	}
}

func register(e *engine.Engine, p auproc.Processor) error {
	if _, err := e.Register(p); err != nil {
		return err
	}
	return e.Activate(p)
}

type gain struct {
	input int
	gain  float64
}

func parseGains(values []string, inputs int) ([]gain, error) {
	gains := make([]gain, 0, len(values))
	for _, v := range values {
		s := strings.SplitN(v, ":", 2)
		if len(s) != 2 {
			return nil, fmt.Errorf("invalid gain %q: expected <input>:<gain>", v)
		}
		i, err := strconv.Atoi(s[0])
		if err != nil {
			return nil, fmt.Errorf("invalid gain %q: %w", v, err)
		}
		if i < 1 || i > inputs {
			return nil, fmt.Errorf("invalid gain %q: input out of range [1, %d]", v, inputs)
		}
		g, err := strconv.ParseFloat(s[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid gain %q: %w", v, err)
		}
		gains = append(gains, gain{input: i, gain: g})
	}
	return gains, nil
}
