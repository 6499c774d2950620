package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/sync/errgroup"

	"pipelined.dev/auproc"
	"pipelined.dev/auproc/engine"
	"pipelined.dev/auproc/log"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/metric"
	"pipelined.dev/auproc/midi"
)

type midiCommand struct {
	out        io.Writer
	in         stringList
	maps       stringList
	bpm        float64
	sampleRate int
	blockSize  int
}

func (cmd *midiCommand) Name() string {
	return "midi"
}

func (cmd *midiCommand) Help() string {
	return "Merge MIDI files and print resulting events"
}

func (cmd *midiCommand) Register(fs *flag.FlagSet) {
	fs.Var(&cmd.in, "in", "input MIDI file, can be repeated (required)")
	fs.Var(&cmd.maps, "map", "channel map as <input>:<from>:<to>, to is -1 to drop the channel")
	fs.Float64Var(&cmd.bpm, "bpm", 120, "tempo used to convert ticks into frames")
	fs.IntVar(&cmd.sampleRate, "rate", engine.DefaultSampleRate, "sample rate")
	fs.IntVar(&cmd.blockSize, "block", engine.DefaultBlockSize, "frames per block")
}

func (cmd *midiCommand) Validate() error {
	if len(cmd.in) == 0 {
		return errors.New("Missing -in required flag\n")
	}
	if cmd.bpm <= 0 {
		return fmt.Errorf("invalid bpm: %v", cmd.bpm)
	}
	return nil
}

// sequence is a MIDI file played by its own sender.
type sequence struct {
	events []timedEvent
	writer *message.Writer
	ready  chan struct{}
}

type timedEvent struct {
	frame int64
	msg   gomidi.Message
}

func (cmd *midiCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	maps, err := parseMaps(cmd.maps, len(cmd.in))
	if err != nil {
		return err
	}
	seqs := make([]*sequence, 0, len(cmd.in))
	for _, path := range cmd.in {
		events, err := readSMF(path, cmd.bpm, cmd.sampleRate)
		if err != nil {
			return err
		}
		seqs = append(seqs, &sequence{events: events, ready: make(chan struct{})})
	}

	logger := log.GetLogger()
	e, err := engine.New(
		engine.WithBlockSize(cmd.blockSize),
		engine.WithSampleRate(cmd.sampleRate),
		engine.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer e.Close()

	mixerConns := make([]auproc.Connector, 0, len(seqs)+1)
	for i, seq := range seqs {
		ch, err := message.New(seq.capacity(int64(cmd.blockSize)))
		if err != nil {
			return err
		}
		seq.writer, _ = ch.Writer()
		r, _ := ch.Reader()
		bus := e.NewMIDIPort(fmt.Sprintf("sequence-%d", i+1), auproc.In|auproc.Out)
		s, err := midi.NewSender(r, bus)
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
	for _, m := range maps {
		if err := controlWriter.Write(context.Background(), message.Int(int64(m[0])), message.Int(int64(m[1])), message.Int(int64(m[2]))); err != nil {
			return err
		}
	}
	merged := e.NewMIDIPort("merged", auproc.In|auproc.Out)
	mixer, err := midi.NewMixer(controlReader, append(mixerConns, merged)...)
	if err != nil {
		return err
	}
	if err := register(e, mixer); err != nil {
		return err
	}

	capture, err := message.New(4 * message.DefaultCapacity)
	if err != nil {
		return err
	}
	captureWriter, _ := capture.Writer()
	captureReader, _ := capture.Reader()
	receiver, err := midi.NewReceiver(captureWriter, merged)
	if err != nil {
		return err
	}
	if err := register(e, receiver); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, seq := range seqs {
		seq := seq
		g.Go(func() error {
			return seq.produce(ctx, int64(cmd.blockSize))
		})
	}
	g.Go(func() error {
		defer capture.Close()
		return driveSequences(ctx, e, seqs)
	})
	g.Go(func() error {
		return cmd.print(ctx, captureReader)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.WithField("frames", e.Time()).
		WithField("dropped", metric.Get(receiver)[metric.DropCounter]).
		Debug("midi done")
	return nil
}

// readSMF returns playable events of all tracks sorted by frame.
func readSMF(path string, bpm float64, sampleRate int) ([]timedEvent, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%v: unsupported time format %v", path, s.TimeFormat)
	}
	var events []timedEvent
	for _, track := range s.Tracks {
		var abs uint32
		for _, ev := range track {
			abs += ev.Delta
			if !ev.Message.IsPlayable() {
				continue
			}
			d := ticks.Duration(bpm, abs)
			events = append(events, timedEvent{
				frame: frameOf(d, sampleRate),
				msg:   gomidi.Message(ev.Message),
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].frame < events[j].frame
	})
	return events, nil
}

func frameOf(d time.Duration, sampleRate int) int64 {
	return int64(d) * int64(sampleRate) / int64(time.Second)
}

// capacity returns channel capacity that fits events of the densest
// block. Producer writes a whole block before the engine cycles it.
func (seq *sequence) capacity(blockSize int64) int {
	var max, size int
	block := int64(-1)
	for _, ev := range seq.events {
		if b := ev.frame / blockSize; b != block {
			block, size = b, 0
		}
		size += message.Size(message.Int(ev.frame), message.Bytes(ev.msg))
		if size > max {
			max = size
		}
	}
	if max < message.DefaultCapacity {
		return message.DefaultCapacity
	}
	return max
}

// produce sends events block by block and signals every sent block.
func (seq *sequence) produce(ctx context.Context, blockSize int64) error {
	defer close(seq.ready)
	end := blockSize
	for i := 0; i < len(seq.events); {
		for ; i < len(seq.events) && seq.events[i].frame < end; i++ {
			ev := seq.events[i]
			if err := seq.writer.Write(ctx, message.Int(ev.frame), message.Bytes(ev.msg)); err != nil {
				return err
			}
		}
		select {
		case seq.ready <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		end += blockSize
	}
	return nil
}

// driveSequences cycles the engine when every unfinished sequence has
// sent events of the block.
func driveSequences(ctx context.Context, e *engine.Engine, seqs []*sequence) error {
	ready := make([]<-chan struct{}, len(seqs))
	for i := range seqs {
		ready[i] = seqs[i].ready
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
		if err := e.Cycle(); err != nil {
			return err
		}
	}
}

// print writes captured events as <frame> <message>.
func (cmd *midiCommand) print(ctx context.Context, r *message.Reader) error {
	for {
		if err := r.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		frame, _ := r.Value().Int()
		msg := gomidi.Message(r.Value().Bytes())
		fmt.Fprintf(cmd.out, "%d\t%v\n", frame, msg)
	}
}

func parseMaps(values []string, inputs int) ([][3]int, error) {
	maps := make([][3]int, 0, len(values))
	for _, v := range values {
		s := strings.Split(v, ":")
		if len(s) != 3 {
			return nil, fmt.Errorf("invalid map %q: expected <input>:<from>:<to>", v)
		}
		var m [3]int
		for i := range s {
			n, err := strconv.Atoi(s[i])
			if err != nil {
				return nil, fmt.Errorf("invalid map %q: %w", v, err)
			}
			m[i] = n
		}
		if m[0] < 1 || m[0] > inputs {
			return nil, fmt.Errorf("invalid map %q: input out of range [1, %d]", v, inputs)
		}
		var cm midi.ChannelMap
		if err := cm.Set(m[1], m[2]); err != nil {
			return nil, fmt.Errorf("invalid map %q: %w", v, err)
		}
		maps = append(maps, m)
	}
	return maps, nil
}
