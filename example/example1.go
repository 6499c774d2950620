package example

import (
	"context"

	"pipelined.dev/auproc"
	"pipelined.dev/auproc/audio"
	"pipelined.dev/auproc/engine"
	"pipelined.dev/auproc/log"
	"pipelined.dev/auproc/message"
)

// Example 1:
//
//	Schedule two sample runs with audio senders
//	Mix them with the second input at half gain
//	Capture the mix with audio receiver
func one() []float32 {
	e, err := engine.New(engine.WithBlockSize(8), engine.WithLogger(log.Discard()))
	check(err)
	defer e.Close()
	ctx := context.Background()

	var (
		buses   []auproc.Connector
		writers []*message.Writer
	)
	for i := 0; i < 2; i++ {
		ch, err := message.New(message.DefaultCapacity)
		check(err)
		w, err := ch.Writer()
		check(err)
		r, err := ch.Reader()
		check(err)
		bus := e.NewAudioPort("bus", auproc.In|auproc.Out)
		s, err := audio.NewSender(r, bus)
		check(err)
		start(e, s)
		buses = append(buses, bus)
		writers = append(writers, w)
	}

	control, err := message.New(message.DefaultCapacity)
	check(err)
	cw, err := control.Writer()
	check(err)
	cr, err := control.Reader()
	check(err)
	mix := e.NewAudioPort("mix", auproc.In|auproc.Out)
	mixer, err := audio.NewMixer(cr, append(buses, mix)...)
	check(err)
	start(e, mixer)

	capture, err := message.New(message.DefaultCapacity)
	check(err)
	capw, err := capture.Writer()
	check(err)
	capr, err := capture.Reader()
	check(err)
	receiver, err := audio.NewReceiver(capw, mix)
	check(err)
	start(e, receiver)

	check(writers[0].Write(ctx, message.Int(2), message.Float32s([]float32{1, 1, 1, 1})))
	check(writers[1].Write(ctx, message.Int(4), message.Float32s([]float32{1, 1, 1, 1, 1, 1, 1, 1})))
	check(cw.Write(ctx, message.Int(2), message.Num(0.5)))
	check(e.Render(2))

	var result []float32
	for {
		ok, err := capr.TryNext()
		check(err)
		if !ok {
			return result
		}
		capr.Value()
		result = append(result, capr.Value().Float32s()...)
	}
}

func start(e *engine.Engine, p auproc.Processor) {
	_, err := e.Register(p)
	check(err)
	check(e.Activate(p))
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
