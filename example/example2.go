package example

import (
	"context"

	"pipelined.dev/auproc"
	"pipelined.dev/auproc/engine"
	"pipelined.dev/auproc/log"
	"pipelined.dev/auproc/message"
	"pipelined.dev/auproc/midi"
)

// Example 2:
//
//	Schedule note events with MIDI sender
//	Move channel 0 to channel 9 with MIDI mixer
//	Capture events with MIDI receiver
func two() []auproc.MIDIEvent {
	e, err := engine.New(engine.WithBlockSize(16), engine.WithLogger(log.Discard()))
	check(err)
	defer e.Close()
	ctx := context.Background()

	events, err := message.New(message.DefaultCapacity)
	check(err)
	ew, err := events.Writer()
	check(err)
	er, err := events.Reader()
	check(err)
	bus := e.NewMIDIPort("bus", auproc.In|auproc.Out)
	sender, err := midi.NewSender(er, bus)
	check(err)
	start(e, sender)

	control, err := message.New(message.DefaultCapacity)
	check(err)
	cw, err := control.Writer()
	check(err)
	cr, err := control.Reader()
	check(err)
	merged := e.NewMIDIPort("merged", auproc.In|auproc.Out)
	mixer, err := midi.NewMixer(cr, bus, merged)
	check(err)
	start(e, mixer)

	capture, err := message.New(message.DefaultCapacity)
	check(err)
	capw, err := capture.Writer()
	check(err)
	capr, err := capture.Reader()
	check(err)
	receiver, err := midi.NewReceiver(capw, merged)
	check(err)
	start(e, receiver)

	check(cw.Write(ctx, message.Int(1), message.Int(0), message.Int(9)))
	check(ew.Write(ctx, message.Int(3), message.Bytes([]byte{0x90, 60, 100})))
	check(ew.Write(ctx, message.Int(20), message.Bytes([]byte{0x80, 60, 0})))
	check(e.Render(2))

	var result []auproc.MIDIEvent
	for {
		ok, err := capr.TryNext()
		check(err)
		if !ok {
			return result
		}
		t, _ := capr.Value().Int()
		data := append([]byte(nil), capr.Value().Bytes()...)
		result = append(result, auproc.MIDIEvent{Time: int(t), Data: data})
	}
}
