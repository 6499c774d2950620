/*
Package auproc provides real-time audio and MIDI processing nodes.

Concept

Nodes run inside the periodic callback of a streaming media engine. The
engine calls Process once per block with the block size and the absolute
frame time of its first sample. A node reads its input connectors, writes its
output connectors and returns before the period ends. It must not block,
allocate or take locks while doing so.

Non-real-time code talks to running nodes through message channels, see the
message package. A channel is a bounded single-producer/single-consumer
queue of typed values. It is used in two directions:

    control - gains, channel maps and scheduled events flow into a node;
    capture - timestamped audio and MIDI data flow out of a node.

Nodes

The audio and midi packages contain the nodes:

    audio.Mixer - sums gain-scaled audio inputs;
    audio.Sender - plays scheduled sample runs;
    audio.Receiver - captures audio blocks;
    midi.Mixer - merges MIDI inputs with per-input channel remapping;
    midi.Sender - plays scheduled MIDI messages;
    midi.Receiver - captures MIDI events.

Connectors

Nodes are constructed from connectors. A connector is either audio or MIDI
capable, this is decided once at construction:

    m, err := audio.NewMixer(control, in1, in2, out)

Construction fails with ConnectorError if a connector has the wrong type or
direction. The engine package provides an in-process engine with ports that
satisfy the connector interfaces.
*/
package auproc
