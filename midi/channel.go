// Package midi provides real-time MIDI nodes: mixer, sender and receiver.
//
// Channel maps apply to channel voice messages only (status 0x80-0xEF).
// System messages and events starting with a data byte (running status)
// have no channel and pass the mixer unchanged.
package midi

import "fmt"

// Channels is the number of MIDI channels.
const Channels = 16

// Drop is a channel map target that discards events of the channel.
const Drop = -1

// ChannelMap maps MIDI channels 0..15 to target channels or Drop.
type ChannelMap [Channels]int8

// Identity returns channel map that keeps every channel.
func Identity() ChannelMap {
	var m ChannelMap
	for i := range m {
		m[i] = int8(i)
	}
	return m
}

// Set maps channel from to channel to. To can be Drop.
func (m *ChannelMap) Set(from, to int) error {
	if from < 0 || from >= Channels {
		return fmt.Errorf("invalid source channel: %d", from)
	}
	if to < Drop || to >= Channels {
		return fmt.Errorf("invalid target channel: %d", to)
	}
	m[from] = int8(to)
	return nil
}

// Remap returns status byte with mapped channel. False is returned if the
// channel is dropped. Only channel voice messages are mapped, system
// messages are returned as is.
func (m *ChannelMap) Remap(status byte) (byte, bool) {
	if status < 0x80 || status >= 0xF0 {
		return status, true
	}
	to := m[status&0x0F]
	if to == Drop {
		return 0, false
	}
	return status&0xF0 | byte(to), true
}
