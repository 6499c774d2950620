package example

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/auproc"
)

func TestOne(t *testing.T) {
	assert.Equal(t, []float32{
		0, 0, 1, 1, 1.5, 1.5, 0.5, 0.5,
		0.5, 0.5, 0.5, 0.5, 0, 0, 0, 0,
	}, one())
}

func TestTwo(t *testing.T) {
	assert.Equal(t, []auproc.MIDIEvent{
		{Time: 3, Data: []byte{0x99, 60, 100}},
		{Time: 20, Data: []byte{0x89, 60, 0}},
	}, two())
}
