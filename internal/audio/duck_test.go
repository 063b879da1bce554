package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinkInputs = `Sink Input #42
	Driver: protocol-native.c
	Volume: front-left: 65536 / 100% / 0.00 dB,   front-right: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "Firefox"
		media.name = "Playback"

Sink Input #57
	Volume: mono: 45875 /  70% / -9.29 dB
	Properties:
		application.name = "eryon"

Sink Input #bogus
	Volume: mono: 100%
`

func TestParseSinkInputs(t *testing.T) {
	got := parseSinkInputs(sinkInputs)
	require.Len(t, got, 2)

	assert.Equal(t, streamInfo{ID: 42, Volume: 100, AppName: "Firefox"}, got[0])
	assert.Equal(t, streamInfo{ID: 57, Volume: 70, AppName: "eryon"}, got[1])

	assert.Empty(t, parseSinkInputs(""))
}

func TestDuckedVolume(t *testing.T) {
	assert.Equal(t, 30, duckedVolume(100, 0.3, 10))
	assert.Equal(t, 10, duckedVolume(20, 0.3, 10))
	assert.Equal(t, 150, duckedVolume(100, 2, 0))
}

func TestIsSelfStream(t *testing.T) {
	d := NewDucker([]string{"eryon"}, 10, 0.3)
	assert.True(t, d.isSelfStream(streamInfo{AppName: "eryon"}))
	assert.False(t, d.isSelfStream(streamInfo{AppName: "Firefox"}))
}

func TestNewDuckerClamps(t *testing.T) {
	d := NewDucker(nil, -5, 0)
	assert.Equal(t, 0, d.minVolume)
	assert.Equal(t, 0.3, d.factor)

	d = NewDucker(nil, 500, 0.5)
	assert.Equal(t, 150, d.minVolume)
	assert.Equal(t, 0.5, d.factor)
}

func TestFrameRMS(t *testing.T) {
	assert.Zero(t, frameRMS(nil))
	assert.InDelta(t, 0.5, frameRMS([]float32{0.5, -0.5, 0.5, -0.5}), 1e-9)
}
