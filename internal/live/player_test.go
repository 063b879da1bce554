package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerSchedulesBackToBack(t *testing.T) {
	p := NewPlayer(&fakeSink{}, 1000)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	p.now = func() time.Time { return now }

	// 500 samples at 1 kHz last half a second.
	s1 := p.Enqueue(make([]float32, 500))
	s2 := p.Enqueue(make([]float32, 250))
	assert.Equal(t, base, s1)
	assert.Equal(t, base.Add(500*time.Millisecond), s2)

	// A chunk arriving after the queue has drained starts now.
	now = base.Add(2 * time.Second)
	s3 := p.Enqueue(make([]float32, 100))
	assert.Equal(t, now, s3)
	assert.Equal(t, 3, p.Pending())
}

func TestPlayerInterruptResetsSchedule(t *testing.T) {
	p := NewPlayer(&fakeSink{}, 1000)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }

	p.Enqueue(make([]float32, 1000))
	p.Enqueue(make([]float32, 1000))
	p.Interrupt()

	assert.Zero(t, p.Pending())
	assert.Equal(t, base, p.Enqueue(make([]float32, 10)))
}

func TestPlayerIgnoresEmptyChunks(t *testing.T) {
	p := NewPlayer(&fakeSink{}, 1000)
	assert.True(t, p.Enqueue(nil).IsZero())
	assert.Zero(t, p.Pending())
}

func TestPlayerRunWritesInOrder(t *testing.T) {
	sink := &fakeSink{}
	p := NewPlayer(sink, 8000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	a := make([]float32, 200)
	b := make([]float32, 200)
	for i := range a {
		a[i] = 0.25
		b[i] = -0.5
	}
	p.Enqueue(a)
	p.Enqueue(b)

	require.Eventually(t, func() bool { return sink.written() == 400 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, float32(0.25), sink.samples[0])
	assert.Equal(t, float32(0.25), sink.samples[199])
	assert.Equal(t, float32(-0.5), sink.samples[200])
	assert.Equal(t, float32(-0.5), sink.samples[399])
}

func TestPlayerRunStopsOnCancel(t *testing.T) {
	p := NewPlayer(&fakeSink{}, 8000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Run(ctx))
}

func TestPlayerInterruptCutsCurrentChunk(t *testing.T) {
	sink := &fakeSink{rate: 8000}
	p := NewPlayer(sink, 8000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// One second of audio, written in 20ms slices.
	p.Enqueue(make([]float32, 8000))
	p.Enqueue(make([]float32, 8000))
	require.Eventually(t, func() bool { return sink.written() > 0 }, 2*time.Second, 5*time.Millisecond)

	p.Interrupt()
	time.Sleep(60 * time.Millisecond)
	after := sink.written()
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, after, sink.written())
	assert.Less(t, after, 8000)
	assert.Zero(t, p.Pending())

	cancel()
	require.NoError(t, <-done)
}
