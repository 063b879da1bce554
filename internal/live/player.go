package live

import (
	"context"
	"sync"
	"time"

	"eryon/pkg/audioconv"
)

// Sink receives mono float32 samples at the player's rate. Write may block
// for roughly the duration of the samples it is given.
type Sink interface {
	Write(samples []float32) error
	Close() error
}

const sliceDuration = 20 * time.Millisecond

type chunk struct {
	samples []float32
	start   time.Time
	gen     uint64
}

// Player schedules returned audio back to back so chunks never overlap.
type Player struct {
	sink Sink
	rate int
	now  func() time.Time

	mu        sync.Mutex
	queue     []chunk
	nextStart time.Time
	gen       uint64

	wake chan struct{}
}

func NewPlayer(sink Sink, rate int) *Player {
	return &Player{
		sink: sink,
		rate: rate,
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
}

// Enqueue schedules samples at max(nextStart, now) and returns the start time.
func (p *Player) Enqueue(samples []float32) time.Time {
	if len(samples) == 0 {
		return time.Time{}
	}

	p.mu.Lock()
	now := p.now()
	start := p.nextStart
	if start.Before(now) {
		start = now
	}
	p.nextStart = start.Add(audioconv.Duration(len(samples), p.rate))
	p.queue = append(p.queue, chunk{samples: samples, start: start, gen: p.gen})
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return start
}

// Interrupt drops everything scheduled, cuts the chunk being played at the
// next slice boundary and resets the schedule.
func (p *Player) Interrupt() {
	p.mu.Lock()
	p.queue = nil
	p.nextStart = time.Time{}
	p.gen++
	p.mu.Unlock()
}

// Pending reports how many chunks are waiting to be played.
func (p *Player) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Player) pop() (chunk, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return chunk{}, false
	}
	c := p.queue[0]
	p.queue = p.queue[1:]
	return c, true
}

func (p *Player) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen
}

// Run plays queued chunks until ctx is done or the sink fails.
func (p *Player) Run(ctx context.Context) error {
	slice := p.rate * int(sliceDuration) / int(time.Second)
	if slice <= 0 {
		slice = 1
	}

	for {
		c, ok := p.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-p.wake:
				continue
			}
		}

		if wait := c.start.Sub(p.now()); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}

		for off := 0; off < len(c.samples); off += slice {
			if ctx.Err() != nil {
				return nil
			}
			if !p.current(c.gen) {
				break
			}
			end := min(off+slice, len(c.samples))
			if err := p.sink.Write(c.samples[off:end]); err != nil {
				return err
			}
		}
	}
}
