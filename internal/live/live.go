// Package live runs the real-time voice conversation: microphone frames go up
// to the session as 16 kHz PCM, model audio comes back and is played through
// a Player while transcripts accumulate turn by turn.
package live

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"eryon/internal/chat"
	"eryon/pkg/audioconv"
)

// Session is the subset of *genai.Session the conversation needs.
type Session interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

// Source yields mono float32 frames at its own sample rate.
type Source interface {
	Read() ([]float32, error)
	SampleRate() int
	Close() error
}

type Ducker interface {
	Duck(ctx context.Context) error
	Unduck(ctx context.Context) error
}

type State int

const (
	Idle State = iota
	Connecting
	Active
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	default:
		return "idle"
	}
}

// Event is a snapshot emitted on every state or transcript change.
type Event struct {
	State       State
	Interim     chat.Transcript
	Transcripts []chat.Transcript
	Err         error
}

type Options struct {
	InputRate  int
	OutputRate int

	Connect    func(ctx context.Context) (Session, error)
	OpenSource func() (Source, error)
	OpenSink   func(rate int) (Sink, error)

	// Optional.
	Ducker Ducker
	OnTone func(start bool)
}

type Conversation struct {
	opts   Options
	events chan Event

	mu          sync.Mutex
	state       State
	run         *run
	transcripts []chat.Transcript
	interim     chat.Transcript
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	session Session
	source  Source
	sink    Sink
	player  *Player
}

func NewConversation(opts Options) *Conversation {
	if opts.InputRate <= 0 {
		opts.InputRate = 16000
	}
	if opts.OutputRate <= 0 {
		opts.OutputRate = 24000
	}
	return &Conversation{
		opts:   opts,
		events: make(chan Event, 64),
	}
}

// Events delivers snapshots. Slow readers miss the oldest ones; the latest
// snapshot is always delivered.
func (c *Conversation) Events() <-chan Event {
	return c.events
}

func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conversation) Transcripts() []chat.Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Transcript(nil), c.transcripts...)
}

func (c *Conversation) snapshot(err error) Event {
	return Event{
		State:       c.state,
		Interim:     c.interim,
		Transcripts: append([]chat.Transcript(nil), c.transcripts...),
		Err:         err,
	}
}

// emit never blocks. When the queue is full the oldest snapshot is discarded
// so the final state change always reaches the reader.
func (c *Conversation) emit(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}

		select {
		case old := <-c.events:
			log.Debug("Live event dropped", "state", old.State)
		default:
		}
	}
}

// Start connects and begins streaming. It does nothing while a conversation is
// already connecting or active.
func (c *Conversation) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil
	}

	rctx, cancel := context.WithCancel(ctx)
	r := &run{ctx: rctx, cancel: cancel, done: make(chan struct{})}
	c.run = r
	c.state = Connecting
	ev := c.snapshot(nil)
	c.mu.Unlock()
	c.emit(ev)

	err := c.open(r)

	c.mu.Lock()
	if c.run != r {
		c.mu.Unlock()
		r.close()
		close(r.done)
		return nil
	}
	if err != nil {
		c.run = nil
		c.state = Idle
		ev = c.snapshot(err)
		c.mu.Unlock()

		r.close()
		cancel()
		close(r.done)
		c.emit(ev)
		return err
	}
	c.state = Active
	ev = c.snapshot(nil)
	c.mu.Unlock()
	c.emit(ev)

	log.Info("Live conversation started")

	if c.opts.OnTone != nil {
		c.opts.OnTone(true)
	}
	if c.opts.Ducker != nil {
		if err := c.opts.Ducker.Duck(rctx); err != nil {
			log.Warn("Failed to duck other audio", "err", err)
		}
	}

	go c.loop(r)
	return nil
}

func (c *Conversation) open(r *run) error {
	session, err := c.opts.Connect(r.ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	r.session = session

	if c.opts.OpenSource != nil {
		src, err := c.opts.OpenSource()
		if err != nil {
			return fmt.Errorf("open microphone: %w", err)
		}
		r.source = src
	}

	if c.opts.OpenSink != nil {
		sink, err := c.opts.OpenSink(c.opts.OutputRate)
		if err != nil {
			return fmt.Errorf("open speaker: %w", err)
		}
		r.sink = sink
		r.player = NewPlayer(sink, c.opts.OutputRate)
	}
	return nil
}

func (r *run) close() {
	if r.session != nil {
		_ = r.session.Close()
	}
	if r.source != nil {
		_ = r.source.Close()
	}
	if r.sink != nil {
		_ = r.sink.Close()
	}
}

func (c *Conversation) loop(r *run) {
	g, gctx := errgroup.WithContext(r.ctx)

	if r.source != nil {
		g.Go(func() error { return c.capture(gctx, r) })
	}
	g.Go(func() error { return c.receive(gctx, r) })
	if r.player != nil {
		g.Go(func() error { return r.player.Run(gctx) })
	}
	// Receive has no context, closing the session is what unblocks it.
	g.Go(func() error {
		<-gctx.Done()
		_ = r.session.Close()
		return nil
	})

	err := g.Wait()
	stopped := r.ctx.Err() != nil

	if r.source != nil {
		_ = r.source.Close()
	}
	if r.sink != nil {
		_ = r.sink.Close()
	}
	if c.opts.Ducker != nil {
		if uerr := c.opts.Ducker.Unduck(context.Background()); uerr != nil {
			log.Warn("Failed to restore other audio", "err", uerr)
		}
	}
	if c.opts.OnTone != nil {
		c.opts.OnTone(false)
	}
	r.cancel()
	close(r.done)

	if stopped {
		err = nil
	}
	if err != nil {
		log.Error("Live conversation ended", "err", err)
	}
	c.finish(r, err)
}

// finish resets to idle after the session ended on its own.
func (c *Conversation) finish(r *run, err error) {
	c.mu.Lock()
	if c.run != r {
		c.mu.Unlock()
		return
	}
	c.reset()
	ev := c.snapshot(err)
	c.mu.Unlock()
	c.emit(ev)
}

func (c *Conversation) reset() {
	c.run = nil
	c.state = Idle
	c.transcripts = nil
	c.interim = chat.Transcript{}
}

// Stop ends the conversation and waits for its loops to exit. Safe to call
// repeatedly.
func (c *Conversation) Stop() {
	c.mu.Lock()
	r := c.run
	if r == nil && c.state == Idle {
		c.mu.Unlock()
		return
	}
	c.reset()
	ev := c.snapshot(nil)
	c.mu.Unlock()

	if r != nil {
		r.cancel()
		<-r.done
	}
	c.emit(ev)
	log.Info("Live conversation stopped")
}

func (c *Conversation) capture(ctx context.Context, r *run) error {
	mime := fmt.Sprintf("audio/pcm;rate=%d", c.opts.InputRate)
	rate := r.source.SampleRate()

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := r.source.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read microphone: %w", err)
		}
		if len(frame) == 0 {
			continue
		}

		pcm := audioconv.Float32ToPCM16(audioconv.Resample(frame, rate, c.opts.InputRate))
		if err := r.session.SendRealtimeInput(genai.LiveRealtimeInput{
			Audio: &genai.Blob{MIMEType: mime, Data: pcm},
		}); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("send audio: %w", err)
		}
	}
}

var errSessionClosed = errors.New("live session closed")

func (c *Conversation) receive(ctx context.Context, r *run) error {
	for {
		msg, err := r.session.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", errSessionClosed, err)
		}
		c.handle(r, msg)
	}
}

func (c *Conversation) handle(r *run, msg *genai.LiveServerMessage) {
	if msg == nil || msg.ServerContent == nil {
		return
	}
	sc := msg.ServerContent

	if sc.ModelTurn != nil && r.player != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				r.player.Enqueue(audioconv.PCM16ToFloat32(p.InlineData.Data))
			}
		}
	}
	if sc.Interrupted && r.player != nil {
		r.player.Interrupt()
	}

	c.mu.Lock()
	if c.run != r {
		c.mu.Unlock()
		return
	}

	changed := false
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		c.interim.User += sc.InputTranscription.Text
		changed = true
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		c.interim.Eryon += sc.OutputTranscription.Text
		changed = true
	}
	if sc.TurnComplete {
		if !c.interim.Empty() {
			c.transcripts = append(c.transcripts, c.interim)
		}
		c.interim = chat.Transcript{}
		changed = true
	}

	if !changed {
		c.mu.Unlock()
		return
	}
	ev := c.snapshot(nil)
	c.mu.Unlock()
	c.emit(ev)
}
