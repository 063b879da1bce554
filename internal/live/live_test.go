package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/genai"

	"eryon/internal/chat"
	"eryon/pkg/audioconv"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker starts in init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeSession struct {
	msgs chan *genai.LiveServerMessage

	mu     sync.Mutex
	sent   []genai.LiveRealtimeInput
	closed chan struct{}
	once   sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		msgs:   make(chan *genai.LiveServerMessage, 16),
		closed: make(chan struct{}),
	}
}

func (s *fakeSession) SendRealtimeInput(in genai.LiveRealtimeInput) error {
	select {
	case <-s.closed:
		return errors.New("closed")
	default:
	}
	s.mu.Lock()
	s.sent = append(s.sent, in)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Receive() (*genai.LiveServerMessage, error) {
	select {
	case m, ok := <-s.msgs:
		if !ok {
			return nil, errors.New("server went away")
		}
		return m, nil
	case <-s.closed:
		return nil, errors.New("closed")
	}
}

func (s *fakeSession) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) sentInputs() []genai.LiveRealtimeInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]genai.LiveRealtimeInput(nil), s.sent...)
}

type fakeSource struct {
	rate   int
	frame  []float32
	mu     sync.Mutex
	closed bool
}

func (s *fakeSource) Read() ([]float32, error) {
	time.Sleep(2 * time.Millisecond)
	return s.frame, nil
}

func (s *fakeSource) SampleRate() int { return s.rate }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type fakeSink struct {
	// rate, when set, makes Write block for the real duration of the samples.
	rate int

	mu      sync.Mutex
	samples []float32
	closed  bool
}

func (s *fakeSink) Write(samples []float32) error {
	if s.rate > 0 {
		time.Sleep(audioconv.Duration(len(samples), s.rate))
	}
	s.mu.Lock()
	s.samples = append(s.samples, samples...)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

type fakeDucker struct {
	mu             sync.Mutex
	ducks, unducks int
}

func (d *fakeDucker) Duck(context.Context) error {
	d.mu.Lock()
	d.ducks++
	d.mu.Unlock()
	return nil
}

func (d *fakeDucker) Unduck(context.Context) error {
	d.mu.Lock()
	d.unducks++
	d.mu.Unlock()
	return nil
}

type harness struct {
	conv    *Conversation
	session *fakeSession
	source  *fakeSource
	sink    *fakeSink
	ducker  *fakeDucker

	tonesMu sync.Mutex
	tones   []bool
}

func newHarness() *harness {
	h := &harness{
		session: newFakeSession(),
		source:  &fakeSource{rate: 32000, frame: make([]float32, 320)},
		sink:    &fakeSink{},
		ducker:  &fakeDucker{},
	}
	h.conv = NewConversation(Options{
		InputRate:  16000,
		OutputRate: 24000,
		Connect: func(context.Context) (Session, error) {
			return h.session, nil
		},
		OpenSource: func() (Source, error) { return h.source, nil },
		OpenSink:   func(int) (Sink, error) { return h.sink, nil },
		Ducker:     h.ducker,
		OnTone: func(start bool) {
			h.tonesMu.Lock()
			h.tones = append(h.tones, start)
			h.tonesMu.Unlock()
		},
	})
	return h
}

func waitEvent(t *testing.T, c *Conversation, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for live event")
			return Event{}
		}
	}
}

func serverContent(sc *genai.LiveServerContent) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ServerContent: sc}
}

func TestStartStreamsMicrophoneAsPCM(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.conv.Start(context.Background()))
	assert.Equal(t, Active, h.conv.State())

	require.Eventually(t, func() bool { return len(h.session.sentInputs()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	in := h.session.sentInputs()[0]
	require.NotNil(t, in.Audio)
	assert.Equal(t, "audio/pcm;rate=16000", in.Audio.MIMEType)
	// 320 samples at 32 kHz is 160 at 16 kHz, two bytes each.
	assert.Len(t, in.Audio.Data, 320)

	h.conv.Stop()
	assert.Equal(t, Idle, h.conv.State())
	assert.True(t, h.source.closed)
	assert.True(t, h.sink.closed)
	assert.Equal(t, []bool{true, false}, h.tones)
	assert.Equal(t, 1, h.ducker.ducks)
	assert.Equal(t, 1, h.ducker.unducks)
}

func TestStartIsNoopWhenActive(t *testing.T) {
	h := newHarness()
	connects := 0
	connect := h.conv.opts.Connect
	h.conv.opts.Connect = func(ctx context.Context) (Session, error) {
		connects++
		return connect(ctx)
	}

	require.NoError(t, h.conv.Start(context.Background()))
	require.NoError(t, h.conv.Start(context.Background()))
	assert.Equal(t, 1, connects)

	h.conv.Stop()
	h.conv.Stop()
	assert.Equal(t, Idle, h.conv.State())
}

func TestTranscriptsFlushOnTurnComplete(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.conv.Start(context.Background()))
	defer h.conv.Stop()

	h.session.msgs <- serverContent(&genai.LiveServerContent{InputTranscription: &genai.Transcription{Text: "What is "}})
	h.session.msgs <- serverContent(&genai.LiveServerContent{InputTranscription: &genai.Transcription{Text: "RPA?"}})
	h.session.msgs <- serverContent(&genai.LiveServerContent{OutputTranscription: &genai.Transcription{Text: "Robotic process automation."}})

	ev := waitEvent(t, h.conv, func(ev Event) bool { return ev.Interim.Eryon != "" })
	assert.Equal(t, "What is RPA?", ev.Interim.User)
	assert.Empty(t, ev.Transcripts)

	h.session.msgs <- serverContent(&genai.LiveServerContent{TurnComplete: true})

	ev = waitEvent(t, h.conv, func(ev Event) bool { return len(ev.Transcripts) == 1 })
	assert.True(t, ev.Interim.Empty())
	assert.Equal(t, chat.Transcript{User: "What is RPA?", Eryon: "Robotic process automation."}, ev.Transcripts[0])
	assert.Len(t, h.conv.Transcripts(), 1)
}

func TestModelAudioIsPlayed(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.conv.Start(context.Background()))
	defer h.conv.Stop()

	pcm := audioconv.Float32ToPCM16(make([]float32, 240))
	h.session.msgs <- serverContent(&genai.LiveServerContent{
		ModelTurn: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: pcm}}}},
	})

	require.Eventually(t, func() bool { return h.sink.written() == 240 }, 2*time.Second, 5*time.Millisecond)
}

func TestSessionEndReturnsToIdle(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.conv.Start(context.Background()))

	close(h.session.msgs)

	ev := waitEvent(t, h.conv, func(ev Event) bool { return ev.State == Idle })
	assert.ErrorIs(t, ev.Err, errSessionClosed)
	assert.Equal(t, Idle, h.conv.State())

	h.conv.Stop()
}

func TestConnectFailure(t *testing.T) {
	h := newHarness()
	boom := errors.New("handshake refused")
	h.conv.opts.Connect = func(context.Context) (Session, error) { return nil, boom }

	err := h.conv.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Idle, h.conv.State())

	ev := waitEvent(t, h.conv, func(ev Event) bool { return ev.Err != nil })
	assert.Equal(t, Idle, ev.State)
	assert.Empty(t, h.tones)
}

func TestStopClearsTranscripts(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.conv.Start(context.Background()))

	h.session.msgs <- serverContent(&genai.LiveServerContent{InputTranscription: &genai.Transcription{Text: "hi"}})
	h.session.msgs <- serverContent(&genai.LiveServerContent{TurnComplete: true})
	require.Eventually(t, func() bool { return len(h.conv.Transcripts()) == 1 }, 2*time.Second, 5*time.Millisecond)

	h.conv.Stop()
	assert.Empty(t, h.conv.Transcripts())
}

func TestInterruptCutsPlayback(t *testing.T) {
	h := newHarness()
	h.sink.rate = 24000
	require.NoError(t, h.conv.Start(context.Background()))
	defer h.conv.Stop()

	// Three one-second chunks.
	const total = 3 * 24000
	second := audioconv.Float32ToPCM16(make([]float32, 24000))
	for i := 0; i < 3; i++ {
		h.session.msgs <- serverContent(&genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: second}}}},
		})
	}
	require.Eventually(t, func() bool { return h.sink.written() > 0 }, 2*time.Second, 5*time.Millisecond)

	h.session.msgs <- serverContent(&genai.LiveServerContent{Interrupted: true})

	// At most the slice in flight finishes after the interrupt.
	time.Sleep(100 * time.Millisecond)
	after := h.sink.written()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, after, h.sink.written(), "playback continued after interrupt")
	assert.Less(t, after, total)
}

func TestEmptyTurnAddsNoTranscript(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.conv.Start(context.Background()))
	defer h.conv.Stop()

	h.session.msgs <- serverContent(&genai.LiveServerContent{TurnComplete: true})
	h.session.msgs <- serverContent(&genai.LiveServerContent{InputTranscription: &genai.Transcription{Text: "hello"}})
	h.session.msgs <- serverContent(&genai.LiveServerContent{TurnComplete: true})

	ev := waitEvent(t, h.conv, func(ev Event) bool { return len(ev.Transcripts) > 0 })
	assert.Equal(t, []chat.Transcript{{User: "hello"}}, ev.Transcripts)
}

func TestFinalStateSurvivesFullEventQueue(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.conv.Start(context.Background()))

	// Nobody reads events while more turns than the queue holds arrive.
	const turns = 100
	for i := 0; i < turns; i++ {
		h.session.msgs <- serverContent(&genai.LiveServerContent{
			InputTranscription: &genai.Transcription{Text: "hi"},
			TurnComplete:       true,
		})
	}
	require.Eventually(t, func() bool { return len(h.conv.Transcripts()) == turns }, 2*time.Second, 5*time.Millisecond)

	close(h.session.msgs)

	ev := waitEvent(t, h.conv, func(ev Event) bool { return ev.State == Idle })
	assert.ErrorIs(t, ev.Err, errSessionClosed)

	h.conv.Stop()
}
