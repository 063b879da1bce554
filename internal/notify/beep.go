package notify

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

const (
	sampleRate = beep.SampleRate(44100)
	toneLength = 120 * time.Millisecond
	startFreq  = 880.0
	stopFreq   = 440.0
	toneVolume = 0.2
)

// Notifier plays short cues and saved speech through the default output.
// The speaker is initialised lazily on first use.
type Notifier struct {
	beepFile string

	once    sync.Once
	initErr error
}

// New returns a notifier. With beepFile set, Tone plays that mp3 instead of a
// synthesised sine.
func New(beepFile string) *Notifier {
	return &Notifier{beepFile: beepFile}
}

func (n *Notifier) init() error {
	n.once.Do(func() {
		n.initErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	return n.initErr
}

// Tone plays the start cue (higher) or the stop cue (lower) and waits for it.
func (n *Notifier) Tone(ctx context.Context, start bool) error {
	if n.beepFile != "" {
		return n.playFile(ctx, n.beepFile, mp3Decode)
	}

	freq := stopFreq
	if start {
		freq = startFreq
	}
	return n.play(ctx, toneStreamer(freq, toneLength, sampleRate), sampleRate)
}

// PlayWAV plays a WAV file to the end or until ctx is done.
func (n *Notifier) PlayWAV(ctx context.Context, path string) error {
	return n.playFile(ctx, path, wavDecode)
}

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

func mp3Decode(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) }

func wavDecode(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) }

func (n *Notifier) playFile(ctx context.Context, path string, decode decodeFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	streamer, format, err := decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	return n.play(ctx, streamer, format.SampleRate)
}

func (n *Notifier) play(ctx context.Context, s beep.Streamer, rate beep.SampleRate) error {
	if err := n.init(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	if rate != sampleRate {
		s = beep.Resample(4, rate, sampleRate, s)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// toneStreamer yields a sine of the given frequency with a short linear fade
// at both ends to avoid clicks.
func toneStreamer(freq float64, d time.Duration, rate beep.SampleRate) beep.Streamer {
	total := rate.N(d)
	fade := rate.N(10 * time.Millisecond)
	pos := 0

	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := 0
		for i := range samples {
			if pos >= total {
				break
			}
			env := 1.0
			if pos < fade {
				env = float64(pos) / float64(fade)
			} else if total-pos < fade {
				env = float64(total-pos) / float64(fade)
			}
			v := toneVolume * env * math.Sin(2*math.Pi*freq*float64(pos)/float64(rate))
			samples[i][0] = v
			samples[i][1] = v
			pos++
			n++
		}
		return n, true
	})
}
