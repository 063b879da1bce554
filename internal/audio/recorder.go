package audio

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Recorder owns the portaudio lifetime. Init must succeed before any stream is
// opened and Close terminates portaudio.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordAuto records one utterance at 16 kHz: it starts on the first loud
// frame and stops after a pause or maxLengthSeconds.
func (r *Recorder) RecordAuto() ([]float32, error) {
	const (
		sampleRate       = 16000
		frameSize        = 320 // 20ms
		silenceThreshRMS = 0.015
		silenceDuration  = 600 * time.Millisecond
		maxLengthSeconds = 10
	)

	buf := make([]float32, frameSize)
	out := make([]float32, 0, sampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		silenceFrames int
	)

	maxFrames := maxLengthSeconds * sampleRate / frameSize
	frameDur := time.Second * frameSize / sampleRate

	for i := 0; i < maxFrames; i++ {
		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > silenceThreshRMS {
			speaking = true
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}

		if speaking {
			silenceFrames++
			if time.Duration(silenceFrames)*frameDur >= silenceDuration {
				break
			}
			out = append(out, buf...)
		}
	}

	if len(out) == 0 {
		return nil, errors.New("no speech recorded")
	}
	return out, nil
}

// Capture is a live microphone stream at the default device's native rate.
type Capture struct {
	stream *portaudio.Stream
	buf    []float32
	rate   int

	once sync.Once
}

// OpenCapture starts the default input device. Frames of frameSize samples are
// returned by Read; the caller resamples.
func (r *Recorder) OpenCapture(frameSize int) (*Capture, error) {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, err
	}
	rate := dev.DefaultSampleRate
	if rate <= 0 {
		rate = 48000
	}

	c := &Capture{buf: make([]float32, frameSize), rate: int(rate)}

	stream, err := portaudio.OpenDefaultStream(1, 0, rate, len(c.buf), c.buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	c.stream = stream

	return c, nil
}

// Read blocks for one frame. The returned slice is a copy.
func (c *Capture) Read() ([]float32, error) {
	if err := c.stream.Read(); err != nil {
		return nil, err
	}
	return append([]float32(nil), c.buf...), nil
}

func (c *Capture) SampleRate() int { return c.rate }

func (c *Capture) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.stream.Stop()
		err = c.stream.Close()
	})
	return err
}

// Speaker plays mono float32 samples on the default output device.
type Speaker struct {
	stream *portaudio.Stream
	buf    []float32

	once sync.Once
}

func (r *Recorder) OpenSpeaker(rate, frameSize int) (*Speaker, error) {
	s := &Speaker{buf: make([]float32, frameSize)}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), len(s.buf), s.buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	s.stream = stream

	return s, nil
}

// Write blocks until the samples are handed to the device. A short final
// buffer is padded with silence.
func (s *Speaker) Write(samples []float32) error {
	for len(samples) > 0 {
		n := copy(s.buf, samples)
		clear(s.buf[n:])
		samples = samples[n:]
		if err := s.stream.Write(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Speaker) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.stream.Stop()
		err = s.stream.Close()
	})
	return err
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
