package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// TargetRate is the rate every decoder here converts to.
const TargetRate = 16000

type Options struct {
	MaxSamples int
}

func ConvertFileToPCM16k(_ context.Context, path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f, filepath.Ext(path), opt)
}

// Decode converts an encoded clip to mono float32 at 16 kHz. ext is a file
// extension hint such as ".mp3"; an unknown hint falls back to sniffing.
func Decode(r io.ReadSeeker, ext string, opt Options) ([]float32, error) {
	switch strings.ToLower(ext) {
	case ".wav":
		return decodeWAV(r, opt)
	case ".mp3":
		return decodeMP3(r, opt)
	case ".ogg", ".oga", ".opus":
		return decodeOgg(r, opt)
	}

	br := bufio.NewReader(r)
	magic, _ := br.Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch string(magic) {
	case "RIFF":
		return decodeWAV(r, opt)
	case "OggS":
		return decodeOgg(r, opt)
	}
	if len(magic) >= 3 && (string(magic[:3]) == "ID3" || (magic[0] == 0xFF && magic[1]&0xE0 == 0xE0)) {
		return decodeMP3(r, opt)
	}

	return nil, fmt.Errorf("unsupported format: %s (supported: wav/mp3/ogg-vorbis/ogg-opus)", ext)
}

func decodeOgg(r io.ReadSeeker, opt Options) ([]float32, error) {
	s, err := decodeOggVorbis(r, opt)
	if err == nil {
		return s, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	s, err = decodeOggOpus(r, opt)
	if err != nil {
		return nil, fmt.Errorf("cannot decode ogg as vorbis or opus: %w", err)
	}
	return s, nil
}

func decodeWAV(r io.ReadSeeker, opt Options) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil || pb == nil || pb.Data == nil {
		if err == nil {
			err = errors.New("empty wav")
		}
		return nil, err
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intSliceToFloat32(pb.Data, bd)

	ch := 1
	sr := 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}

	return finish(Downmix(x, ch), sr, opt), nil
}

func decodeMP3(r io.Reader, opt Options) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}
	// go-mp3 always emits interleaved stereo.
	x := Downmix(Int16ToFloat32(ints), 2)

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}

	return finish(x, sr, opt), nil
}

func decodeOggVorbis(r io.Reader, opt Options) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}

	return finish(Downmix(pcm, format.Channels), format.SampleRate, opt), nil
}

func decodeOggOpus(r io.ReadSeeker, opt Options) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// libopusfile always decodes at 48 kHz.
	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm48 = append(pcm48, Int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(pcm48) == 0 {
		return nil, nil
	}

	return finish(Downmix(pcm48, ch), 48000, opt), nil
}

func finish(x []float32, rate int, opt Options) []float32 {
	x = Resample(x, rate, TargetRate)
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func Int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

// Downmix averages interleaved channels into mono.
func Downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts mono audio between rates by linear interpolation.
func Resample(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 || inSR <= 0 || outSR <= 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
