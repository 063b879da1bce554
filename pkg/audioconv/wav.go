package audioconv

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps mono little-endian PCM16 in a WAV container.
func EncodeWAV(w io.WriteSeeker, pcm []byte, rate int) error {
	n := len(pcm) / 2
	data := make([]int, n)
	for i := 0; i < n; i++ {
		data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	enc := wav.NewEncoder(w, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return enc.Close()
}

func WriteWAVFile(path string, pcm []byte, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := EncodeWAV(f, pcm, rate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
