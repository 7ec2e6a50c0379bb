package transcode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mjibson/go-dsp/wav"
)

// fmt chunk audio format codes
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// unknownDataSize is written by streaming encoders that cannot seek back
const unknownDataSize = 0xFFFFFFFF

// chunkTracker remembers the last 8 bytes read, which after wav.New returns
// are the "data" chunk id and its byte size. wav.Wav.Samples rounds the size
// down to a multiple of 8 samples, so the decoder derives the count itself.
type chunkTracker struct {
	r    io.Reader
	tail [8]byte
}

func (c *chunkTracker) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n >= len(c.tail) {
		copy(c.tail[:], p[n-len(c.tail):n])
	} else if n > 0 {
		copy(c.tail[:], c.tail[n:])
		copy(c.tail[len(c.tail)-n:], p[:n])
	}
	return n, err
}

// dataSize returns the byte size of the data chunk whose header was read last
func (c *chunkTracker) dataSize() (uint32, bool) {
	if string(c.tail[:4]) != "data" {
		return 0, false
	}
	return binary.LittleEndian.Uint32(c.tail[4:]), true
}

// DecodeWAV reads 8-bit PCM, 16-bit PCM or 32-bit float WAV data from r.
// Samples are scaled to [-1, 1) and channels are averaged to mono.
func DecodeWAV(r io.Reader) (*AudioData, error) {
	return NewDecoder(nil).decodeWAV(r)
}

func (d *Decoder) decodeWAVFile(path string) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return d.decodeWAV(bufio.NewReader(f))
}

func (d *Decoder) decodeWAV(r io.Reader) (*AudioData, error) {
	tracker := &chunkTracker{r: r}
	w, err := wav.New(tracker)
	if err != nil {
		return nil, fmt.Errorf("invalid wav header: %w", err)
	}

	channels := int(w.NumChannels)
	sampleRate := int(w.SampleRate)
	if channels < 1 {
		return nil, fmt.Errorf("%w: wav declares %d channels", ErrUnsupportedFormat, channels)
	}
	if sampleRate < 1 {
		return nil, fmt.Errorf("%w: wav declares sample rate %d", ErrUnsupportedFormat, sampleRate)
	}

	if !nativeEncoding(w.AudioFormat, w.BitsPerSample) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, wavCodec(w.AudioFormat, w.BitsPerSample))
	}

	size, ok := tracker.dataSize()
	if !ok {
		return nil, fmt.Errorf("invalid wav header: data chunk not found")
	}
	if size == unknownDataSize {
		return nil, fmt.Errorf("%w: wav data size is unknown", ErrUnsupportedFormat)
	}

	totalFrames := int(size) / (int(w.BitsPerSample) / 8) / channels
	frames := d.limitFrames(totalFrames, sampleRate)
	if frames == 0 {
		return nil, fmt.Errorf("wav file contains no samples")
	}

	raw, err := w.ReadSamples(frames * channels)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}

	interleaved, err := normalizeSamples(raw)
	if err != nil {
		return nil, err
	}

	pcm := downmix(interleaved, channels)

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   durationOf(len(pcm), sampleRate),
		Timestamp:  time.Now(),
		Metadata: &AudioMetadata{
			Format:        "wav",
			Codec:         wavCodec(w.AudioFormat, w.BitsPerSample),
			Decoder:       "native",
			SampleRate:    sampleRate,
			Channels:      channels,
			BitsPerSample: int(w.BitsPerSample),
			Bitrate:       int(w.ByteRate) * 8,
			Duration:      durationOf(totalFrames, sampleRate).Seconds(),
		},
	}, nil
}

// normalizeSamples scales integer PCM to [-1, 1); float data passes through
func normalizeSamples(raw any) ([]float64, error) {
	switch samples := raw.(type) {
	case []uint8:
		out := make([]float64, len(samples))
		for i, v := range samples {
			out[i] = (float64(v) - 128) / 128
		}
		return out, nil
	case []int16:
		out := make([]float64, len(samples))
		for i, v := range samples {
			out[i] = float64(v) / 32768
		}
		return out, nil
	case []float32:
		out := make([]float64, len(samples))
		for i, v := range samples {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: sample type %T", ErrUnsupportedFormat, raw)
	}
}

// downmix averages interleaved channels into one
func downmix(interleaved []float64, channels int) []float64 {
	if channels == 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

func nativeEncoding(format, bits uint16) bool {
	switch format {
	case wavFormatPCM:
		return bits == 8 || bits == 16
	case wavFormatFloat:
		return bits == 32
	default:
		return false
	}
}

func wavCodec(format, bits uint16) string {
	switch {
	case format == wavFormatPCM && bits == 8:
		return "pcm_u8"
	case format == wavFormatPCM:
		return fmt.Sprintf("pcm_s%dle", bits)
	case format == wavFormatFloat:
		return fmt.Sprintf("pcm_f%dle", bits)
	default:
		return "unknown"
	}
}
