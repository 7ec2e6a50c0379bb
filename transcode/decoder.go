package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-resonance/logging"
)

// ErrUnsupportedFormat is returned for WAV encodings the native reader cannot handle
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData represents a decoded mono recording
type AudioData struct {
	PCM        []float64      `json:"-"`
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"` // channel count of the source before downmix
	Duration   time.Duration  `json:"duration"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata describes the source the samples were decoded from
type AudioMetadata struct {
	Path          string  `json:"path,omitempty" yaml:"path,omitempty"`
	Format        string  `json:"format" yaml:"format"`
	Codec         string  `json:"codec,omitempty" yaml:"codec,omitempty"`
	Decoder       string  `json:"decoder" yaml:"decoder"`
	SampleRate    int     `json:"sample_rate" yaml:"sample_rate"`
	Channels      int     `json:"channels" yaml:"channels"`
	BitsPerSample int     `json:"bits_per_sample,omitempty" yaml:"bits_per_sample,omitempty"`
	Bitrate       int     `json:"bitrate,omitempty" yaml:"bitrate,omitempty"`
	Duration      float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Samples returns the number of mono samples
func (a *AudioData) Samples() int {
	return len(a.PCM)
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" mapstructure:"target_sample_rate"` // 0 keeps the native rate
	MaxDuration      time.Duration `json:"max_duration" mapstructure:"max_duration"`
	ResampleQuality  string        `json:"resample_quality" mapstructure:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path" mapstructure:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout" mapstructure:"timeout"` // per ffmpeg/ffprobe invocation
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 0,
		MaxDuration:      0, // No limit
		ResampleQuality:  "high",
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          60 * time.Second,
	}
}

// Validate checks the decoder configuration
func (c *DecoderConfig) Validate() error {
	if c.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate must not be negative: %d", c.TargetSampleRate)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative: %v", c.MaxDuration)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %v", c.Timeout)
	}
	switch c.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", c.ResampleQuality)
	}
	return nil
}

// Decoder turns audio files into mono float64 PCM
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// Config returns the decoder configuration
func (d *Decoder) Config() DecoderConfig {
	return *d.config
}

// SupportedExtensions lists the file extensions DecodeFile accepts.
// Anything other than .wav requires ffmpeg on PATH.
func SupportedExtensions() []string {
	return []string{".wav", ".flac", ".mp3", ".ogg", ".opus", ".m4a", ".aac", ".aiff", ".aif"}
}

// IsSupported reports whether path has an extension DecodeFile accepts
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedExtensions() {
		if ext == supported {
			return true
		}
	}
	return false
}

// DecodeFile decodes an audio file into mono PCM. WAV files are read natively;
// other formats are decoded by ffmpeg.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (*AudioData, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "DecodeFile",
		"path":     path,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	var (
		audio *AudioData
		err   error
	)
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		audio, err = d.decodeWAVFile(path)
	} else {
		audio, err = d.decodeWithFFmpeg(ctx, path)
	}
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	audio.Metadata.Path = path

	logger.Debug("Audio file decoded", logging.Fields{
		"decoder":     audio.Metadata.Decoder,
		"sample_rate": audio.SampleRate,
		"channels":    audio.Channels,
		"samples":     len(audio.PCM),
		"duration":    audio.Duration.Seconds(),
	})

	return audio, nil
}

// limitFrames applies MaxDuration to a frame count
func (d *Decoder) limitFrames(frames, sampleRate int) int {
	if d.config.MaxDuration <= 0 || sampleRate <= 0 {
		return frames
	}
	limit := int(d.config.MaxDuration.Seconds() * float64(sampleRate))
	if limit < frames {
		return limit
	}
	return frames
}

func durationOf(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
