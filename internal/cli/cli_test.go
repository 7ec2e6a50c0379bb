package cli

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSine writes a mono 16-bit WAV holding a sine of the given frequency
func writeSine(t *testing.T, path string, freq float64, sampleRate, samples int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	data := make([]byte, 2*samples)
	for i := 0; i < samples; i++ {
		v := int16(math.Round(16000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))))
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(36+len(data))))
	buf.WriteString("WAVEfmt ")
	for _, field := range []any{
		uint32(16),
		uint16(1), // PCM
		uint16(1), // mono
		uint32(sampleRate),
		uint32(sampleRate * 2),
		uint16(2),
		uint16(16),
	} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, field))
	}
	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(data))))
	buf.Write(data)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// execute runs the root command and returns what it wrote to stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

type planOutput struct {
	SignalLength int  `json:"signal_length"`
	Bins         int  `json:"bins"`
	Degraded     bool `json:"degraded"`
	Plan         struct {
		FFTLength        int     `json:"fft_length"`
		IdealLength      int     `json:"ideal_length"`
		ActualResolution float64 `json:"actual_resolution"`
		TargetResolution float64 `json:"target_resolution"`
		Capped           bool    `json:"capped"`
	} `json:"plan"`
}

type analyzeOutput struct {
	Bins          int     `json:"bins"`
	PeakFrequency float64 `json:"peak_frequency"`
	Plan          struct {
		FFTLength        int     `json:"fft_length"`
		TargetResolution float64 `json:"target_resolution"`
	} `json:"plan"`
	Detection struct {
		MinHeight     float64 `json:"min_height"`
		MinProminence float64 `json:"min_prominence"`
		Peaks         []struct {
			CenterFrequency float64 `json:"center_frequency"`
			Rank            int     `json:"rank"`
		} `json:"peaks"`
		Statistics struct {
			DominantPeak *struct {
				CenterFrequency float64 `json:"center_frequency"`
			} `json:"dominant_peak"`
		} `json:"statistics"`
	} `json:"detection"`
	Spectrum *struct {
		Frequencies []float64 `json:"frequencies"`
	} `json:"spectrum"`
	Phase *struct {
		PhaseDegrees []float64 `json:"phase_degrees"`
	} `json:"phase"`
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sonido-resonance "+Version)
}

func TestPlanCommand(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "plan", "--samples", "88200", "--sample-rate", "44100", "-o", "json")
		require.NoError(t, err)

		var plan planOutput
		require.NoError(t, json.Unmarshal([]byte(out), &plan))
		assert.Equal(t, 88200, plan.SignalLength)
		assert.Equal(t, 88200, plan.Plan.FFTLength)
		assert.Equal(t, 4410000, plan.Plan.IdealLength)
		assert.InDelta(t, 0.5, plan.Plan.ActualResolution, 1e-12)
		assert.True(t, plan.Plan.Capped)
		assert.True(t, plan.Degraded)
		assert.Equal(t, 44101, plan.Bins)
	})

	t.Run("duration", func(t *testing.T) {
		out, err := execute(t, "plan", "--duration", "2", "--sample-rate", "8000", "--resolution", "1", "-o", "json")
		require.NoError(t, err)

		var plan planOutput
		require.NoError(t, json.Unmarshal([]byte(out), &plan))
		assert.Equal(t, 16000, plan.SignalLength)
		assert.Equal(t, 8000, plan.Plan.FFTLength)
		assert.False(t, plan.Degraded)
	})

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, "plan", "--samples", "1000", "--sample-rate", "1000")
		require.NoError(t, err)
		assert.Contains(t, out, "FFT length")
		assert.Contains(t, out, "Limited by signal")
	})

	t.Run("empty signal", func(t *testing.T) {
		_, err := execute(t, "plan")
		assert.Error(t, err)
	})
}

func TestAnalyzeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeSine(t, path, 440, 8000, 8000)

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "analyze", "--resolution", "1", "--max-freq", "1000", "-o", "json", path)
		require.NoError(t, err)

		var result analyzeOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, 8000, result.Plan.FFTLength)
		assert.Equal(t, 1001, result.Bins)
		assert.InDelta(t, 440, result.PeakFrequency, 1e-9)
		assert.Equal(t, 6.0, result.Detection.MinProminence)
		require.NotNil(t, result.Detection.Statistics.DominantPeak)
		assert.InDelta(t, 440, result.Detection.Statistics.DominantPeak.CenterFrequency, 1e-9)
		assert.Nil(t, result.Spectrum)
		assert.Nil(t, result.Phase)

		for i, p := range result.Detection.Peaks {
			assert.Equal(t, i+1, p.Rank)
		}
	})

	t.Run("spectrum and phase", func(t *testing.T) {
		out, err := execute(t, "analyze", "--resolution", "1", "--max-freq", "500",
			"--include-spectrum", "--phase", "-o", "json", path)
		require.NoError(t, err)

		var result analyzeOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		require.NotNil(t, result.Spectrum)
		require.NotNil(t, result.Phase)
		assert.Len(t, result.Spectrum.Frequencies, 501)
		assert.Len(t, result.Phase.PhaseDegrees, 501)
	})

	t.Run("explicit height", func(t *testing.T) {
		out, err := execute(t, "analyze", "--resolution", "1", "--height", "-20", "-o", "json", path)
		require.NoError(t, err)

		var result analyzeOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, -20.0, result.Detection.MinHeight)
	})

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, "analyze", "--resolution", "1", "--max-freq", "1000", path)
		require.NoError(t, err)
		assert.Contains(t, out, "RANK")
		assert.Contains(t, out, "440.000")
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, "analyze", "--resolution", "1", "-o", "yaml", path)
		require.NoError(t, err)
		assert.Contains(t, out, "window: hann")
		assert.Contains(t, out, "fft_length: 8000")
	})

	t.Run("config file", func(t *testing.T) {
		config := filepath.Join(t.TempDir(), "resonance.yaml")
		require.NoError(t, os.WriteFile(config, []byte(`
target_resolution: 2
window: blackman
detection:
  min_prominence: 3
`), 0o644))

		out, err := execute(t, "analyze", "--config", config, "-o", "json", path)
		require.NoError(t, err)

		var result analyzeOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, 2.0, result.Plan.TargetResolution)
		assert.Equal(t, 4000, result.Plan.FFTLength)
		assert.Equal(t, 3.0, result.Detection.MinProminence)
	})

	t.Run("flag overrides config file", func(t *testing.T) {
		config := filepath.Join(t.TempDir(), "resonance.yaml")
		require.NoError(t, os.WriteFile(config, []byte("target_resolution: 2\n"), 0o644))

		out, err := execute(t, "analyze", "--config", config, "--resolution", "4", "-o", "json", path)
		require.NoError(t, err)

		var result analyzeOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, 4.0, result.Plan.TargetResolution)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("SONIDO_RESONANCE_PROMINENCE", "9")
		t.Setenv("SONIDO_RESONANCE_RESOLUTION", "5")

		out, err := execute(t, "analyze", "-o", "json", path)
		require.NoError(t, err)

		var result analyzeOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, 9.0, result.Detection.MinProminence)
		assert.Equal(t, 5.0, result.Plan.TargetResolution)
	})
}

func TestAnalyzeCommandErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeSine(t, path, 440, 8000, 800)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown window", []string{"analyze", "--window", "triangle", path}, "unknown window type"},
		{"bad height", []string{"analyze", "--height", "loud", path}, "invalid height"},
		{"zero prominence", []string{"analyze", "--prominence", "0", path}, "prominence"},
		{"unknown output", []string{"analyze", "-o", "xml", path}, "unknown output format"},
		{"unknown log format", []string{"analyze", "--log-format", "logfmt", path}, "unknown log format"},
		{"missing file", []string{"analyze", filepath.Join(t.TempDir(), "none.wav")}, "failed to open audio file"},
		{"missing config", []string{"analyze", "--config", filepath.Join(t.TempDir(), "none.yaml"), path}, "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("no arguments", func(t *testing.T) {
		_, err := execute(t, "analyze")
		assert.Error(t, err)
	})
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeSine(t, filepath.Join(dir, "S1", "a.wav"), 440, 8000, 4000)
	writeSine(t, filepath.Join(dir, "S2", "b.wav"), 220, 8000, 4000)

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, "batch", "--resolution", "2", "--workers", "2", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "GROUP")
		assert.Contains(t, out, "S1")
		assert.Contains(t, out, "S2")
		assert.Contains(t, out, "2 ok, 0 failed")
	})

	t.Run("json with details", func(t *testing.T) {
		out, err := execute(t, "batch", "--resolution", "2", "--details", "-o", "json",
			filepath.Join(dir, "S2", "b.wav"), filepath.Join(dir, "S1", "a.wav"))
		require.NoError(t, err)

		var report struct {
			Summary struct {
				Files     int `json:"files"`
				Succeeded int `json:"succeeded"`
				Entries   []struct {
					Path          string  `json:"path"`
					PeakFrequency float64 `json:"peak_frequency"`
				} `json:"entries"`
			} `json:"summary"`
			Details []struct {
				Path string `json:"path"`
			} `json:"details"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, 2, report.Summary.Files)
		assert.Equal(t, 2, report.Summary.Succeeded)
		require.Len(t, report.Summary.Entries, 2)
		assert.InDelta(t, 220, report.Summary.Entries[0].PeakFrequency, 1e-9)
		assert.InDelta(t, 440, report.Summary.Entries[1].PeakFrequency, 1e-9)
		assert.Len(t, report.Details, 2)
	})

	t.Run("every file fails", func(t *testing.T) {
		broken := filepath.Join(t.TempDir(), "broken.wav")
		require.NoError(t, os.WriteFile(broken, []byte("not audio"), 0o644))

		out, err := execute(t, "batch", broken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all 1 files failed")
		assert.Contains(t, out, "broken.wav")
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := execute(t, "batch", t.TempDir())
		assert.Error(t, err)
	})
}
