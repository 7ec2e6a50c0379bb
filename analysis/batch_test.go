package analysis

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-resonance/algorithms/peaks"
	"github.com/RyanBlaney/sonido-resonance/algorithms/spectral"
)

// writeWAV stores samples as a 16-bit mono PCM file
func writeWAV(t *testing.T, path string, sampleRate int, samples []float64) {
	t.Helper()

	pcm := make([]int16, len(samples))
	for i, v := range samples {
		pcm[i] = int16(v * 32767)
	}

	var buf bytes.Buffer
	dataSize := uint32(2 * len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	for _, field := range []any{
		uint32(16), uint16(1), uint16(1), uint32(sampleRate), uint32(2 * sampleRate), uint16(2), uint16(16),
	} {
		binary.Write(&buf, binary.LittleEndian, field)
	}
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	binary.Write(&buf, binary.LittleEndian, pcm)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func batchConfig() Config {
	config := DefaultConfig()
	config.TargetResolution = 1.0
	config.Workers = 2
	return config
}

func TestBatchDirectory(t *testing.T) {
	root := t.TempDir()
	writeWAV(t, filepath.Join(root, "S1", "a.wav"), 8000, generateSine(440, 0.5, 8000, 8000))
	writeWAV(t, filepath.Join(root, "S2", "b.wav"), 8000, generateSine(220, 0.5, 8000, 8000))
	writeWAV(t, filepath.Join(root, "S2", "c.WAV"), 8000, generateSine(880, 0.5, 8000, 8000))
	require.NoError(t, os.WriteFile(filepath.Join(root, "S2", "broken.wav"), []byte("not audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "S2", "notes.txt"), []byte("RT60"), 0o644))

	batch := NewBatch(newAnalyzer(t, batchConfig()), nil)
	items, err := batch.Directory(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, filepath.Join(root, "S1", "a.wav"), items[0].Path)
	assert.Equal(t, filepath.Join(root, "S2", "b.wav"), items[1].Path)
	assert.Equal(t, filepath.Join(root, "S2", "broken.wav"), items[2].Path)
	assert.Equal(t, filepath.Join(root, "S2", "c.WAV"), items[3].Path)

	for i, want := range map[int]float64{0: 440, 1: 220, 3: 880} {
		require.True(t, items[i].OK(), items[i].Error)
		assert.Equal(t, want, items[i].Result.Spectrum.PeakFrequency)
		assert.Equal(t, items[i].Path, items[i].Result.Source.Path)
	}

	assert.False(t, items[2].OK())
	assert.Error(t, items[2].Err)
	assert.NotEmpty(t, items[2].Error)

	summary := Summarize(items)
	assert.Equal(t, 4, summary.Files)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 0.75, summary.SuccessRate, 1e-12)

	require.NotNil(t, summary.PeakFrequency)
	assert.Equal(t, 220.0, summary.PeakFrequency.Min)
	assert.Equal(t, 880.0, summary.PeakFrequency.Max)
	assert.Equal(t, 440.0, summary.PeakFrequency.Median)

	require.Len(t, summary.Groups, 2)
	assert.Equal(t, GroupSummary{Name: "S1", Files: 1, Succeeded: 1, MeanPeakFrequency: 440,
		MeanPeakCount: float64(summary.Entries[0].PeakCount)}, summary.Groups[0])
	assert.Equal(t, "S2", summary.Groups[1].Name)
	assert.Equal(t, 3, summary.Groups[1].Files)
	assert.Equal(t, 2, summary.Groups[1].Succeeded)
	assert.InDelta(t, 550.0, summary.Groups[1].MeanPeakFrequency, 1e-12)
}

func TestBatchRunCancelled(t *testing.T) {
	root := t.TempDir()
	paths := []string{filepath.Join(root, "a.wav"), filepath.Join(root, "b.wav")}
	for _, path := range paths {
		writeWAV(t, path, 8000, generateSine(440, 0.5, 8000, 800))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := NewBatch(newAnalyzer(t, batchConfig()), nil).Run(ctx, paths)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.False(t, item.OK())
		assert.True(t, errors.Is(item.Err, context.Canceled))
	}
}

func TestBatchDirectoryEmpty(t *testing.T) {
	_, err := NewBatch(newAnalyzer(t, batchConfig()), nil).Directory(context.Background(), t.TempDir())
	assert.Error(t, err)

	_, err = NewBatch(newAnalyzer(t, batchConfig()), nil).Directory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSummarizeWithoutSuccesses(t *testing.T) {
	summary := Summarize([]Item{
		{Path: "x/a.wav", Err: errors.New("boom"), Error: "boom"},
	})
	assert.Equal(t, 1, summary.Failed)
	assert.Nil(t, summary.PeakFrequency)
	assert.Equal(t, 0.0, summary.SuccessRate)
	require.Len(t, summary.Groups, 1)
	assert.Equal(t, 0.0, summary.Groups[0].MeanPeakFrequency)

	assert.Empty(t, Summarize(nil).Entries)
}

func TestSummarizeDominantPeak(t *testing.T) {
	dominant := peaks.ResonancePeak{CenterFrequency: 125, PeakSPL: 90}
	item := Item{
		Path: "room/take.wav",
		Result: &Result{
			Signal:   SignalSummary{Duration: 2, SampleRate: 48000},
			Spectrum: &spectral.SpectrumResult{PeakFrequency: 125, PeakSPL: 90, Plan: spectral.ResolutionPlan{ActualResolution: 0.5}},
			Detection: &peaks.DetectionResult{
				Peaks:      []peaks.ResonancePeak{dominant, {CenterFrequency: 250, PeakSPL: 70}},
				Statistics: peaks.Statistics{DominantPeak: &dominant},
			},
		},
	}

	entry := Summarize([]Item{item}).Entries[0]
	assert.Equal(t, "room", entry.Group)
	assert.Equal(t, 2, entry.PeakCount)
	assert.Equal(t, 125.0, entry.DominantFrequency)
	assert.Equal(t, 90.0, entry.DominantSPL)
	assert.Equal(t, 0.5, entry.Resolution)
}
