package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-resonance/logging"
	"github.com/RyanBlaney/sonido-resonance/transcode"
)

// Item is the outcome for one file of a batch
type Item struct {
	Path   string  `json:"path" yaml:"path"`
	Result *Result `json:"result,omitempty" yaml:"result,omitempty"`
	Err    error   `json:"-" yaml:"-"`
	Error  string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the file was decoded and analyzed
func (i Item) OK() bool {
	return i.Err == nil && i.Result != nil
}

// Batch decodes and analyzes many files with bounded parallelism
type Batch struct {
	analyzer *Analyzer
	decoder  *transcode.Decoder
	workers  int
	logger   logging.Logger
}

// NewBatch creates a batch runner. The decoder's MaxDuration is taken from
// the analyzer config when the decoder is nil.
func NewBatch(analyzer *Analyzer, decoder *transcode.Decoder) *Batch {
	config := analyzer.Config()
	if decoder == nil {
		decoderConfig := transcode.DefaultDecoderConfig()
		decoderConfig.MaxDuration = time.Duration(config.MaxDuration * float64(time.Second))
		decoder = transcode.NewDecoder(decoderConfig)
	}

	return &Batch{
		analyzer: analyzer,
		decoder:  decoder,
		workers:  config.Workers,
		logger: logging.WithFields(logging.Fields{
			"component": "batch_analyzer",
		}),
	}
}

// Run analyzes paths concurrently. Items come back in input order; a failing
// file records its error in its item and does not stop the others. The
// returned error is non-nil only when ctx is cancelled.
func (b *Batch) Run(ctx context.Context, paths []string) ([]Item, error) {
	items := make([]Item, len(paths))
	start := time.Now()

	b.logger.Info("Starting batch analysis", logging.Fields{
		"files":   len(paths),
		"workers": b.workers,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, path := range paths {
		i, path := i, path
		items[i].Path = path

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].setErr(err)
				return nil
			}

			result, err := b.analyzeFile(gctx, i, path)
			if err != nil {
				items[i].setErr(err)
				return nil
			}
			items[i].Result = result
			return nil
		})
	}

	_ = g.Wait()

	failed := 0
	for _, item := range items {
		if !item.OK() {
			failed++
		}
	}

	b.logger.Info("Batch analysis completed", logging.Fields{
		"files":     len(paths),
		"failed":    failed,
		"elapsed_s": time.Since(start).Seconds(),
	})

	return items, ctx.Err()
}

// Directory analyzes every .wav file below dir
func (b *Batch) Directory(ctx context.Context, dir string) ([]Item, error) {
	paths, err := CollectFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no wav files found in %s", dir)
	}
	return b.Run(ctx, paths)
}

func (b *Batch) analyzeFile(ctx context.Context, index int, path string) (*Result, error) {
	ctx = logging.ContextWithFields(ctx, logging.Fields{
		"file":  filepath.Base(path),
		"index": index,
	})
	logger := b.logger.WithContext(ctx)

	audio, err := b.decoder.DecodeFile(ctx, path)
	if err != nil {
		logger.Error(err, "Skipping file")
		return nil, err
	}

	result, err := b.analyzer.AnalyzeAudio(audio)
	if err != nil {
		logger.Error(err, "Analysis failed")
		return nil, err
	}
	return result, nil
}

func (i *Item) setErr(err error) {
	i.Err = err
	i.Error = err.Error()
}

// CollectFiles returns the .wav files below dir, recursively, sorted by path
func CollectFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".wav") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}
