package windowing

import (
	"sync"

	"github.com/RyanBlaney/sonido-resonance/logging"
)

type cacheKey struct {
	t    Type
	size int
}

// Generator generates windows and caches them by type and size.
// Cached windows are shared; callers must treat them as read-only.
type Generator struct {
	logger logging.Logger

	mu    sync.RWMutex
	cache map[cacheKey]*Window
}

// NewGenerator creates a new window generator
func NewGenerator() *Generator {
	return &Generator{
		logger: logging.WithFields(logging.Fields{
			"component": "window_generator",
		}),
		cache: make(map[cacheKey]*Window),
	}
}

// Generate returns the window of the given type and size, creating it on first use
func (g *Generator) Generate(t Type, size int) (*Window, error) {
	key := cacheKey{t: t, size: size}

	g.mu.RLock()
	cached, ok := g.cache[key]
	g.mu.RUnlock()
	if ok {
		return cached, nil
	}

	w, err := New(t, size)
	if err != nil {
		g.logger.Error(err, "Invalid window configuration", logging.Fields{
			"window_type": t.String(),
			"window_size": size,
		})
		return nil, err
	}

	g.mu.Lock()
	g.cache[key] = w
	g.mu.Unlock()

	g.logger.Debug("Window generated", logging.Fields{
		"window_type":      t.String(),
		"window_size":      size,
		"power_correction": w.PowerCorrection,
		"enbw":             w.ENBW,
	})

	return w, nil
}

// Len returns the number of cached windows
func (g *Generator) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}
