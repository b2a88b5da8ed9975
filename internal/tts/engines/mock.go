package engines

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/kitten-tts-server/internal/catalog"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts"
)

// MockEngine implements the Engine interface without any model files. It
// renders a quiet tone whose length follows the word count, and counts
// calls so tests can assert on them.
type MockEngine struct {
	// Configuration
	loadDelay      time.Duration
	wordsPerMinute int
	sampleRate     int

	// Control for testing
	mu          sync.RWMutex
	loadErr     error
	generateErr error

	// Metrics
	loads     atomic.Int64
	generates atomic.Int64
}

// MockConfig holds configuration for the mock engine.
type MockConfig struct {
	// LoadDelay simulates weight loading time
	LoadDelay time.Duration

	// WordsPerMinute controls the length of the generated audio (default 150)
	WordsPerMinute int
}

// NewMockEngine creates a new mock TTS engine.
func NewMockEngine(config MockConfig) *MockEngine {
	if config.WordsPerMinute <= 0 {
		config.WordsPerMinute = 150
	}
	return &MockEngine{
		loadDelay:      config.LoadDelay,
		wordsPerMinute: config.WordsPerMinute,
		sampleRate:     catalog.SampleRate,
	}
}

// Load simulates model construction.
func (e *MockEngine) Load(ctx context.Context, modelID string) (tts.Model, error) {
	e.loads.Add(1)

	if e.loadDelay > 0 {
		select {
		case <-time.After(e.loadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.RLock()
	err := e.loadErr
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return &mockModel{id: modelID, engine: e}, nil
}

// Info returns the mock engine's capabilities.
func (e *MockEngine) Info() tts.EngineInfo {
	return tts.EngineInfo{
		Name:       string(tts.EngineMock),
		SampleRate: e.sampleRate,
		Channels:   1,
	}
}

// Validate always succeeds.
func (e *MockEngine) Validate() error { return nil }

// Close is a no-op.
func (e *MockEngine) Close() error { return nil }

// Test control methods

// SetLoadError makes every following Load fail with err; nil clears it.
func (e *MockEngine) SetLoadError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadErr = err
}

// SetGenerateError makes every following Generate fail with err; nil clears it.
func (e *MockEngine) SetGenerateError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generateErr = err
}

// Loads returns how many times Load was called.
func (e *MockEngine) Loads() int64 { return e.loads.Load() }

// Generates returns how many times Generate was called.
func (e *MockEngine) Generates() int64 { return e.generates.Load() }

type mockModel struct {
	id     string
	engine *MockEngine
}

func (m *mockModel) ID() string { return m.id }

func (m *mockModel) Close() error { return nil }

func (m *mockModel) Generate(ctx context.Context, text, voice string) ([]float32, error) {
	e := m.engine
	e.generates.Add(1)

	if text == "" {
		return nil, tts.ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	err := e.generateErr
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	n := words * 60 * e.sampleRate / e.wordsPerMinute

	// Each voice gets its own pitch so outputs are distinguishable.
	freq := 220.0 + 20.0*float64(len(voice))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.2 * math.Sin(2*math.Pi*freq*float64(i)/float64(e.sampleRate)))
	}
	return samples, nil
}

// Ensure MockEngine implements the Engine interface
var _ tts.Engine = (*MockEngine)(nil)
