package engines

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kitten-tts-server/internal/audio"
	"github.com/dgnsrekt/kitten-tts-server/internal/catalog"
	"github.com/dgnsrekt/kitten-tts-server/internal/hub"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts"
)

// DefaultKittenBinary is the model runtime looked up on PATH.
const DefaultKittenBinary = "kittentts"

// KittenEngine implements the Engine interface on top of the KittenTTS
// runtime. Every Generate call runs a fresh process with stdin pre-configured.
type KittenEngine struct {
	// Configuration
	binary     string
	modelsDir  string
	timeout    time.Duration
	sampleRate int

	// Synchronization
	mu     sync.RWMutex
	closed bool
}

// KittenConfig holds configuration for the KittenTTS engine.
type KittenConfig struct {
	// Binary is the runtime executable (default "kittentts")
	Binary string

	// ModelsDir holds the downloaded weights (required)
	ModelsDir string

	// Timeout per synthesis (default 5m)
	Timeout time.Duration

	// Sample rate (optional, defaults to 24000)
	SampleRate int
}

// NewKittenEngine creates a new KittenTTS engine.
func NewKittenEngine(config KittenConfig) (*KittenEngine, error) {
	if config.ModelsDir == "" {
		return nil, errors.New("models directory is required")
	}
	if config.Binary == "" {
		config.Binary = DefaultKittenBinary
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.SampleRate == 0 {
		config.SampleRate = catalog.SampleRate
	}

	return &KittenEngine{
		binary:     config.Binary,
		modelsDir:  config.ModelsDir,
		timeout:    config.Timeout,
		sampleRate: config.SampleRate,
	}, nil
}

// Load resolves the weights of modelID and returns a model bound to them.
func (e *KittenEngine) Load(_ context.Context, modelID string) (tts.Model, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, tts.ErrClosed
	}

	binaryPath, err := exec.LookPath(e.binary)
	if err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "kitten runtime not found", err).
			WithContext("binary", e.binary)
	}

	dir := hub.Dir(e.modelsDir, modelID)
	weights, err := hub.FindWeights(dir)
	if err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeModelNotFound, modelID,
			fmt.Errorf("%w: %w", tts.ErrModelNotFound, err)).
			WithContext("dir", dir)
	}

	logger().Info("Model loaded", "model", modelID, "weights", weights)
	return &kittenModel{
		id:         modelID,
		dir:        dir,
		binary:     binaryPath,
		timeout:    e.timeout,
		sampleRate: e.sampleRate,
	}, nil
}

// Info returns engine capabilities and configuration.
func (e *KittenEngine) Info() tts.EngineInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return tts.EngineInfo{
		Name:       string(tts.EngineKitten),
		SampleRate: e.sampleRate,
		Channels:   1,
		IsOnline:   false,
	}
}

// Validate checks that the runtime is on PATH and the models directory
// exists. A missing runtime is ENGINE_UNAVAILABLE, a missing directory
// MODEL_NOT_FOUND.
func (e *KittenEngine) Validate() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "kitten runtime not found", err).
			WithContext("binary", e.binary)
	}
	st, err := os.Stat(e.modelsDir)
	if err == nil && !st.IsDir() {
		err = fmt.Errorf("%s is not a directory", e.modelsDir)
	}
	if err != nil {
		return tts.NewTTSError(tts.ErrorCodeModelNotFound, "models directory not accessible",
			fmt.Errorf("%w: %w", tts.ErrModelNotFound, err)).
			WithContext("dir", e.modelsDir)
	}
	return nil
}

// Close marks the engine closed; models already handed out keep working.
func (e *KittenEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

type kittenModel struct {
	id         string
	dir        string
	binary     string
	timeout    time.Duration
	sampleRate int
}

func (m *kittenModel) ID() string { return m.id }

func (m *kittenModel) Close() error { return nil }

// Generate runs the runtime once. Text goes in on stdin, raw little-endian
// float32 samples come back on stdout.
func (m *kittenModel) Generate(ctx context.Context, text, voice string) ([]float32, error) {
	if text == "" {
		return nil, tts.ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	args := []string{
		"--model", m.dir,
		"--voice", voice,
		"--sample-rate", strconv.Itoa(m.sampleRate),
		"--output-raw",
	}
	cmd := exec.CommandContext(ctx, m.binary, args...)

	// Stdin is set before start so the runtime can never read an empty pipe.
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Interrupt first, kill if it has not exited shortly after.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, tts.NewTTSError(tts.ErrorCodeEngineTimeout,
				fmt.Sprintf("synthesis exceeded %s", m.timeout), fmt.Errorf("%w: %w", tts.ErrTimeout, ctx.Err()))
		}
		return nil, tts.NewTTSError(tts.ErrorCodeEngineFailure, "kitten runtime failed",
			fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)).
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	}

	samples, err := m.decode(stdout.Bytes())
	if err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeAudioFormat, "unexpected runtime output", err).
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	}

	logger().Debug("Synthesis completed",
		"model", m.id,
		"voice", voice,
		"textLength", len(text),
		"samples", len(samples),
		"duration", time.Since(start))
	return samples, nil
}

// decode accepts raw float32 output, or a WAV file from runtimes that
// ignore --output-raw.
func (m *kittenModel) decode(raw []byte) ([]float32, error) {
	if !bytes.HasPrefix(raw, []byte("RIFF")) {
		return decodeFloat32LE(raw)
	}
	samples, format, err := audio.Decode(raw)
	if err != nil {
		return nil, err
	}
	if format.Channels != 1 || format.SampleRate != m.sampleRate {
		return nil, fmt.Errorf("runtime produced %d Hz %d-channel audio, want %d Hz mono",
			format.SampleRate, format.Channels, m.sampleRate)
	}
	return samples, nil
}

func decodeFloat32LE(raw []byte) ([]float32, error) {
	if len(raw) == 0 {
		return nil, errors.New("runtime produced no audio output")
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("output length %d is not aligned to 4-byte samples", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, nil
}

// logger is resolved on every use so level changes on the default logger
// apply.
func logger() *log.Logger {
	return log.WithPrefix("kitten")
}

// Ensure KittenEngine implements the Engine interface
var _ tts.Engine = (*KittenEngine)(nil)
