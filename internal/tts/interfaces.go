package tts

import (
	"context"
)

// Engine constructs model instances. Loading is expensive (weights are read
// and checked) so callers are expected to keep the returned Model around.
type Engine interface {
	// Load constructs the model identified by modelID.
	Load(ctx context.Context, modelID string) (Model, error)

	// Info returns engine capabilities and configuration.
	Info() EngineInfo

	// Validate checks if the engine is properly configured and available.
	Validate() error

	// Close releases any resources held by the engine.
	Close() error
}

// Model is a loaded model that can synthesize speech. Implementations must
// be safe for concurrent use.
type Model interface {
	// ID returns the model identifier this instance was loaded for.
	ID() string

	// Generate converts text to mono float samples in [-1, 1] at the
	// engine's sample rate.
	Generate(ctx context.Context, text, voice string) ([]float32, error)

	// Close releases resources held by the model.
	Close() error
}
