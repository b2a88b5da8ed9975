package tts

import (
	"time"
)

// EngineType represents the TTS engine selection
type EngineType string

const (
	// EngineKitten runs the KittenTTS model runtime as a subprocess
	EngineKitten EngineType = "kitten"

	// EngineMock generates a test tone without any model files
	EngineMock EngineType = "mock"

	// EngineNone represents no engine selected
	EngineNone EngineType = ""
)

// EngineInfo describes engine capabilities and configuration.
type EngineInfo struct {
	Name       string // Engine name (e.g., "kitten", "mock")
	SampleRate int    // Audio sample rate in Hz
	Channels   int    // Number of audio channels (1=mono)
	IsOnline   bool   // Whether the engine requires internet
}

// Config represents engine configuration
type Config struct {
	// Engine is the selected TTS engine
	Engine EngineType

	// Binary is the model runtime executable for the kitten engine
	Binary string

	// ModelsDir holds one directory of weights per model
	ModelsDir string

	// Timeout bounds a single synthesis call
	Timeout time.Duration
}
