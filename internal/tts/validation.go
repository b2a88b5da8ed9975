package tts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/kitten-tts-server/internal/catalog"
	"github.com/dgnsrekt/kitten-tts-server/internal/hub"
)

// ValidationResult contains the result of engine validation
type ValidationResult struct {
	// Engine is the validated engine type
	Engine EngineType

	// Available indicates if the engine is available and configured
	Available bool

	// Error contains any validation error
	Error error

	// Guidance provides setup instructions if validation failed
	Guidance string

	// Details contains additional validation information
	Details map[string]string

	// MissingModels lists catalog models without weights on disk
	MissingModels []string
}

// ValidateEngineSelection resolves the engine name from the command line
// flag, falling back to config. Aliases are normalized.
func ValidateEngineSelection(cliArg string, config Config) (EngineType, error) {
	engineType := strings.TrimSpace(cliArg)
	if engineType == "" {
		engineType = strings.TrimSpace(string(config.Engine))
	}

	if engineType == "" {
		return EngineNone, fmt.Errorf("%w\n\nPlease specify an engine:\n  kitten-tts-server --engine kitten    # KittenTTS runtime\n  kitten-tts-server --engine mock      # test tone, no model files", ErrNoEngineConfigured)
	}

	switch strings.ToLower(engineType) {
	case "kitten", "kittentts", "kitten-tts":
		return EngineKitten, nil
	case "mock":
		return EngineMock, nil
	default:
		return EngineNone, fmt.Errorf("%w: %s\n\nSupported engines:\n  - kitten (KittenTTS runtime)\n  - mock (test tone)", ErrInvalidEngine, engineType)
	}
}

// ValidateEngine asks engine whether it can serve requests and reports
// which catalog models are missing their weights under config.ModelsDir.
func ValidateEngine(engine Engine, config Config) *ValidationResult {
	info := engine.Info()
	result := &ValidationResult{
		Engine: EngineType(info.Name),
		Details: map[string]string{
			"engine":      info.Name,
			"sample_rate": fmt.Sprintf("%d", info.SampleRate),
		},
	}

	if err := engine.Validate(); err != nil {
		result.Error = fmt.Errorf("%w: %w", ErrEngineNotAvailable, err)
		result.Guidance = guidanceFor(err)
		return result
	}
	result.Available = true

	if result.Engine != EngineKitten {
		return result
	}
	result.Details["models_dir"] = config.ModelsDir
	present := hub.Present(config.ModelsDir, catalog.Models())
	for _, id := range catalog.Models() {
		if !present[id] {
			result.MissingModels = append(result.MissingModels, id)
		}
	}
	result.Details["models_present"] = fmt.Sprintf("%d/%d", len(catalog.Models())-len(result.MissingModels), len(catalog.Models()))
	if len(result.MissingModels) > 0 {
		result.Guidance = buildPrecacheGuidance()
	}
	return result
}

// guidanceFor picks setup instructions matching a Validate failure.
func guidanceFor(err error) string {
	var ttsErr *TTSError
	if errors.As(err, &ttsErr) && ttsErr.Code == ErrorCodeEngineUnavailable {
		return buildKittenInstallGuidance()
	}
	return buildPrecacheGuidance()
}

// buildKittenInstallGuidance provides instructions for installing the runtime
func buildKittenInstallGuidance() string {
	return `The KittenTTS runtime is not installed. To install:

1. Install the Python package:
   pip install https://github.com/KittenML/KittenTTS/releases/latest/download/kittentts-0.8.0-py3-none-any.whl

2. Install the runtime wrapper shipped in this repository onto PATH:
   install -m 0755 scripts/kittentts ~/.local/bin/kittentts
   (or point engine.binary at scripts/kittentts in the config file)

3. Download the model weights:
   kitten-tts-server precache`
}

// buildPrecacheGuidance explains how to fetch missing weights
func buildPrecacheGuidance() string {
	return `Some model weights are not downloaded yet. Fetch them ahead of time with:

  kitten-tts-server precache

Models without weights fail with HTTP 500 when first requested.`
}
