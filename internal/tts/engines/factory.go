package engines

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts"
)

// New creates the engine selected in config.
func New(config tts.Config) (tts.Engine, error) {
	switch config.Engine {
	case tts.EngineKitten:
		log.Info("TTS engine selected", "engine", config.Engine, "binary", config.Binary, "models", config.ModelsDir)
		return NewKittenEngine(KittenConfig{
			Binary:    config.Binary,
			ModelsDir: config.ModelsDir,
			Timeout:   config.Timeout,
		})
	case tts.EngineMock:
		log.Info("TTS engine selected", "engine", config.Engine)
		return NewMockEngine(MockConfig{}), nil
	case tts.EngineNone:
		return nil, tts.ErrNoEngineConfigured
	default:
		return nil, fmt.Errorf("%w: %s", tts.ErrInvalidEngine, config.Engine)
	}
}
