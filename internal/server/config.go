package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dgnsrekt/kitten-tts-server/internal/catalog"
)

// EnvPrefix is prepended to every environment variable read by LoadConfig.
const EnvPrefix = "KITTEN_TTS_"

// Config holds the HTTP server settings.
type Config struct {
	// Listen is the address the server binds to
	Listen string `env:"LISTEN" envDefault:"0.0.0.0:5073"`

	// CORSOrigins are the browser origins allowed to call the API
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:5072" envSeparator:","`

	// MaxTextLength caps /tts input in characters; 0 disables the cap
	MaxTextLength int `env:"MAX_TEXT_LENGTH" envDefault:"5000"`

	// TempDir holds the per-request WAV files; empty means os.TempDir()
	TempDir string `env:"TEMP_DIR"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Debug puts gin in debug mode
	Debug bool `env:"DEBUG" envDefault:"false"`
}

// LoadConfig reads the server settings from KITTEN_TTS_* environment
// variables, applying defaults for anything unset.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("error parsing server config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the built-in defaults, ignoring the environment.
func DefaultConfig() Config {
	return Config{
		Listen:          "0.0.0.0:5073",
		CORSOrigins:     []string{"http://localhost:5072"},
		MaxTextLength:   catalog.DefaultMaxTextLength,
		ShutdownTimeout: 30 * time.Second,
	}
}
