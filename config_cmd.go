package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# address the HTTP server listens on
listen: "0.0.0.0:5073"
# browser origins allowed to call the API
cors:
  origins:
    - "http://localhost:5072"
# maximum characters per /tts request, 0 for unlimited
max_text_length: 5000
# directory for per-request WAV files (default: system temp dir)
# temp_dir: "/tmp"

engine:
  # TTS engine: kitten or mock
  name: "kitten"
  # KittenTTS runtime executable (install scripts/kittentts onto PATH)
  binary: "kittentts"
  # upper bound for a single synthesis
  timeout: "5m"

models:
  # downloaded model weights, one directory per model
  # dir: "~/.cache/kitten-tts/models"

log:
  # debug, info, warn or error (applied live when this file changes)
  level: "info"
  # also write logs to this file
  # file: "~/.cache/kitten-tts/kitten-tts.log"

precache:
  endpoint: "https://huggingface.co"
  requests_per_minute: 60
`

var showConfig bool

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the kitten-tts-server config file",
	Long:    paragraph(fmt.Sprintf("\n%s the kitten-tts-server config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created. With --show, print the effective settings instead.", keyword("Edit"))),
	Example: paragraph("kitten-tts-server config\nkitten-tts-server config --config path/to/config.yml\nkitten-tts-server config --show"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if showConfig {
			s, err := effectiveSettings()
			if err != nil {
				return err
			}
			return writeSettings(os.Stdout, s)
		}

		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("kitten-tts-server", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&showConfig, "show", false, "print the effective settings as YAML")
}

// settings mirrors the config file layout.
type settings struct {
	Listen        string           `yaml:"listen"`
	CORS          corsSettings     `yaml:"cors"`
	MaxTextLength int              `yaml:"max_text_length"`
	TempDir       string           `yaml:"temp_dir,omitempty"`
	Engine        engineSettings   `yaml:"engine"`
	Models        modelSettings    `yaml:"models"`
	Log           logSettings      `yaml:"log"`
	Precache      precacheSettings `yaml:"precache"`
}

type corsSettings struct {
	Origins []string `yaml:"origins"`
}

type engineSettings struct {
	Name    string `yaml:"name"`
	Binary  string `yaml:"binary"`
	Timeout string `yaml:"timeout"`
}

type modelSettings struct {
	Dir string `yaml:"dir"`
}

type logSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type precacheSettings struct {
	Endpoint          string `yaml:"endpoint"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

func effectiveSettings() (settings, error) {
	scfg, err := serverConfig()
	if err != nil {
		return settings{}, err
	}
	ecfg, err := engineConfig()
	if err != nil {
		return settings{}, err
	}

	return settings{
		Listen:        scfg.Listen,
		CORS:          corsSettings{Origins: scfg.CORSOrigins},
		MaxTextLength: scfg.MaxTextLength,
		TempDir:       scfg.TempDir,
		Engine: engineSettings{
			Name:    string(ecfg.Engine),
			Binary:  ecfg.Binary,
			Timeout: ecfg.Timeout.String(),
		},
		Models: modelSettings{Dir: ecfg.ModelsDir},
		Log: logSettings{
			Level: viper.GetString("log.level"),
			File:  viper.GetString("log.file"),
		},
		Precache: precacheSettings{
			Endpoint:          viper.GetString("precache.endpoint"),
			RequestsPerMinute: viper.GetInt("precache.requests_per_minute"),
		},
	}, nil
}

func writeSettings(w io.Writer, s settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("unable to encode settings: %w", err)
	}
	return enc.Close()
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
