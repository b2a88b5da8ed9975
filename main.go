// Package main provides the entry point for the kitten-tts-server CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kitten-tts-server/internal/cache"
	"github.com/dgnsrekt/kitten-tts-server/internal/server"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts/engines"
	"github.com/dgnsrekt/kitten-tts-server/utils"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "kitten-tts"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:   "kitten-tts-server",
		Short: "Serve KittenTTS speech synthesis over HTTP",
		Long: paragraph(
			fmt.Sprintf("\nServe %s speech synthesis over HTTP. Lists the available models and voices and turns text into WAV audio.", keyword("KittenTTS")),
		),
		Example:          paragraph("kitten-tts-server\nkitten-tts-server --engine mock --listen 127.0.0.1:5073\ncurl 'http://localhost:5073/tts?text=Hello&voice=Luna' -o hello.wav"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(utils.ExpandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if err := applyLogLevel(); err != nil {
		return err
	}

	if _, err := tts.ValidateEngineSelection(viper.GetString("engine.name"), tts.Config{}); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}

	if timeout := viper.GetDuration("engine.timeout"); timeout <= 0 {
		return fmt.Errorf("engine timeout must be positive, got %s", viper.GetString("engine.timeout"))
	}
	if viper.IsSet("max_text_length") && viper.GetInt("max_text_length") < 0 {
		return fmt.Errorf("max_text_length must be 0 (unlimited) or positive, got %d", viper.GetInt("max_text_length"))
	}
	if rpm := viper.GetInt("precache.requests_per_minute"); rpm < 1 {
		return fmt.Errorf("precache requests_per_minute must be at least 1, got %d", rpm)
	}
	return nil
}

// engineConfig builds the engine settings from flags and config.
func engineConfig() (tts.Config, error) {
	engineType, err := tts.ValidateEngineSelection(viper.GetString("engine.name"), tts.Config{})
	if err != nil {
		return tts.Config{}, err
	}
	return tts.Config{
		Engine:    engineType,
		Binary:    viper.GetString("engine.binary"),
		ModelsDir: modelsDir(),
		Timeout:   viper.GetDuration("engine.timeout"),
	}, nil
}

func modelsDir() string {
	return utils.ExpandPath(viper.GetString("models.dir"))
}

// serverConfig starts from the KITTEN_TTS_* environment and lets flags and
// the config file fill in the keys they set.
func serverConfig() (server.Config, error) {
	cfg, err := server.LoadConfig()
	if err != nil {
		return server.Config{}, err
	}

	if v := viper.GetString("listen"); v != "" {
		cfg.Listen = v
	}
	if viper.IsSet("max_text_length") {
		cfg.MaxTextLength = viper.GetInt("max_text_length")
	}
	if v := viper.GetString("temp_dir"); v != "" {
		cfg.TempDir = utils.ExpandPath(v)
	}
	// the comma separated env form is only understood by server.LoadConfig
	if _, ok := os.LookupEnv(server.EnvPrefix + "CORS_ORIGINS"); !ok {
		if origins := viper.GetStringSlice("cors.origins"); len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}
	return cfg, nil
}

func execute(cmd *cobra.Command, _ []string) error {
	ecfg, err := engineConfig()
	if err != nil {
		return err
	}

	engine, err := engines.New(ecfg)
	if err != nil {
		return fmt.Errorf("unable to create engine: %w", err)
	}
	defer engine.Close() //nolint:errcheck

	// /models and /voices keep working without a runtime; only /tts fails.
	result := tts.ValidateEngine(engine, ecfg)
	if result.Error != nil {
		log.Warn("Engine not ready, /tts will fail until this is fixed", "engine", result.Engine, "err", result.Error)
		fmt.Fprintln(os.Stderr, paragraph("\n"+result.Guidance+"\n"))
	} else {
		log.Info("Engine ready", "engine", result.Engine, "sample_rate", result.Details["sample_rate"], "models", result.Details["models_present"], "dir", ecfg.ModelsDir)
		if len(result.MissingModels) > 0 {
			log.Warn("Model weights missing, run 'kitten-tts-server precache'", "models", result.MissingModels)
		}
	}

	models := cache.NewModelCache(engine)
	defer func() {
		stats := models.Stats()
		log.Info("Model cache closed", "models", stats.ItemCount, "hits", stats.Hits, "loads", stats.Loads, "failures", stats.LoadFailures)
		for _, e := range models.Entries() {
			log.Info("Model served", "model", e.Key, "hits", e.Hits, "load_time", e.LoadTime, "loaded_at", e.LoadedAt.Format(time.RFC3339))
		}
		_ = models.Close()
	}()

	scfg, err := serverConfig()
	if err != nil {
		return err
	}
	srv, err := server.New(scfg, models)
	if err != nil {
		return err
	}
	watchConfig(srv)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

// watchConfig applies log.level changes from the config file while serving.
func watchConfig(srv *server.Server) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level, err := logLevel()
		if err != nil {
			log.Warn("Ignoring configuration change", "path", e.Name, "err", err)
			return
		}
		log.SetLevel(level)
		srv.SetLogLevel(level)
		log.Info("Configuration reloaded", "path", e.Name, "level", level)
	})
	viper.WatchConfig()
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringP("engine", "e", "", "TTS engine (kitten or mock)")
	rootCmd.PersistentFlags().String("models-dir", "", "directory holding downloaded model weights")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringP("listen", "l", "", "address to listen on (default 0.0.0.0:5073)")
	rootCmd.Flags().StringSlice("cors-origin", nil, "allowed CORS origin (repeatable)")
	rootCmd.Flags().Int("max-text-length", 0, "maximum characters per request, 0 for unlimited")
	rootCmd.Flags().String("temp-dir", "", "directory for per-request WAV files")

	// Config bindings
	_ = viper.BindPFlag("engine.name", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("models.dir", rootCmd.PersistentFlags().Lookup("models-dir"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("listen", rootCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("cors.origins", rootCmd.Flags().Lookup("cors-origin"))
	_ = viper.BindPFlag("max_text_length", rootCmd.Flags().Lookup("max-text-length"))
	_ = viper.BindPFlag("temp_dir", rootCmd.Flags().Lookup("temp-dir"))

	// listen, cors.origins, max_text_length and temp_dir default in
	// server.LoadConfig so the environment can still override them.
	viper.SetDefault("engine.name", string(tts.EngineKitten))
	viper.SetDefault("engine.binary", engines.DefaultKittenBinary)
	viper.SetDefault("engine.timeout", 5*time.Minute)
	viper.SetDefault("models.dir", defaultModelsDir())
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
	viper.SetDefault("precache.requests_per_minute", 60)
	viper.SetDefault("precache.endpoint", "https://huggingface.co")

	rootCmd.AddCommand(configCmd, manCmd, precacheCmd, sayCmd)
}

func defaultModelsDir() string {
	dir, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName, "models")
	}
	return filepath.Join(dir, "models")
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("KITTEN_TTS_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("kitten_tts")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
