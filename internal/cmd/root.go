package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appsonify "github.com/bryanwahyu/sonifier/internal/application/sonify"
	"github.com/bryanwahyu/sonifier/internal/bootstrap"
	"github.com/bryanwahyu/sonifier/internal/config"
	"github.com/bryanwahyu/sonifier/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "sonify",
	Short: "Turn images into music",
	Long: `sonify captions an image, detects its mood, composes a music prompt
and renders it to a WAV file with MusicGen.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	defaultConfig := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "Path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

// loadConfig reads .env and the config file, then sets up logging on stderr
// so stdout stays clean for results.
func loadConfig() (*config.Config, *slog.Logger, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return cfg, logging.New(os.Stderr, level, "text"), nil
}

// buildPipeline is replaced in tests.
var buildPipeline = func(cfg *config.Config, logger *slog.Logger) *appsonify.Orchestrator {
	return bootstrap.Orchestrator(cfg, bootstrap.Synthesizer(cfg, logger), logger)
}
