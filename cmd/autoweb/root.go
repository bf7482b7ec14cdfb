// Package cli implements the autoweb command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ken0yuan/auto-ai-web/internal/config"
	"github.com/ken0yuan/auto-ai-web/internal/engine"
)

var (
	configPath string

	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "autoweb",
	Short: "Drive a browser with a multimodal model to complete web tasks",
	Long: `autoweb extracts an indexed view of the current page, asks a
multimodal model for the next action, executes it, and repeats until the
task is done.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real deployments set the environment directly.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log, err = newLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config YAML")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if lc.Level != "" {
		if err := level.Set(lc.Level); err != nil {
			return nil, fmt.Errorf("bad log level %q: %w", lc.Level, err)
		}
	}
	var zc zap.Config
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func newEngine() (engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Engine.Provider {
	case "anthropic":
		return engine.NewAnthropicEngine(log, engine.AnthropicConfig{
			APIKey: cfg.Engine.APIKey,
			Model:  cfg.Engine.Model,
		})
	default:
		return engine.NewOpenAIEngine(log, engine.OpenAIConfig{
			APIKey:  cfg.Engine.APIKey,
			Model:   cfg.Engine.Model,
			BaseURL: cfg.Engine.BaseURL,
		})
	}
}
