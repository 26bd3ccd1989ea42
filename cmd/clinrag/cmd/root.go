// Package cmd provides the CLI commands for clinrag.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clinrag/clinrag/internal/config"
	"github.com/clinrag/clinrag/internal/logging"
	"github.com/clinrag/clinrag/pkg/version"
)

var (
	cfgFile   string
	debugMode bool
)

// NewRootCmd creates the root command for the clinrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinrag",
		Short: "Hybrid retrieval engine for clinical guideline questions",
		Long: `clinrag answers clinical questions against a guideline knowledge base.

Questions are routed to semantic search, structural graph templates, or
both, with the two result sets fused and reranked by recommendation
strength, evidence quality, and direction.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("clinrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.config/clinrag/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debugMode {
		cfg.Server.LogLevel = "debug"
	}
	return cfg, nil
}

// setupLogging configures the process logger from config.
func setupLogging(cfg *config.Config, toStderr bool) (*slog.Logger, func(), error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	logCfg.WriteToStderr = toStderr
	return logging.Setup(logCfg)
}
