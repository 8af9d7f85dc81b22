package main

import (
	"fmt"

	"github.com/MrEthical07/goToken/internal/fileconfig"
	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// app holds what every subcommand needs after flag parsing.
type app struct {
	configPath string
	envFile    string
	logLevel   string

	cfg    fileconfig.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "gotoken",
		Short:         "Credential issuance and token verification service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newKeysCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) init() error {
	if err := fileconfig.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := fileconfig.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Config{
		Env:         cfg.Log.Env,
		Level:       cfg.Log.Level,
		ServiceName: "gotoken",
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	a.logger = logger
	return nil
}
