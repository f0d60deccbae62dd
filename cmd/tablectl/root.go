package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tablebook/internal/app"
	"tablebook/internal/config"
	"tablebook/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tablectl",
		Short:         "Operate the table reservation scheduler from the shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level, logs go to stderr")

	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newBookCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newScheduleCmd(opts))
	root.AddCommand(newTablesCmd(opts))
	root.AddCommand(newBackupCmd(opts))

	return root
}

// withApp loads config, assembles the services and hands them to fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	logCfg.Level = opts.logLevel
	logger, closer, err := logging.New(logCfg, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	l := logger.With().Str("component", "tablectl").Logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, &l)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
