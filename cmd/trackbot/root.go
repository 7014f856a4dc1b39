package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"trackbot/internal/config"
	"trackbot/internal/logger"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "trackbot",
		Short:         "Inline music search and delivery bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to the console")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newFetchCommand(opts))
	rootCmd.AddCommand(newInitConfigCommand(opts))

	return rootCmd
}

// load reads and validates the configuration. CLI flags win over the file.
func (o *rootOptions) load() (config.Config, string, error) {
	cfg, err := config.LoadConfigFile(o.configPath)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("failed to load config: %w", err)
	}
	path := o.configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	if o.verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", fmt.Errorf("configuration error: %w", err)
	}
	return cfg, path, nil
}

// newLogger logs to the console when verbose and to a timestamped file otherwise.
func newLogger(cfg config.Config, name string) *logger.Logger {
	log := logger.New(cfg.Verbose)
	if cfg.Verbose {
		return log
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
		return log
	}
	logFile := filepath.Join(cfg.LogDir, fmt.Sprintf("%s_%s.log", name, time.Now().Format("2006-01-02_15-04-05")))
	if err := log.SetFileLog(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
	} else {
		log.Debug("Logging to file: %s", logFile)
	}
	return log
}
