package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trackbot/internal/config"
)

func newInitConfigCommand(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = config.GetDefaultConfigPath()
			}
			return initConfigFile(cmd, path, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// initConfigFile creates a new config file with default values and a
// disabled-by-default example for each provider.
func initConfigFile(cmd *cobra.Command, path string, force bool) error {
	out := cmd.OutOrStdout()
	if config.Exists(path) && !force {
		fmt.Fprintf(out, "Config file already exists at: %s\n", path)
		fmt.Fprintln(out, "Delete it first or pass --force if you want to recreate it.")
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.Providers.Hifi = &config.HifiConfig{APIURL: "https://hifi.example/api"}

	if err := config.SaveConfigFile(cfg, path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Fprintf(out, "Created default config file at: %s\n", path)
	fmt.Fprintln(out, "\nYou can now edit this file to customize your settings.")
	fmt.Fprintln(out, "Available options:")
	fmt.Fprintln(out, "  listen: address of the web transport")
	fmt.Fprintln(out, "  locale: en, ru")
	fmt.Fprintln(out, "  cache_backend: memory, file, sqlite")
	fmt.Fprintln(out, "  default_provider: hifi, yandex, lucida")
	fmt.Fprintln(out, "  enrich: deezer, itunes, musicbrainz")
	fmt.Fprintln(out, "  providers.<name>: one section per enabled service")
	return nil
}
