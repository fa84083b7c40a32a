// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"specstream/internal/app"
	"specstream/internal/audio"
	"specstream/internal/config"
	applog "specstream/internal/log"
	"specstream/pkg/build"

	"github.com/spf13/cobra"
)

// Options holds the command line overrides applied on top of the config file.
type Options struct {
	ConfigPath  string
	LogLevel    string
	Source      string
	HTTPListen  string
	Destination string
}

// NewRootCommand builds the CLI. The root command runs the system until
// SIGINT or SIGTERM; "list" prints the audio input devices.
func NewRootCommand() *cobra.Command {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "",
		"Path to the YAML configuration file (default ./config.yaml if present)")
	flags.StringVarP(&options.LogLevel, "log-level", "l", "",
		"Log level: debug, info, warn, error")
	rootCmd.Flags().StringVarP(&options.Source, "source", "s", "",
		"Capture source: portaudio, wav or tone")
	rootCmd.Flags().StringVarP(&options.HTTPListen, "http", "H", "",
		"Listen address of the HTTP configuration server")
	rootCmd.Flags().StringVarP(&options.Destination, "destination", "d", "",
		"IPv4 address receiving the spectrum stream")

	return rootCmd
}

// Load reads the startup configuration and applies the command line overrides.
func (o *Options) Load() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Source != "" {
		cfg.Audio.Source = o.Source
	}
	if o.HTTPListen != "" {
		cfg.HTTP.ListenAddress = o.HTTPListen
	}
	if o.Destination != "" {
		cfg.Stream.DestinationAddress = o.Destination
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		applog.Warnf("Config: Unknown log level %q, using %s", cfg.LogLevel, level)
	}
	applog.SetLevel(level)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	sys, err := app.New(cfg)
	if err != nil {
		return err
	}
	applog.Infof("%s: Running (HTTP: %v, Stream from: %v)", build.GetBuildFlags().Name, sys.HTTPAddr(), sys.StreamAddr())
	return sys.Run(ctx)
}

// Execute runs the CLI with the process arguments.
func Execute() error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(os.Args[1:])
	return rootCmd.Execute()
}
