package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/interpose/pkg/cli"
	"mercator-hq/interpose/pkg/config"
	"mercator-hq/interpose/pkg/interpose"
)

var (
	// Global flags
	cfgFile      string
	logLevel     string
	logFormat    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "interpose",
	Short: "Interpose - rule-based method interception runtime",
	Long: `Interpose resolves each intercepted method call to a chain of handlers
contributed by feature rules, caches the resolution and runs it.

Recipes are declared in a YAML manifest that combines contracts with
features such as property storage, local data, delegation, call logging
and tracing. The command line validates manifests, explains how their
methods resolve, benchmarks dispatch and hosts a long-running admin mode.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override: json, text, console")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json")
}

// loadConfig returns a private copy of the process configuration with the
// global flag overrides applied.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("config", "failed to load configuration", err)
	}
	cfg := *config.MustGetConfig()
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Telemetry.Logging.Format = logFormat
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, cli.NewConfigError("config", "invalid flag overrides", err)
	}
	return &cfg, nil
}

// newRuntime builds a runtime with the demo contracts registered. A
// non-empty manifest path overrides the configured one.
func newRuntime(manifestPath string, modify func(*config.Config)) (*interpose.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if manifestPath != "" {
		cfg.Manifest.Path = manifestPath
	}
	if modify != nil {
		modify(cfg)
	}

	rt, err := interpose.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := registerDemo(rt); err != nil {
		return nil, err
	}
	return rt, nil
}

// printResult writes v to stdout in the --output format.
func printResult(cmd *cobra.Command, v any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), v)
}
