// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/warts/internal/config"
	"firestige.xyz/warts/internal/log"
)

var (
	// Global flags
	configFile string
	logLevel   string

	cfg *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warts",
	Short: "warts - decode scamper warts capture files",
	Long: `warts reads the binary capture files written by scamper and prints the
traceroute and ping measurements they contain.

Captures may be plain or compressed with gzip, bzip2 or zstd; the format is
detected from the file content.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and WARTS_* env vars when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: trace, debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(validateCmd)
}

// setup loads the configuration and initializes logging before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := log.Init(&cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
