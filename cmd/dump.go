package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"firestige.xyz/warts/internal/config"
	"firestige.xyz/warts/internal/metrics"
	"firestige.xyz/warts/internal/sink/console"
	"firestige.xyz/warts/pkg/warts"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE...",
	Short: "Decode captures and print their records",
	Long: `Decode one or more warts captures and print every trace and ping.

Formats:
  text  one parameter line per record, then one line per hop or reply
  json  one JSON object per record and line
  yaml  one YAML document per record, fields in capture order
  pb    length-delimited google.protobuf.Struct messages

Use "-" to read standard input.

Examples:
  warts dump capture.warts.gz
  warts dump --format json --skip-malformed a.warts b.warts`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := applyDumpFlags(cmd); err != nil {
			exitWithError("invalid flags", err)
		}
		if cfg.Output.Format.Binary() && term.IsTerminal(int(os.Stdout.Fd())) {
			exitWithError(fmt.Sprintf("refusing to write %s output to a terminal", cfg.Output.Format), nil)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runDump(ctx, cfg, args, os.Stdout); err != nil {
			exitWithError("dump failed", err)
		}
	},
}

var (
	dumpFormat        string
	dumpSkipMalformed bool
	dumpExtensions    string
	dumpMetrics       bool
)

func init() {
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "text",
		"output format: text, json, yaml, pb")
	dumpCmd.Flags().BoolVar(&dumpSkipMalformed, "skip-malformed", false,
		"report malformed objects and continue with the next one")
	dumpCmd.Flags().StringVar(&dumpExtensions, "extensions", "strict",
		"unknown ICMP extensions: strict (fail) or skip (keep raw)")
	dumpCmd.Flags().BoolVar(&dumpMetrics, "metrics", false,
		"serve Prometheus metrics while decoding")
}

// applyDumpFlags lets explicitly set flags override the loaded configuration.
func applyDumpFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		f, err := console.ParseFormat(dumpFormat)
		if err != nil {
			return err
		}
		cfg.Output.Format = f
	}
	if flags.Changed("skip-malformed") {
		cfg.Decoder.SkipMalformed = dumpSkipMalformed
	}
	if flags.Changed("extensions") {
		if err := cfg.Decoder.ExtensionPolicy.UnmarshalText([]byte(dumpExtensions)); err != nil {
			return err
		}
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = dumpMetrics
	}
	return nil
}

// runDump decodes every path in order and writes the records to w. Records decoded
// before a failure are flushed before the error is returned.
func runDump(ctx context.Context, cfg *config.GlobalConfig, paths []string, w io.Writer) (err error) {
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	sink, err := console.NewSink(w, cfg.Output.Format)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
	}()

	for _, path := range paths {
		res := decodeFile(ctx, path, cfg.Decoder, func(rec warts.Record) error {
			return sink.Send(path, rec)
		})
		if res.Err != nil {
			return fmt.Errorf("%s: %w", path, res.Err)
		}
	}
	return nil
}
