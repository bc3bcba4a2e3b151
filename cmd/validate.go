package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/warts/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check that captures decode cleanly",
	Long: `Decode every object of each capture without printing records.

Each file is reported as VALID or INVALID; malformed objects are never skipped.

Examples:
  warts validate a.warts b.warts.bz2`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(context.Background(), cfg, args, os.Stdout); err != nil {
			exitWithError("validation failed", err)
		}
	},
}

func runValidate(ctx context.Context, cfg *config.GlobalConfig, paths []string, w io.Writer) error {
	dc := cfg.Decoder
	dc.SkipMalformed = false

	invalid := 0
	for _, path := range paths {
		res := decodeFile(ctx, path, dc, nil)
		if res.Err != nil {
			invalid++
			fmt.Fprintf(w, "INVALID: %s: %v\n", path, res.Err)
			continue
		}
		records := 0
		for _, n := range res.Records {
			records += n
		}
		fmt.Fprintf(w, "VALID: %s (%d records)\n", path, records)
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d files invalid", invalid, len(paths))
	}
	return nil
}
