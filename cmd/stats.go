package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"firestige.xyz/warts/internal/config"
	"firestige.xyz/warts/internal/source/file"
	"firestige.xyz/warts/pkg/warts"
)

var statsCmd = &cobra.Command{
	Use:   "stats FILE|DIR...",
	Short: "Count the objects and records in captures",
	Long: `Decode captures and report per-file object and record counts.

Directories are searched recursively for files matching --include. Files are
decoded concurrently, each with its own decoder.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		if flags.Changed("workers") {
			cfg.Input.Workers = statsWorkers
		}
		if flags.Changed("include") {
			cfg.Input.Include = statsInclude
		}
		if flags.Changed("skip-malformed") {
			cfg.Decoder.SkipMalformed = statsSkipMalformed
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runStats(ctx, cfg, args, os.Stdout); err != nil {
			exitWithError("stats failed", err)
		}
	},
}

var (
	statsWorkers       int
	statsInclude       string
	statsSkipMalformed bool
)

func init() {
	statsCmd.Flags().IntVarP(&statsWorkers, "workers", "w", 0,
		"files decoded concurrently (0 = GOMAXPROCS)")
	statsCmd.Flags().StringVar(&statsInclude, "include", "*.warts*",
		"glob selecting files inside directories")
	statsCmd.Flags().BoolVar(&statsSkipMalformed, "skip-malformed", false,
		"count malformed objects and continue with the next one")
}

func runStats(ctx context.Context, cfg *config.GlobalConfig, args []string, w io.Writer) error {
	paths, err := file.Expand(args, cfg.Input.Include)
	if err != nil {
		return err
	}

	results := make([]fileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Input.Workers > 0 {
		g.SetLimit(cfg.Input.Workers)
	}
	for i, path := range paths {
		g.Go(func() error {
			results[i] = decodeFile(ctx, path, cfg.Decoder, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	var total fileResult
	total.Records = make(map[warts.ObjectType]int)
	total.Stats.Objects = make(map[warts.ObjectType]int)
	failed := 0
	for _, res := range results {
		printResult(p, w, res)
		if res.Err != nil {
			failed++
		}
		for k, v := range res.Records {
			total.Records[k] += v
		}
		for k, v := range res.Stats.Objects {
			total.Stats.Objects[k] += v
		}
		total.Stats.Bytes += res.Stats.Bytes
		total.Stats.Skipped += res.Stats.Skipped
		total.Malformed += res.Malformed
	}
	total.Path = "total"
	printResult(p, w, total)

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func printResult(p *message.Printer, w io.Writer, res fileResult) {
	objects := 0
	for _, n := range res.Stats.Objects {
		objects += n
	}
	p.Fprintf(w, "%s: %d traces, %d pings, %d objects, %d bytes",
		res.Path, res.Records[warts.ObjectTrace], res.Records[warts.ObjectPing], objects, res.Stats.Bytes)
	if res.Compression != "" && res.Compression != file.None {
		p.Fprintf(w, " (%s)", res.Compression)
	}
	if res.Stats.Skipped > 0 {
		p.Fprintf(w, ", %d unsupported", res.Stats.Skipped)
	}
	if res.Malformed > 0 {
		p.Fprintf(w, ", %d malformed", res.Malformed)
	}
	if res.Err != nil {
		p.Fprintf(w, ", error: %v", res.Err)
	}
	fmt.Fprintln(w)
}
