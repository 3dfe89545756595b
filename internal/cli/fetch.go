package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tenderscan/internal/config"
	"tenderscan/internal/engine"
	"tenderscan/internal/extract"
	"tenderscan/internal/fetcher"
	"tenderscan/internal/flags"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Collect tenders and save them",
	Long: `Collect up to --max unique tenders from the B2B-Center listing and save them.

Listing pages are fetched concurrently (--concurrency, default 5), but tenders
are kept in listing order: page 1 first, and within a page in table order. A
tender seen twice is kept once. The run stops as soon as --max tenders are
collected, when the listing ends, or after --max-pages pages.

Output:
	Tenders are written to --output in the format selected by --format, or
	inferred from the file extension:
	- json:     an indented JSON array (.json)
	- ndjson:   one tender per line (.ndjson, .jsonl)
	- sqlite:   a "tenders" table in a new SQLite database (.db, .sqlite)
	- postgres: upserted into a "tenders" table reached via --dsn

	--emit writes an additional stream to stdout (json or ndjson). NDJSON mode
	emits one JSON object per line. Objects are Events with a "type" field:
	"tender" for each collected tender and "run.finished" for the run summary.

	A run summary is printed to stderr unless --no-console is set.

Exit codes:
	0 = requested tenders collected, or the listing ended cleanly
	2 = partial (some pages failed, the run timed out, or fewer tenders than requested)
	3 = fatal error (nothing could be fetched, output failed, or bad flags)

Examples:
	# Collect 100 tenders into tenders.json
	tenderscan fetch --max 100

	# Collect 500 tenders into SQLite, 8 pages at a time
	tenderscan fetch --max 500 --output tenders.db --concurrency 8

	# Stream tenders to another program
	tenderscan fetch --max 50 --no-console --emit ndjson
`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		eng, err := newEngine(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		code := eng.Run(ctx, cfg)
		stop()
		os.Exit(code)
	},
}

// newEngine wires the page fetcher and record extractor selected by cfg.
func newEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	burst := cfg.Runtime.Concurrency
	f, err := fetcher.NewFetcher(cfg.Source.BaseURL,
		fetcher.WithUserAgent(cfg.Source.UserAgent),
		fetcher.WithTimeout(cfg.Source.RequestTimeout),
		fetcher.WithLimiter(fetcher.NewLimiter(cfg.Source.Rate, burst)),
		fetcher.WithLogger(logger, cfg.Runtime.Verbose),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create page fetcher: %w", err)
	}

	x, err := extract.New(cfg.Source.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create record extractor: %w", err)
	}
	return engine.NewEngine(f, x, logger), nil
}

func addSourceFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Source.BaseURL, flags.FlagBaseURL, cfg.Source.BaseURL, "First listing page URL")
	fs.StringVar(&cfg.Source.UserAgent, flags.FlagUserAgent, cfg.Source.UserAgent, "User-Agent sent with page requests")
	fs.DurationVar(&cfg.Source.RequestTimeout, flags.FlagRequestTimeout, cfg.Source.RequestTimeout, "Timeout for a single page request (default: 10s)")
	fs.Float64Var(&cfg.Source.Rate, flags.FlagRate, cfg.Source.Rate, "Maximum page requests per second (0 = unlimited)")
}

func addCollectFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.IntVar(&cfg.Run.MaxPages, flags.FlagMaxPages, cfg.Run.MaxPages, "Maximum listing pages per run (default: 50)")
	fs.IntVar(&cfg.Run.PageSizeHint, flags.FlagPageSizeHint, cfg.Run.PageSizeHint, "Expected tenders per page before the first page is seen (default: 20)")
	fs.IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Pages fetched at once (default: 5)")
	fs.IntVar(&cfg.Runtime.Retries, flags.FlagRetries, cfg.Runtime.Retries, "Extra attempts for a page that failed transiently, 0-10 (default: 2)")
	fs.DurationVar(&cfg.Runtime.RetryBackoff, flags.FlagRetryBackoff, cfg.Runtime.RetryBackoff, "Wait before the first retry, doubled for each further retry (default: 500ms)")
	fs.DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Timeout for a whole run (default: 10m)")
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fs := fetchCmd.Flags()
	fs.IntVar(&cfg.Run.Max, flags.FlagMax, cfg.Run.Max, "Number of unique tenders to collect (default: 100)")
	addSourceFlags(fs, cfg)
	addCollectFlags(fs, cfg)

	// Output
	fs.StringVarP(&cfg.Output.Path, flags.FlagOutput, "o", cfg.Output.Path, "Output file for json, ndjson and sqlite formats")
	fs.StringVar(&cfg.Output.Format, flags.FlagFormat, "", "Output format: json|ndjson|sqlite|postgres (default: inferred from --output extension)")
	fs.StringVar(&cfg.Output.DSN, flags.FlagDSN, "", "PostgreSQL connection string for --format postgres")
	fs.StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Also write tenders to stdout: json|ndjson (repeatable; comma-separated accepted)")
	fs.BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress the run summary on stderr (use with --emit)")
}
