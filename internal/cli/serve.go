package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tenderscan/internal/flags"
	"tenderscan/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tenders over HTTP",
	Long: `Serve the tender collector as an HTTP API.

Endpoints:
	GET /tenders?max_tenders=N
		Runs one collection and returns the tenders as JSON. max_tenders
		defaults to 100 and is capped at --max-tenders. Responds 400 for an
		invalid max_tenders, 502 when no listing page could be fetched and 504
		when the run timed out before any tender was collected.

	GET /health
		Liveness check.

	GET /metrics
		Prometheus metrics.

Each request runs with the collection flags below (--concurrency, --retries,
--max-pages, ...) and is bounded by --timeout.

Examples:
	tenderscan serve --addr :8000
	curl 'http://localhost:8000/tenders?max_tenders=20'
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
		defer stop()

		if err := server.New(eng, cfg, logger).Run(ctx); err != nil {
			logger.Error("server failed", "error", err)
			stop()
			os.Exit(3)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	fs := serveCmd.Flags()
	fs.StringVar(&cfg.Server.Addr, flags.FlagAddr, cfg.Server.Addr, "Listen address (default: :8000)")
	fs.IntVar(&cfg.Server.MaxTenders, flags.FlagMaxTenders, cfg.Server.MaxTenders, "Upper bound for max_tenders per request (default: 1000)")
	fs.DurationVar(&cfg.Server.ShutdownTimeout, flags.FlagShutdownTimeout, cfg.Server.ShutdownTimeout, "Grace period for in-flight requests on shutdown (default: 15s)")
	addSourceFlags(fs, cfg)
	addCollectFlags(fs, cfg)
}
