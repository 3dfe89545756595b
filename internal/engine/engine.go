package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"tenderscan/internal/config"
	"tenderscan/internal/output"
	"tenderscan/internal/tender"
)

func exitCodeForRun(fatal, partial bool) int {
	// Exit code contract:
	// 0 = requested count reached, or the listing ended cleanly
	// 2 = partial (page failures, or fewer tenders than requested)
	// 3 = fatal (nothing fetched, sink failure, bad config)
	if fatal {
		return 3
	}
	if partial {
		return 2
	}
	return 0
}

// RunOptions configures one collection run.
type RunOptions struct {
	Max        int
	Scheduler  SchedulerOptions
	Controller ControllerOptions
}

// RunOptionsFromConfig maps validated config onto run options.
func RunOptionsFromConfig(cfg *config.Config) RunOptions {
	return RunOptions{
		Max: cfg.Run.Max,
		Scheduler: SchedulerOptions{
			Concurrency:  cfg.Runtime.Concurrency,
			Retries:      cfg.Runtime.Retries,
			RetryBackoff: cfg.Runtime.RetryBackoff,
		},
		Controller: ControllerOptions{
			MaxPages:     cfg.Run.MaxPages,
			PageSizeHint: cfg.Run.PageSizeHint,
			Verbose:      cfg.Runtime.Verbose,
		},
	}
}

type Engine struct {
	Fetcher   PageFetcher
	Extractor RecordExtractor
	Logger    *slog.Logger

	// Stdout receives --emit streams; Stderr the console summary.
	Stdout io.Writer
	Stderr io.Writer

	// openStore is a test seam for the primary sink.
	// If nil, Engine opens the sink selected by --format.
	openStore func(ctx context.Context, cfg *config.Config) (output.Sink, string, error)
}

func NewEngine(f PageFetcher, x RecordExtractor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Fetcher:   f,
		Extractor: x,
		Logger:    logger,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Collect runs one scrape with a fresh scheduler and controller. Runs share
// only the fetcher, so concurrent calls are safe.
func (e *Engine) Collect(ctx context.Context, opts RunOptions) (*Summary, error) {
	sched, err := NewScheduler(e.Fetcher, e.Extractor, opts.Scheduler)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if opts.Controller.Logger == nil {
		opts.Controller.Logger = e.Logger
	}
	ctrl, err := NewController(sched, opts.Controller)
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}
	return ctrl.Run(ctx, opts.Max)
}

// Run executes a full CLI run: collect, persist, report. It returns the
// process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	summary, err := e.Collect(ctx, RunOptionsFromConfig(cfg))
	fatal := err != nil && !isInterrupted(err, summary)
	if err != nil {
		if fatal {
			e.Logger.Error("run failed", "error", err)
		} else {
			e.Logger.Warn("run interrupted, keeping collected tenders", "error", err, "records", summary.Count())
		}
	}

	report := NewReport(summary, err)
	if err != nil && !fatal {
		report.Partial = true
		report.Error = ""
	}

	if !fatal {
		// Persist with a fresh context so an expired run deadline does not
		// discard what was already collected.
		dest, serr := e.persist(context.WithoutCancel(ctx), cfg, summary.Records)
		report.Destination = dest
		if serr != nil {
			fatal = true
			report.Error = serr.Error()
			e.Logger.Error("persisting tenders failed", "error", serr)
		}
	}

	code := exitCodeForRun(fatal, report.Partial)
	report.ExitCode = code

	var records []tender.Record
	if summary != nil && !fatal {
		records = summary.Records
	}
	if serr := e.stream(context.WithoutCancel(ctx), cfg, records, report); serr != nil {
		e.Logger.Error("writing output stream failed", "error", serr)
		code = exitCodeForRun(true, false)
	}

	if !cfg.Output.NoConsole {
		if perr := output.NewConsoleReporter(e.Stderr).Print(report); perr != nil {
			e.Logger.Warn("printing summary failed", "error", perr)
		}
	}
	return code
}

// isInterrupted reports whether err only means the run was cut short after
// some tenders were collected.
func isInterrupted(err error, summary *Summary) bool {
	if summary == nil || summary.Count() == 0 {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (e *Engine) persist(ctx context.Context, cfg *config.Config, records []tender.Record) (string, error) {
	open := e.openStore
	if open == nil {
		open = openStore
	}
	sink, dest, err := open(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %w", tender.ErrSinkFailure, err)
	}

	store := output.NewManager()
	if err := store.AddSink(sink); err != nil {
		_ = sink.Close()
		return "", fmt.Errorf("%w: %w", tender.ErrSinkFailure, err)
	}
	werr := store.Write(ctx, records)
	cerr := store.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return dest, err
	}
	e.Logger.Info("tenders saved", "destination", dest, "count", len(records))
	return dest, nil
}

func (e *Engine) stream(ctx context.Context, cfg *config.Config, records []tender.Record, report output.Report) error {
	if len(cfg.Output.Emit) == 0 {
		return nil
	}
	mgr, err := setupOutputManager(cfg, e.Stdout)
	if err != nil {
		return err
	}
	werr := mgr.Write(ctx, records)
	rerr := mgr.WriteReport(report)
	cerr := mgr.Close()
	return errors.Join(werr, rerr, cerr)
}

func setupOutputManager(cfg *config.Config, stdout io.Writer) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Emit Sinks (additional structured streams)
	for _, emit := range cfg.Output.Emit {
		es, err := output.NewEmitSink(stdout, emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// openStore opens the primary sink selected by --format and describes where
// it writes.
func openStore(ctx context.Context, cfg *config.Config) (output.Sink, string, error) {
	switch cfg.Output.Format {
	case config.FormatJSON, config.FormatNDJSON:
		s, err := output.NewFileSink(cfg.Output.Path, cfg.Output.Format)
		if err != nil {
			return nil, "", err
		}
		return s, cfg.Output.Path, nil
	case config.FormatSQLite:
		s, err := output.NewSQLiteSink(ctx, cfg.Output.Path)
		if err != nil {
			return nil, "", err
		}
		return s, cfg.Output.Path, nil
	case config.FormatPostgres:
		s, err := output.NewPostgresSink(ctx, cfg.Output.DSN)
		if err != nil {
			return nil, "", err
		}
		return s, "postgres", nil
	default:
		return nil, "", fmt.Errorf("unsupported output format: %s", cfg.Output.Format)
	}
}
