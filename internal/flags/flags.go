package flags

// Package flags defines canonical CLI flag names shared across the CLI and the
// environment binding. Keeping these as constants helps avoid drift between
// Cobra flag wiring and the TENDERSCAN_* variables derived from them.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().IntVar(&cfg.Run.Max, flags.FlagMax, 100, "...")
//	arg := "--" + flags.FlagMax
const (
	// Global
	FlagVerbose   = "verbose"
	FlagLogFormat = "log-format"

	// Source
	FlagBaseURL        = "base-url"
	FlagUserAgent      = "user-agent"
	FlagRequestTimeout = "request-timeout"
	FlagRate           = "rate"

	// Run
	FlagMax          = "max"
	FlagMaxPages     = "max-pages"
	FlagPageSizeHint = "page-size-hint"

	// Output
	FlagOutput    = "output"
	FlagFormat    = "format"
	FlagDSN       = "dsn"
	FlagEmit      = "emit"
	FlagNoConsole = "no-console"

	// Runtime
	FlagConcurrency  = "concurrency"
	FlagRetries      = "retries"
	FlagRetryBackoff = "retry-backoff"
	FlagTimeout      = "timeout"

	// Server
	FlagAddr            = "addr"
	FlagMaxTenders      = "max-tenders"
	FlagShutdownTimeout = "shutdown-timeout"
)
