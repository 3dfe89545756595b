package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Output formats accepted by --format.
const (
	FormatJSON     = "json"
	FormatNDJSON   = "ndjson"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Log formats accepted by --log-format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep these in sync:
	// - CLI flags in internal/cli/fetch.go and internal/cli/serve.go
	// - flag names in internal/flags
	Source  Source
	Run     Run
	Output  Output
	Runtime Runtime
	Server  Server
}

type Source struct {
	// BaseURL is the first listing page; later pages add a page query parameter
	// (see --base-url).
	BaseURL string

	// UserAgent is sent with every page request (see --user-agent).
	UserAgent string

	// RequestTimeout bounds a single page fetch (see --request-timeout).
	// A request that runs out of time counts as a transport failure.
	RequestTimeout time.Duration

	// Rate limits page requests per second across all workers (see --rate).
	// 0 means unlimited.
	Rate float64
}

type Run struct {
	// Max is the number of unique tenders to collect (see --max). Must be >= 1.
	Max int

	// MaxPages bounds how many listing pages one run may request (see --max-pages).
	MaxPages int

	// PageSizeHint is the expected tenders per page before any page has been
	// seen (see --page-size-hint).
	PageSizeHint int
}

type Output struct {
	// Path is the output file for json, ndjson and sqlite formats (see --output).
	Path string

	// Format selects the sink (see --format).
	// Allowed values: json, ndjson, sqlite, postgres. If empty, it is inferred
	// from the --output file extension.
	Format string

	// DSN is the PostgreSQL connection string for --format postgres (see --dsn).
	DSN string

	// Emit writes the collected tenders to stdout as well (see --emit).
	// Allowed values: json, ndjson.
	Emit []string

	// NoConsole suppresses the human-readable run summary (see --no-console).
	NoConsole bool
}

type Runtime struct {
	// Concurrency is the number of pages fetched at once (see --concurrency).
	// Must be >= 1.
	Concurrency int

	// Retries is how many extra attempts a transient page failure gets
	// (see --retries).
	Retries int

	// RetryBackoff is the wait before the first retry; it doubles afterwards
	// (see --retry-backoff).
	RetryBackoff time.Duration

	// Timeout bounds the whole run (see --timeout). Must be > 0.
	Timeout time.Duration

	// Verbose enables debug logging and full error details.
	Verbose bool

	// LogFormat selects the log handler: text or json (see --log-format).
	LogFormat string
}

type Server struct {
	// Addr is the listen address of the HTTP API (see --addr).
	Addr string

	// DefaultTenders is used when a request omits max_tenders.
	DefaultTenders int

	// MaxTenders caps max_tenders per request (see --max-tenders).
	MaxTenders int

	// ShutdownTimeout bounds graceful shutdown (see --shutdown-timeout).
	ShutdownTimeout time.Duration
}

const (
	DefaultBaseURL   = "https://www.b2b-center.ru/market"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultOutput    = "tenders.json"

	// MaxRetries bounds --retries.
	MaxRetries = 10
)

func New() *Config {
	return &Config{
		Source: Source{
			BaseURL:        DefaultBaseURL,
			UserAgent:      DefaultUserAgent,
			RequestTimeout: 10 * time.Second,
		},
		Run: Run{
			Max:          100,
			MaxPages:     50,
			PageSizeHint: 20,
		},
		Output: Output{
			Path: DefaultOutput,
		},
		Runtime: Runtime{
			Concurrency:  5,
			Retries:      2,
			RetryBackoff: 500 * time.Millisecond,
			Timeout:      10 * time.Minute,
			LogFormat:    LogFormatText,
		},
		Server: Server{
			Addr:            ":8000",
			DefaultTenders:  100,
			MaxTenders:      1000,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}

	// Run validation
	if c.Run.Max <= 0 {
		return errors.New("--max must be >= 1")
	}
	if c.Run.MaxPages <= 0 {
		return errors.New("--max-pages must be >= 1")
	}
	if c.Run.PageSizeHint <= 0 {
		return errors.New("--page-size-hint must be >= 1")
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Retries < 0 || c.Runtime.Retries > MaxRetries {
		return fmt.Errorf("--retries must be between 0 and %d", MaxRetries)
	}
	if c.Runtime.RetryBackoff < 0 {
		return errors.New("--retry-backoff must be >= 0")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	c.Runtime.LogFormat = normalizeEnumValue(c.Runtime.LogFormat)
	if c.Runtime.LogFormat == "" {
		c.Runtime.LogFormat = LogFormatText
	}
	if c.Runtime.LogFormat != LogFormatText && c.Runtime.LogFormat != LogFormatJSON {
		return fmt.Errorf("unsupported --log-format: %s (must be one of: text, json)", c.Runtime.LogFormat)
	}

	if err := c.validateOutput(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateSource() error {
	c.Source.BaseURL = strings.TrimSpace(c.Source.BaseURL)
	if c.Source.BaseURL == "" {
		return errors.New("--base-url must not be empty")
	}
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid --base-url value: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid --base-url value %q: must be an absolute http(s) URL", c.Source.BaseURL)
	}
	if c.Source.RequestTimeout <= 0 {
		return errors.New("--request-timeout must be > 0")
	}
	if c.Source.Rate < 0 {
		return errors.New("--rate must be >= 0")
	}
	return nil
}

func (c *Config) validateOutput() error {
	c.Output.Emit = splitCommaList(c.Output.Emit)
	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != FormatJSON && v != FormatNDJSON {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", emit)
		}
		c.Output.Emit[i] = v
	}

	c.Output.Path = strings.TrimSpace(c.Output.Path)
	c.Output.Format = normalizeEnumValue(c.Output.Format)
	if c.Output.Format == "" {
		format, err := InferFormat(c.Output.Path)
		if err != nil {
			return err
		}
		c.Output.Format = format
	}

	switch c.Output.Format {
	case FormatJSON, FormatNDJSON, FormatSQLite:
		if c.Output.Path == "" {
			return fmt.Errorf("--output is required for --format %s", c.Output.Format)
		}
	case FormatPostgres:
		c.Output.DSN = strings.TrimSpace(c.Output.DSN)
		if c.Output.DSN == "" {
			return errors.New("--dsn is required for --format postgres")
		}
	default:
		return fmt.Errorf("unsupported --format: %s (must be one of: json, ndjson, sqlite, postgres)", c.Output.Format)
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("--addr must not be empty")
	}
	if c.Server.MaxTenders <= 0 {
		return errors.New("--max-tenders must be >= 1")
	}
	if c.Server.DefaultTenders <= 0 {
		return errors.New("default tenders must be >= 1")
	}
	if c.Server.DefaultTenders > c.Server.MaxTenders {
		c.Server.DefaultTenders = c.Server.MaxTenders
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("--shutdown-timeout must be > 0")
	}
	return nil
}

// InferFormat maps an output path to a format by its file extension.
func InferFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return FormatJSON, nil
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	case "":
		return "", errors.New("cannot infer output format from file extension (missing extension); use --format")
	default:
		return "", fmt.Errorf("cannot infer output format from file extension %q; use --format", ext)
	}
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
