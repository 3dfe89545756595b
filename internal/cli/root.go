package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"tenderscan/internal/config"
	"tenderscan/internal/flags"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TENDERSCAN"

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var (
	cfg    = config.New()
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "tenderscan",
	Short: "Collect tender listings from B2B-Center",
	Long: `tenderscan collects tender listings from the B2B-Center marketplace.

It walks the paginated listing concurrently, keeps the listing order, drops
duplicate tenders and stops as soon as the requested number is reached.

Examples:
	# Show available commands and global flags
	tenderscan --help

	# Collect 100 tenders into tenders.json
	tenderscan fetch --max 100

	# Serve the HTTP API
	tenderscan serve --addr :8000

	# Print the tenders found on one listing page
	tenderscan page 3

	# Print build info
	tenderscan version

Environment:
	Every flag can also be set as TENDERSCAN_<FLAG>, with dashes replaced by
	underscores (for example TENDERSCAN_MAX_PAGES=20). Flags given on the
	command line take precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every page request and full error details)")
	rootCmd.PersistentFlags().StringVar(&cfg.Runtime.LogFormat, flags.FlagLogFormat, config.LogFormatText, "Log format: text|json (default: text)")
}

// initConfig applies TENDERSCAN_* environment variables to flags that were
// not set on the command line, then builds the logger.
func initConfig(cmd *cobra.Command, args []string) error {
	if err := bindEnv(cmd.Flags()); err != nil {
		return err
	}
	logger = newLogger(os.Stderr, cfg.Runtime.LogFormat, cfg.Runtime.Verbose)
	slog.SetDefault(logger)
	return nil
}

func bindEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "help" {
			return
		}
		if err := v.BindEnv(f.Name); err != nil {
			errs = append(errs, err)
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", envName(f.Name), err))
		}
	})
	return errors.Join(errs...)
}

func envName(flag string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), config.LogFormatJSON) {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
