package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"tenderscan/internal/engine"
	"tenderscan/internal/extract"
	"tenderscan/internal/fetcher"
	"tenderscan/internal/tender"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pageQuiet bool

var pageCmd = &cobra.Command{
	Use:   "page [number]",
	Short: "Show the tenders on one listing page",
	Long: `Fetch a single listing page and print the tenders found on it.

Pages are numbered from 1. Nothing is saved and no retries are made, which
makes this useful for checking what the site currently returns.

Examples:
  tenderscan page 1
  tenderscan page 7 --quiet

Output:
  A vertical list of tenders:
    ----------------------------------------
    TENDER: {TITLE}
    ----------------------------------------
    {COMPANY}
    {URL}
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < int(tender.FirstPage) {
			return fmt.Errorf("invalid page number %q: must be an integer >= 1", args[0])
		}

		f, err := fetcher.NewFetcher(cfg.Source.BaseURL,
			fetcher.WithUserAgent(cfg.Source.UserAgent),
			fetcher.WithTimeout(cfg.Source.RequestTimeout),
			fetcher.WithLimiter(fetcher.NewLimiter(cfg.Source.Rate, 1)),
			fetcher.WithLogger(logger, cfg.Runtime.Verbose),
		)
		if err != nil {
			return err
		}
		x, err := extract.New(cfg.Source.BaseURL)
		if err != nil {
			return err
		}

		records, err := inspectPage(cmd.Context(), f, x, tender.PageID(n))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "page %d has no tenders\n", n)
			return nil
		}
		for _, r := range records {
			if pageQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), r.URL)
			} else {
				printTender(cmd.OutOrStdout(), r)
			}
		}
		return nil
	},
}

func inspectPage(ctx context.Context, f engine.PageFetcher, x engine.RecordExtractor, page tender.PageID) ([]tender.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := f.Fetch(ctx, page)
	if err != nil {
		return nil, err
	}
	records, err := x.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return records, nil
}

func printTender(w io.Writer, r tender.Record) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "TENDER: %s\n", r.Title)
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, r.Company)
	fmt.Fprintln(w, r.URL)

	if r.DateCreated != "" || r.DateDeadline != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Created:  %s\n", r.DateCreated)
		fmt.Fprintf(w, "  Deadline: %s\n", r.DateDeadline)
	}
	if r.Category != nil {
		fmt.Fprintf(w, "  Category: %s\n", *r.Category)
	}
	if r.Description != nil {
		fmt.Fprintf(w, "  %s\n", *r.Description)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(pageCmd)
	pageCmd.Flags().BoolVarP(&pageQuiet, "quiet", "q", false, "Only print tender URLs")
	addSourceFlags(pageCmd.Flags(), cfg)
}
