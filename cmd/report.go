// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/pr-stats/internal/config"
	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/gateway"
	"github.com/naka-gawa/pr-stats/internal/report"
	"github.com/naka-gawa/pr-stats/internal/usecase"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analyzes closed pull requests and writes CSV reports",
	Long: `Analyzes the closed pull requests of every configured repository and writes
engagement, metrics and top contributor reports as CSV files.

Configuration is read from flags, environment variables (GITHUB_TOKEN, REPOSITORIES,
DAYS, DATE_RANGE, EXCLUDED_USERS, OUTPUT_DIR, CONCURRENCY, GITHUB_BASE_URL) and an
optional .env file, in that order of precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		v := config.NewViper()
		for key, flag := range map[string]string{
			config.KeyRepositories: "repositories",
			config.KeyDays:         "days",
			config.KeyDateRange:    "date-range",
			config.KeyExcluded:     "exclude",
			config.KeyOutputDir:    "output-dir",
			config.KeyConcurrency:  "concurrency",
			config.KeyBaseURL:      "base-url",
		} {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.ReadEnvFile(v, envFile); err != nil {
			return err
		}
		cfg, err := config.Load(v, time.Now())
		if err != nil {
			return err
		}

		return runReport(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// runReport analyzes every repository, writes the reports and prints a summary.
// Failed repositories are reported on errOut and never fail the run.
func runReport(ctx context.Context, cfg *config.Config, logger *log.Logger, out, errOut io.Writer) error {
	opts := []gateway.Option{gateway.WithRateObserver(rateObserver(logger, errOut))}
	if cfg.BaseURL != "" {
		opts = append(opts, gateway.WithBaseURL(cfg.BaseURL))
	}

	// Inject dependencies and run the main business logic.
	githubGateway, err := gateway.NewGitHubGateway(cfg.Token, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	analyzer := usecase.NewAnalyzer(githubGateway, usecase.AnalyzerConfig{
		Window:      cfg.Window,
		Excluded:    cfg.Excluded,
		Concurrency: cfg.Concurrency,
	}, logger)

	results := analyzer.AnalyzeAll(ctx, cfg.Repositories)
	for _, r := range results {
		if r.Err != nil {
			printFailure(errOut, r)
		}
	}

	aggregator := usecase.NewAggregator(logger)
	aggregator.AddResults(results)
	rankings := aggregator.Rankings()

	writer, err := report.NewWriter(cfg.OutputDir)
	if err != nil {
		return err
	}
	paths, err := writer.Write(results, rankings)
	if err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}

	if err := report.PrintSummary(out, results, rankings); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}
	for _, path := range paths {
		fmt.Fprintf(errOut, "💾 Wrote %s\n", path)
	}
	return nil
}

// rateObserver logs the quota after every page and warns once it is exhausted.
// It is called from every repository's goroutine, so writes to errOut are serialized.
func rateObserver(logger *log.Logger, errOut io.Writer) gateway.RateObserver {
	warn := color.New(color.FgYellow)
	var mu sync.Mutex
	return func(rt domain.RateTelemetry) {
		logger.Printf("[%s] page %d: rate limit %d, remaining %d, used %d, resets at %s",
			rt.Repository, rt.Page, rt.Limit, rt.Remaining, rt.Used, rt.Reset.Format(time.RFC3339))
		if rt.Exhausted() {
			mu.Lock()
			defer mu.Unlock()
			warn.Fprintf(errOut, "⚠️  Rate limit exhausted while fetching %s (limit %d, used %d), resets at %s\n",
				rt.Repository, rt.Limit, rt.Used, rt.Reset.Format(time.RFC3339))
		}
	}
}

// printFailure prints why a repository was skipped, with the API response details when available.
func printFailure(errOut io.Writer, r domain.RepositoryResult) {
	red := color.New(color.FgRed)
	red.Fprintf(errOut, "❌ %s: %v\n", r.Raw, r.Err)

	var domainErr *domain.Error
	if !errors.As(r.Err, &domainErr) {
		return
	}
	if domainErr.Status != 0 {
		fmt.Fprintf(errOut, "   status: %d\n", domainErr.Status)
	}
	if len(domainErr.Header) > 0 {
		keys := make([]string, 0, len(domainErr.Header))
		for k := range domainErr.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(errOut, "   header: %s: %s\n", k, strings.Join(domainErr.Header[k], ", "))
		}
	}
	if domainErr.Body != "" {
		fmt.Fprintf(errOut, "   body: %s\n", domainErr.Body)
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("repositories", "r", "", "Comma-separated repository URLs")
	reportCmd.Flags().StringP("days", "d", "", "Analyze pull requests updated in the last N days")
	reportCmd.Flags().String("date-range", "", "Analyze pull requests updated between two dates (YYYY-MM-DD,YYYY-MM-DD); overrides --days")
	reportCmd.Flags().StringP("exclude", "e", "", "Comma-separated usernames to leave out of every report")
	reportCmd.Flags().StringP("output-dir", "o", ".", "Directory the CSV reports are written to")
	reportCmd.Flags().Int("concurrency", 0, "Maximum number of repositories analyzed at once (0 = no limit)")
	reportCmd.Flags().String("base-url", "", "GitHub Enterprise base URL, e.g. https://ghe.example.com/")
	reportCmd.Flags().String("env-file", "", "Dotenv file to read configuration from (default .env when present)")
}
