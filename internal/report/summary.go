package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// PrintSummary prints the per-repository metrics and the overall ranking as tables,
// followed by the repositories that could not be analyzed.
func PrintSummary(out io.Writer, results []domain.RepositoryResult, rankings domain.Rankings) error {
	metrics := tablewriter.NewWriter(out)
	// Single-word labels: the header formatter splits and upper-cases anything else.
	metrics.Header([]string{"Repository", "Pulls", "Cycle", "Review", "Adjusted", "Size", "Files"})
	metrics.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var rows [][]string
	for _, r := range results {
		if r.Analysis == nil {
			continue
		}
		a := r.Analysis
		rows = append(rows, []string{
			a.Repository.String(),
			strconv.Itoa(a.PullRequests),
			FormatValue(a.AverageCycleTime),
			FormatValue(a.AverageReviewTime),
			FormatValue(a.AdjustedReviewTime),
			FormatValue(a.AveragePRSize),
			FormatValue(a.AverageFilesPerPR),
		})
	}
	if err := metrics.Bulk(rows); err != nil {
		return err
	}
	if err := metrics.Render(); err != nil {
		return err
	}

	overall := tablewriter.NewWriter(out)
	overall.Header([]string{"Rank", "Username", "Email", "Score"})
	var ranked [][]string
	for i, s := range top(rankings.Overall, TopOverall) {
		ranked = append(ranked, []string{strconv.Itoa(i + 1), s.Identity, s.Email, strconv.Itoa(s.Value)})
	}
	if err := overall.Bulk(ranked); err != nil {
		return err
	}
	if err := overall.Render(); err != nil {
		return err
	}

	warn := color.New(color.FgYellow)
	for _, r := range results {
		if r.Analysis == nil {
			if _, err := warn.Fprintf(out, "⚠️  %s was skipped: %v\n", r.Raw, r.Err); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(out, "Analyzed %d of %d repositories.\n", countAnalyzed(results), len(results))
	return err
}

func countAnalyzed(results []domain.RepositoryResult) int {
	n := 0
	for _, r := range results {
		if r.Analysis != nil {
			n++
		}
	}
	return n
}
