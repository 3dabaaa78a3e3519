// Package report turns analysis results into CSV files and a console summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// Output file names.
const (
	EngagementFile      = "engagement_report.csv"
	MetricsFile         = "metrics_report.csv"
	TopContributorsFile = "top_contributors_report.csv"
)

// Row limits of the top contributors report.
const (
	TopCommitters = 5
	TopReviewers  = 5
	TopOverall    = 10
)

// Category labels.
const (
	CategoryAuthors       = "PR Authors"
	CategoryReviewers     = "Reviewers"
	CategoryTopCommitters = "Top Committers"
	CategoryTopReviewers  = "Top Reviewers"
	CategoryTopOverall    = "Top Overall"
)

// Writer writes the three CSV reports into a directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer for dir, creating the directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// Write writes all reports and returns the paths written.
// Repositories without an analysis produce no rows.
func (w *Writer) Write(results []domain.RepositoryResult, rankings domain.Rankings) ([]string, error) {
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{EngagementFile, func(out io.Writer) error { return WriteEngagement(out, results) }},
		{MetricsFile, func(out io.Writer) error { return WriteMetrics(out, results) }},
		{TopContributorsFile, func(out io.Writer) error { return WriteTopContributors(out, rankings) }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(w.dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := write(file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteEngagement writes one row per contributor and role of every analyzed repository.
func WriteEngagement(out io.Writer, results []domain.RepositoryResult) error {
	w := csv.NewWriter(out)
	_ = w.Write([]string{"Repository", "Category", "Username", "Email", "Count"})
	for _, r := range results {
		if r.Analysis == nil {
			continue
		}
		repo := r.Analysis.Repository.String()
		for _, rec := range r.Analysis.PRAuthors.Records() {
			_ = w.Write([]string{repo, CategoryAuthors, rec.Identity, rec.Email, strconv.Itoa(rec.Count)})
		}
		for _, rec := range r.Analysis.Reviewers.Records() {
			_ = w.Write([]string{repo, CategoryReviewers, rec.Identity, rec.Email, strconv.Itoa(rec.Count)})
		}
	}
	w.Flush()
	return w.Error()
}

// WriteMetrics writes the five metrics of every analyzed repository.
func WriteMetrics(out io.Writer, results []domain.RepositoryResult) error {
	w := csv.NewWriter(out)
	_ = w.Write([]string{"Repository", "Metric", "Value"})
	for _, r := range results {
		if r.Analysis == nil {
			continue
		}
		repo := r.Analysis.Repository.String()
		for _, m := range r.Analysis.Metrics() {
			_ = w.Write([]string{repo, m.Name, FormatValue(m.Value)})
		}
	}
	w.Flush()
	return w.Error()
}

// WriteTopContributors writes the truncated rankings.
func WriteTopContributors(out io.Writer, rankings domain.Rankings) error {
	w := csv.NewWriter(out)
	_ = w.Write([]string{"Category", "Username", "Email", "Score"})
	sections := []struct {
		category string
		scores   []domain.Score
		limit    int
	}{
		{CategoryTopCommitters, rankings.Committers, TopCommitters},
		{CategoryTopReviewers, rankings.Reviewers, TopReviewers},
		{CategoryTopOverall, rankings.Overall, TopOverall},
	}
	for _, s := range sections {
		for _, score := range top(s.scores, s.limit) {
			_ = w.Write([]string{s.category, score.Identity, score.Email, strconv.Itoa(score.Value)})
		}
	}
	w.Flush()
	return w.Error()
}

// FormatValue renders a metric with two decimals.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func top(scores []domain.Score, n int) []domain.Score {
	if len(scores) > n {
		return scores[:n]
	}
	return scores
}
