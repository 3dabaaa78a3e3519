// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// Metric names, in the order they are reported for every repository.
const (
	MetricCycleTime          = "Average Cycle Time (hours)"
	MetricReviewTime         = "Average Review Time (hours)"
	MetricAdjustedReviewTime = "Adjusted Review Time (hours)"
	MetricPRSize             = "Average PR Size (lines)"
	MetricFilesPerPR         = "Average Files per PR"
)

// PullRequestSummary is a closed pull request as returned by the list endpoint.
type PullRequestSummary struct {
	Number    int
	Author    string // empty when the account no longer exists
	CreatedAt time.Time
	UpdatedAt time.Time
	MergedAt  *time.Time
}

// ReviewEvent is a single submitted review.
type ReviewEvent struct {
	Reviewer    string
	SubmittedAt time.Time
}

// PullRequestDetail holds the size information of a pull request.
type PullRequestDetail struct {
	Additions    int
	Deletions    int
	ChangedFiles int
}

// RepositoryAnalysis is the result of analyzing a single repository.
// It is the core domain entity of this application.
type RepositoryAnalysis struct {
	Repository RepositoryRef
	PRAuthors  *ContributorTally
	Reviewers  *ContributorTally

	AverageCycleTime   float64
	AverageReviewTime  float64
	AdjustedReviewTime float64
	AveragePRSize      float64
	AverageFilesPerPR  float64

	// PullRequests is the number of closed pull requests found in the window.
	PullRequests int
}

// Metric is one named value of the metrics report.
type Metric struct {
	Name  string
	Value float64
}

// Metrics returns the five repository metrics in report order.
func (a *RepositoryAnalysis) Metrics() []Metric {
	return []Metric{
		{Name: MetricCycleTime, Value: a.AverageCycleTime},
		{Name: MetricReviewTime, Value: a.AverageReviewTime},
		{Name: MetricAdjustedReviewTime, Value: a.AdjustedReviewTime},
		{Name: MetricPRSize, Value: a.AveragePRSize},
		{Name: MetricFilesPerPR, Value: a.AverageFilesPerPR},
	}
}

// RepositoryResult pairs a configured repository with the outcome of its analysis.
// Analysis is nil when the repository could not be analyzed; Err then says why.
type RepositoryResult struct {
	Raw      string
	Ref      RepositoryRef
	Analysis *RepositoryAnalysis
	Err      error
}

// Score is a contributor's accumulated score across all analyzed repositories.
type Score struct {
	Identity string
	Email    string
	Value    int
}

// Rankings holds the full ranked lists, highest score first.
type Rankings struct {
	Committers []Score
	Reviewers  []Score
	Overall    []Score
}

// RateTelemetry is the rate limit state reported by the API alongside a page of results.
type RateTelemetry struct {
	Repository RepositoryRef
	Page       int
	Limit      int
	Remaining  int
	Used       int
	Reset      time.Time
}

// Exhausted reports whether the quota has run out until Reset.
// Responses without rate limit headers report a zero Limit and are never exhausted.
func (r RateTelemetry) Exhausted() bool {
	return r.Limit > 0 && r.Remaining == 0
}
