// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/gateway"
)

// AnalyzerConfig holds the run-wide settings shared by every repository analysis.
type AnalyzerConfig struct {
	Window   domain.TimeWindow
	Excluded []string
	// Concurrency bounds the number of repositories analyzed at once; 0 means no limit.
	Concurrency int
}

// Analyzer is the use case for analyzing the pull requests of repositories.
// It orchestrates the fetching of pull requests, reviews and sizes.
type Analyzer struct {
	fetcher     gateway.Fetcher
	emails      *EmailDirectory
	window      domain.TimeWindow
	excluded    map[string]struct{}
	concurrency int
	logger      *log.Logger
}

// NewAnalyzer creates a new Analyzer instance.
func NewAnalyzer(fetcher gateway.Fetcher, cfg AnalyzerConfig, logger *log.Logger) *Analyzer {
	excluded := make(map[string]struct{}, len(cfg.Excluded))
	for _, id := range cfg.Excluded {
		excluded[id] = struct{}{}
	}
	return &Analyzer{
		fetcher:     fetcher,
		emails:      NewEmailDirectory(fetcher, logger),
		window:      cfg.Window,
		excluded:    excluded,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// AnalyzeAll analyzes every configured repository concurrently. A repository that
// fails is recorded with its error and does not affect the others. Results are
// returned in the order of rawRefs.
func (a *Analyzer) AnalyzeAll(ctx context.Context, rawRefs []string) []domain.RepositoryResult {
	a.logger.Printf("Usecase: Analyzing %d repositories...", len(rawRefs))
	results := make([]domain.RepositoryResult, len(rawRefs))

	// Plain group: a failed repository must not cancel the others.
	var eg errgroup.Group
	if a.concurrency > 0 {
		eg.SetLimit(a.concurrency)
	}
	for i, raw := range rawRefs {
		eg.Go(func() error {
			results[i] = a.analyzeOne(ctx, raw)
			return nil
		})
	}
	_ = eg.Wait()

	a.logger.Println("Usecase: All repositories processed.")
	return results
}

func (a *Analyzer) analyzeOne(ctx context.Context, raw string) domain.RepositoryResult {
	result := domain.RepositoryResult{Raw: raw}
	ref, err := domain.ParseRepositoryRef(raw)
	if err != nil {
		result.Err = err
		a.logger.Printf("Usecase: Skipping %q: %v", raw, err)
		return result
	}
	result.Ref = ref

	analysis, err := a.AnalyzeRepository(ctx, ref)
	if err != nil {
		result.Err = fmt.Errorf("failed to analyze %s: %w", ref, err)
		a.logger.Printf("Usecase: %v", result.Err)
		return result
	}
	result.Analysis = analysis
	return result
}

// AnalyzeRepository computes engagement and timing metrics for one repository.
// Pull requests are processed one after another; the reviews of a single pull
// request are attributed concurrently.
func (a *Analyzer) AnalyzeRepository(ctx context.Context, repo domain.RepositoryRef) (*domain.RepositoryAnalysis, error) {
	prs, err := a.fetcher.FetchClosedPullRequests(ctx, repo, a.window)
	if err != nil {
		return nil, err
	}

	authors := domain.NewContributorTally()
	reviewers := domain.NewContributorTally()
	reviewsByPR := make(map[int][]domain.ReviewEvent, len(prs))
	var cycleTimes, sizes, fileCounts []float64

	for _, pr := range prs {
		if a.included(pr.Author) {
			authors.Increment(pr.Author, a.emails.Lookup(ctx, pr.Author))
		}

		reviews, err := a.fetcher.FetchReviews(ctx, repo, pr.Number)
		if err != nil {
			return nil, err
		}
		reviewsByPR[pr.Number] = reviews
		if err := a.attributeReviewers(ctx, reviewers, reviews); err != nil {
			return nil, err
		}

		if pr.MergedAt != nil {
			cycleTimes = append(cycleTimes, pr.MergedAt.Sub(pr.CreatedAt).Hours())
		}

		detail, err := a.fetcher.FetchPullRequestDetail(ctx, repo, pr.Number)
		if err != nil {
			return nil, err
		}
		if lines := detail.Additions + detail.Deletions; lines > 0 {
			sizes = append(sizes, float64(lines))
		}
		if detail.ChangedFiles > 0 {
			fileCounts = append(fileCounts, float64(detail.ChangedFiles))
		}
	}

	reviewTimes, err := CollectReviewTimes(ctx, fetchedReviews{byNumber: reviewsByPR, fallback: a.fetcher}, repo, prs)
	if err != nil {
		return nil, err
	}
	reviewSummary := Summarize(reviewTimes)

	a.logger.Printf("Usecase: [%s] %d pull requests, %d authors, %d reviewers.", repo, len(prs), authors.Len(), reviewers.Len())
	return &domain.RepositoryAnalysis{
		Repository:         repo,
		PRAuthors:          authors,
		Reviewers:          reviewers,
		AverageCycleTime:   Mean(cycleTimes),
		AverageReviewTime:  reviewSummary.Mean,
		AdjustedReviewTime: reviewSummary.MeanWithoutOutliers,
		AveragePRSize:      Mean(sizes),
		AverageFilesPerPR:  Mean(fileCounts),
		PullRequests:       len(prs),
	}, nil
}

// attributeReviewers counts every review towards its author. It returns once all
// reviews of the pull request have been attributed.
func (a *Analyzer) attributeReviewers(ctx context.Context, reviewers *domain.ContributorTally, reviews []domain.ReviewEvent) error {
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, review := range reviews {
		if !a.included(review.Reviewer) {
			continue
		}
		eg.Go(func() error {
			email := a.emails.Lookup(egCtx, review.Reviewer)
			mu.Lock()
			defer mu.Unlock()
			reviewers.Increment(review.Reviewer, email)
			return nil
		})
	}
	return eg.Wait()
}

func (a *Analyzer) included(identity string) bool {
	if identity == "" {
		return false
	}
	_, excluded := a.excluded[identity]
	return !excluded
}
