package usecase

import (
	"context"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// ReviewSource provides the reviews of a pull request in submission order.
type ReviewSource interface {
	FetchReviews(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.ReviewEvent, error)
}

// CollectReviewTimes returns, for every pull request that has been reviewed, the hours
// between its creation and its first submitted review. Unreviewed pull requests are
// left out of the sample rather than counted as zero.
func CollectReviewTimes(ctx context.Context, source ReviewSource, repo domain.RepositoryRef, prs []domain.PullRequestSummary) ([]float64, error) {
	samples := make([]float64, 0, len(prs))
	for _, pr := range prs {
		reviews, err := source.FetchReviews(ctx, repo, pr.Number)
		if err != nil {
			return nil, err
		}
		if first, ok := firstSubmitted(reviews); ok {
			samples = append(samples, first.SubmittedAt.Sub(pr.CreatedAt).Hours())
		}
	}
	return samples, nil
}

// firstSubmitted skips pending reviews, which carry no submission time.
func firstSubmitted(reviews []domain.ReviewEvent) (domain.ReviewEvent, bool) {
	for _, r := range reviews {
		if !r.SubmittedAt.IsZero() {
			return r, true
		}
	}
	return domain.ReviewEvent{}, false
}

// fetchedReviews serves reviews that were already retrieved and falls back to
// the upstream source for anything else.
type fetchedReviews struct {
	byNumber map[int][]domain.ReviewEvent
	fallback ReviewSource
}

func (f fetchedReviews) FetchReviews(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.ReviewEvent, error) {
	if reviews, ok := f.byNumber[number]; ok {
		return reviews, nil
	}
	return f.fallback.FetchReviews(ctx, repo, number)
}
