// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// pageSize is the number of items requested per page. A shorter page marks the last one.
const pageSize = 100

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	FetchClosedPullRequests(ctx context.Context, repo domain.RepositoryRef, window domain.TimeWindow) ([]domain.PullRequestSummary, error)
	FetchReviews(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.ReviewEvent, error)
	FetchPullRequestDetail(ctx context.Context, repo domain.RepositoryRef, number int) (domain.PullRequestDetail, error)
	FetchUserEmail(ctx context.Context, login string) (string, error)
}

// RateObserver receives the rate limit state after every page of pull requests.
type RateObserver func(domain.RateTelemetry)

// Option configures a GitHubGateway.
type Option func(*options)

type options struct {
	baseURL  string
	observer RateObserver
}

// WithBaseURL points the gateway at a GitHub Enterprise server, e.g. "https://ghe.example.com/".
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithRateObserver registers a callback for rate limit telemetry.
func WithRateObserver(observer RateObserver) Option {
	return func(o *options) { o.observer = observer }
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	observer      RateObserver
	logger        *log.Logger
}

// userEmailQuery looks up the public email of an account.
type userEmailQuery struct {
	User struct {
		Email string
	} `graphql:"user(login: $login)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger, opts ...Option) (*GitHubGateway, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// The waiter only sleeps on secondary rate limits; an exhausted primary quota
	// still fails the request.
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if o.baseURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", o.baseURL, err)
		}
		graphqlURL, err := enterpriseGraphQLURL(o.baseURL)
		if err != nil {
			return nil, err
		}
		graphqlClient = githubv4.NewEnterpriseClient(graphqlURL, httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		observer:      o.observer,
		logger:        logger,
	}, nil
}

// enterpriseGraphQLURL derives "https://host/api/graphql" from a GitHub Enterprise base URL.
func enterpriseGraphQLURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid GitHub base URL %q: %w", baseURL, err)
	}
	u.Path = "/api/graphql"
	return u.String(), nil
}

// FetchClosedPullRequests returns the closed pull requests of repo whose last update
// falls inside window. Pages are requested most recently updated first and the
// traversal stops at the first page that is not full.
func (g *GitHubGateway) FetchClosedPullRequests(ctx context.Context, repo domain.RepositoryRef, window domain.TimeWindow) ([]domain.PullRequestSummary, error) {
	g.logger.Printf("[%s] Fetching closed pull requests...", repo)
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: pageSize, Page: 1},
	}

	ctx = upstreamContext(ctx)
	var prs []domain.PullRequestSummary
	for {
		page, resp, err := g.restClient.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, classify(fmt.Sprintf("list pull requests of %s (page %d)", repo, opts.Page), err)
		}
		g.observe(repo, opts.Page, resp)

		for _, pr := range page {
			summary := toSummary(pr)
			if window.Contains(summary.UpdatedAt) {
				prs = append(prs, summary)
			}
		}
		if len(page) < pageSize {
			break
		}
		opts.Page++
		g.logger.Printf("[%s]   Fetching page %d of pull requests...", repo, opts.Page)
	}
	g.logger.Printf("[%s] Found %d closed pull requests in the window.", repo, len(prs))
	return prs, nil
}

// FetchReviews returns all reviews of a pull request in submission order.
func (g *GitHubGateway) FetchReviews(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.ReviewEvent, error) {
	ctx = upstreamContext(ctx)
	opts := &github.ListOptions{PerPage: pageSize}
	var reviews []domain.ReviewEvent
	for {
		page, resp, err := g.restClient.PullRequests.ListReviews(ctx, repo.Owner, repo.Name, number, opts)
		if err != nil {
			return nil, classify(fmt.Sprintf("list reviews of %s#%d", repo, number), err)
		}
		for _, r := range page {
			reviews = append(reviews, domain.ReviewEvent{
				Reviewer:    r.GetUser().GetLogin(),
				SubmittedAt: r.GetSubmittedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

// FetchPullRequestDetail returns the size of a pull request.
func (g *GitHubGateway) FetchPullRequestDetail(ctx context.Context, repo domain.RepositoryRef, number int) (domain.PullRequestDetail, error) {
	pr, _, err := g.restClient.PullRequests.Get(upstreamContext(ctx), repo.Owner, repo.Name, number)
	if err != nil {
		return domain.PullRequestDetail{}, classify(fmt.Sprintf("get pull request %s#%d", repo, number), err)
	}
	return domain.PullRequestDetail{
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
	}, nil
}

// FetchUserEmail returns the public email of login, or "" when the account has none.
func (g *GitHubGateway) FetchUserEmail(ctx context.Context, login string) (string, error) {
	var q userEmailQuery
	variables := map[string]interface{}{"login": githubv4.String(login)}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return "", fmt.Errorf("failed to execute GraphQL query for the email of %s: %w", login, err)
	}
	return q.User.Email, nil
}

// upstreamContext skips the client's own rate limit bookkeeping. The REST client
// is shared by every repository, and a quota exhausted while reading one of them
// must not stop requests for the others before they reach the API.
func upstreamContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, github.BypassRateLimitCheck, true)
}

func (g *GitHubGateway) observe(repo domain.RepositoryRef, page int, resp *github.Response) {
	if g.observer == nil || resp == nil {
		return
	}
	// github.Rate carries no used count, so it is read from the header.
	used, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Used"))
	g.observer(domain.RateTelemetry{
		Repository: repo,
		Page:       page,
		Limit:      resp.Rate.Limit,
		Remaining:  resp.Rate.Remaining,
		Used:       used,
		Reset:      resp.Rate.Reset.Time,
	})
}

func toSummary(pr *github.PullRequest) domain.PullRequestSummary {
	s := domain.PullRequestSummary{
		Number:    pr.GetNumber(),
		Author:    pr.GetUser().GetLogin(),
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
	}
	if pr.MergedAt != nil {
		merged := pr.MergedAt.Time
		s.MergedAt = &merged
	}
	return s
}

// classify converts go-github errors into tagged domain errors, keeping the
// response status, headers and body for diagnostics.
func classify(op string, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return withResponse(&domain.Error{Kind: domain.KindRateLimitExceeded, Op: op, Body: rateErr.Message, Err: err}, rateErr.Response)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return withResponse(&domain.Error{Kind: domain.KindRateLimitExceeded, Op: op, Body: abuseErr.Message, Err: err}, abuseErr.Response)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return withResponse(&domain.Error{Kind: domain.KindUpstreamAPI, Op: op, Body: errorBody(respErr), Err: err}, respErr.Response)
	}
	return &domain.Error{Kind: domain.KindUpstreamAPI, Op: op, Err: err}
}

func withResponse(e *domain.Error, resp *http.Response) *domain.Error {
	if resp != nil {
		e.Status = resp.StatusCode
		e.Header = resp.Header
	}
	return e
}

func errorBody(respErr *github.ErrorResponse) string {
	parts := []string{respErr.Message}
	for _, e := range respErr.Errors {
		if e.Message != "" {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}
