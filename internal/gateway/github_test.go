package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

var testRepo = domain.RepositoryRef{Owner: "org", Name: "repo"}

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
// REST calls are served under "/" and GraphQL under "/graphql".
func setupTestGateway(t *testing.T, handler http.Handler, observer RateObserver) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	graphqlClient := githubv4.NewEnterpriseClient(server.URL+"/graphql", server.Client())
	logger := log.New(io.Discard, "", 0)

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		observer:      observer,
		logger:        logger,
	}

	return gateway, server
}

// pullJSON renders a minimal pull request as returned by the list endpoint.
func pullJSON(number int, updatedAt time.Time, merged bool) string {
	mergedAt := "null"
	if merged {
		mergedAt = fmt.Sprintf("%q", updatedAt.Add(-time.Hour).Format(time.RFC3339))
	}
	return fmt.Sprintf(`{"number":%d,"user":{"login":"author-%d"},"created_at":%q,"updated_at":%q,"merged_at":%s}`,
		number, number, updatedAt.Add(-48*time.Hour).Format(time.RFC3339), updatedAt.Format(time.RFC3339), mergedAt)
}

func TestGitHubGateway_FetchClosedPullRequests(t *testing.T) {
	windowStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	window := domain.TimeWindow{Start: windowStart}
	reset := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("happy path - walks pages until a short page and filters by update time", func(t *testing.T) {
		var requestedPages []string
		handler := func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/org/repo/pulls", r.URL.Path)
			query := r.URL.Query()
			assert.Equal(t, "closed", query.Get("state"))
			assert.Equal(t, "updated", query.Get("sort"))
			assert.Equal(t, "desc", query.Get("direction"))
			assert.Equal(t, "100", query.Get("per_page"))
			requestedPages = append(requestedPages, query.Get("page"))

			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "4990")
			w.Header().Set("X-RateLimit-Used", "10")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset.Unix()))

			var items []string
			switch query.Get("page") {
			case "1":
				// A full page, every pull request updated inside the window.
				for i := range pageSize {
					items = append(items, pullJSON(1000-i, windowStart.Add(time.Duration(pageSize-i)*time.Hour), i%2 == 0))
				}
			case "2":
				items = append(items,
					pullJSON(1, windowStart.Add(time.Minute), true),
					pullJSON(2, windowStart.Add(-time.Hour), true), // updated before the window
				)
			default:
				t.Errorf("unexpected page %q", query.Get("page"))
			}
			fmt.Fprintf(w, "[%s]", strings.Join(items, ","))
		}

		var telemetry []domain.RateTelemetry
		gateway, server := setupTestGateway(t, http.HandlerFunc(handler), func(rt domain.RateTelemetry) {
			telemetry = append(telemetry, rt)
		})
		defer server.Close()

		prs, err := gateway.FetchClosedPullRequests(context.Background(), testRepo, window)
		require.NoError(t, err)

		assert.Equal(t, []string{"1", "2"}, requestedPages)
		assert.Len(t, prs, pageSize+1)
		assert.Equal(t, 1000, prs[0].Number)
		assert.Equal(t, "author-1000", prs[0].Author)
		assert.NotNil(t, prs[0].MergedAt)
		assert.Nil(t, prs[1].MergedAt)
		assert.Equal(t, 1, prs[len(prs)-1].Number)

		require.Len(t, telemetry, 2)
		assert.Equal(t, testRepo, telemetry[0].Repository)
		assert.Equal(t, 1, telemetry[0].Page)
		assert.Equal(t, 5000, telemetry[0].Limit)
		assert.Equal(t, 4990, telemetry[0].Remaining)
		assert.Equal(t, 10, telemetry[0].Used)
		assert.True(t, reset.Equal(telemetry[0].Reset))
		assert.Equal(t, 2, telemetry[1].Page)
		assert.False(t, telemetry[0].Exhausted())
	})

	t.Run("closed window excludes pull requests updated after the end", func(t *testing.T) {
		end := windowStart.Add(24 * time.Hour)
		closed := domain.TimeWindow{Start: windowStart, End: &end}
		handler := func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "[%s,%s]",
				pullJSON(7, end.Add(time.Hour), true),
				pullJSON(6, end.Add(-time.Hour), false))
		}
		gateway, server := setupTestGateway(t, http.HandlerFunc(handler), nil)
		defer server.Close()

		prs, err := gateway.FetchClosedPullRequests(context.Background(), testRepo, closed)
		require.NoError(t, err)
		require.Len(t, prs, 1)
		assert.Equal(t, 6, prs[0].Number)
	})

	t.Run("error case - rate limit exceeded", func(t *testing.T) {
		handler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"API rate limit exceeded for user ID 1.","documentation_url":"https://docs.github.com/rest/overview/resources-in-the-rest-api#rate-limiting"}`)
		}
		gateway, server := setupTestGateway(t, http.HandlerFunc(handler), nil)
		defer server.Close()

		prs, err := gateway.FetchClosedPullRequests(context.Background(), testRepo, window)
		require.Error(t, err)
		assert.Nil(t, prs)

		var domainErr *domain.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.KindRateLimitExceeded, domainErr.Kind)
		assert.Equal(t, http.StatusForbidden, domainErr.Status)
		assert.Equal(t, "0", domainErr.Header.Get("X-RateLimit-Remaining"))
		assert.Contains(t, domainErr.Body, "API rate limit exceeded")
	})

	t.Run("an exhausted quota on one repository does not block the next", func(t *testing.T) {
		healthy := domain.RepositoryRef{Owner: "org", Name: "healthy"}
		var served []string
		mux := http.NewServeMux()
		mux.HandleFunc("GET /repos/org/repo/pulls", func(w http.ResponseWriter, r *http.Request) {
			served = append(served, r.URL.Path)
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"API rate limit exceeded for user ID 1."}`)
		})
		mux.HandleFunc("GET /repos/org/healthy/pulls", func(w http.ResponseWriter, r *http.Request) {
			served = append(served, r.URL.Path)
			fmt.Fprintf(w, "[%s]", pullJSON(3, windowStart.Add(time.Hour), true))
		})
		mux.HandleFunc("GET /repos/org/healthy/pulls/3/reviews", func(w http.ResponseWriter, r *http.Request) {
			served = append(served, r.URL.Path)
			fmt.Fprint(w, `[]`)
		})
		mux.HandleFunc("GET /repos/org/healthy/pulls/3", func(w http.ResponseWriter, r *http.Request) {
			served = append(served, r.URL.Path)
			fmt.Fprint(w, `{"number":3,"additions":1,"deletions":1,"changed_files":1}`)
		})
		gateway, server := setupTestGateway(t, mux, nil)
		defer server.Close()

		_, err := gateway.FetchClosedPullRequests(context.Background(), testRepo, window)
		require.Error(t, err)
		assert.Equal(t, domain.KindRateLimitExceeded, domain.KindOf(err))

		prs, err := gateway.FetchClosedPullRequests(context.Background(), healthy, window)
		require.NoError(t, err)
		require.Len(t, prs, 1)
		_, err = gateway.FetchReviews(context.Background(), healthy, 3)
		require.NoError(t, err)
		detail, err := gateway.FetchPullRequestDetail(context.Background(), healthy, 3)
		require.NoError(t, err)
		assert.Equal(t, 1, detail.ChangedFiles)

		assert.Equal(t, []string{
			"/repos/org/repo/pulls",
			"/repos/org/healthy/pulls",
			"/repos/org/healthy/pulls/3/reviews",
			"/repos/org/healthy/pulls/3",
		}, served)
	})

	t.Run("error case - GitHub API returns an error", func(t *testing.T) {
		handler := func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found"}`)
		}
		gateway, server := setupTestGateway(t, http.HandlerFunc(handler), nil)
		defer server.Close()

		_, err := gateway.FetchClosedPullRequests(context.Background(), testRepo, window)
		require.Error(t, err)

		var domainErr *domain.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.KindUpstreamAPI, domainErr.Kind)
		assert.Equal(t, http.StatusNotFound, domainErr.Status)
		assert.Equal(t, "Not Found", domainErr.Body)
		assert.Contains(t, err.Error(), "list pull requests of org/repo")
	})
}

func TestGitHubGateway_FetchReviews(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo/pulls/42/reviews", r.URL.Path)
		fmt.Fprint(w, `[
			{"user":{"login":"alice"},"submitted_at":"2024-02-01T10:00:00Z"},
			{"user":null,"submitted_at":"2024-02-01T11:00:00Z"}
		]`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler), nil)
	defer server.Close()

	reviews, err := gateway.FetchReviews(context.Background(), testRepo, 42)
	require.NoError(t, err)
	assert.Equal(t, []domain.ReviewEvent{
		{Reviewer: "alice", SubmittedAt: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)},
		{Reviewer: "", SubmittedAt: time.Date(2024, 2, 1, 11, 0, 0, 0, time.UTC)},
	}, reviews)
}

func TestGitHubGateway_FetchPullRequestDetail(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		body        string
		expected    domain.PullRequestDetail
		expectError bool
	}{
		{
			name:     "happy path",
			status:   http.StatusOK,
			body:     `{"number":42,"additions":30,"deletions":20,"changed_files":2}`,
			expected: domain.PullRequestDetail{Additions: 30, Deletions: 20, ChangedFiles: 2},
		},
		{
			name:        "error case",
			status:      http.StatusInternalServerError,
			body:        `{"message":"Internal Server Error"}`,
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/org/repo/pulls/42", r.URL.Path)
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler), nil)
			defer server.Close()

			detail, err := gateway.FetchPullRequestDetail(context.Background(), testRepo, 42)
			if tc.expectError {
				require.Error(t, err)
				assert.Equal(t, domain.KindUpstreamAPI, domain.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, detail)
		})
	}
}

func TestGitHubGateway_FetchUserEmail(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expected       string
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:         "happy path",
			responseBody: `{"data":{"user":{"email":"alice@example.com"}}}`,
			expected:     "alice@example.com",
		},
		{
			name:         "no public email",
			responseBody: `{"data":{"user":{"email":""}}}`,
			expected:     "",
		},
		{
			name:           "error case - unknown user",
			responseBody:   `{"data":{"user":null},"errors":[{"message":"Could not resolve to a User with the login of 'ghost'."}]}`,
			expectError:    true,
			expectedErrMsg: "failed to execute GraphQL query",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/graphql", r.URL.Path)
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), "user(login: $login)")
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler), nil)
			defer server.Close()

			email, err := gateway.FetchUserEmail(context.Background(), "alice")
			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, email)
		})
	}
}

func TestNewGitHubGateway(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	gateway, err := NewGitHubGateway("token", logger)
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", gateway.restClient.BaseURL.String())

	gateway, err = NewGitHubGateway("token", logger, WithBaseURL("https://ghe.example.com/"))
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", gateway.restClient.BaseURL.String())

	graphqlURL, err := enterpriseGraphQLURL("https://ghe.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/graphql", graphqlURL)
}
