package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// Connector implements interfaces.CodeHostConnector against the GitHub API.
// All calls go through a client-side rate limiter so a large sync stays
// inside the search API quota.
type Connector struct {
	client  *github.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewConnector creates a GitHub connector. BaseURL switches the client to a
// GitHub Enterprise instance.
func NewConnector(config *common.GitHubConfig, logger arbor.ILogger) (*Connector, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("github token is required")
	}

	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: config.Token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if config.BaseURL != "" {
		enterprise, err := client.WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base URL %s: %w", config.BaseURL, err)
		}
		client = enterprise
	}

	rps := config.RPS
	if rps <= 0 {
		rps = 2
	}

	return &Connector{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}, nil
}

// TestConnection verifies the token works by getting the authenticated user
func (c *Connector) TestConnection(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("github connection test failed: %w", err)
	}
	return nil
}

// SearchMergedPullRequests lists PRs merged by username in the given
// repositories since the start date, oldest first
func (c *Connector) SearchMergedPullRequests(ctx context.Context, username string, repositories []string, since time.Time) ([]models.PullRequestSummary, error) {
	var summaries []models.PullRequestSummary

	for _, repo := range repositories {
		opts := &github.SearchOptions{
			Sort:        "created",
			Order:       "asc",
			ListOptions: github.ListOptions{PerPage: 100},
		}

		for {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			result, resp, err := c.client.Search.Issues(ctx, mergedQuery(username, repo, since), opts)
			if err != nil {
				return nil, fmt.Errorf("github search failed for %s: %w", repo, err)
			}

			for _, issue := range result.Issues {
				summaries = append(summaries, models.PullRequestSummary{
					Repository: repo,
					Number:     issue.GetNumber(),
					Title:      issue.GetTitle(),
					URL:        issue.GetHTMLURL(),
					MergedAt:   mergedAt(issue),
				})
			}

			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}

	c.logger.Debug().
		Str("username", username).
		Int("count", len(summaries)).
		Msg("Discovered merged pull requests")
	return summaries, nil
}

// CountMergedPullRequests returns the total merged PR count without paging
// through results
func (c *Connector) CountMergedPullRequests(ctx context.Context, username string, repositories []string, since time.Time) (int, error) {
	total := 0
	for _, repo := range repositories {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		result, _, err := c.client.Search.Issues(ctx, mergedQuery(username, repo, since), &github.SearchOptions{
			ListOptions: github.ListOptions{PerPage: 1},
		})
		if err != nil {
			return 0, fmt.Errorf("github count failed for %s: %w", repo, err)
		}
		total += result.GetTotal()
	}
	return total, nil
}

// GetPullRequestDetail fetches the full PR record including the changed file
// list
func (c *Connector) GetPullRequestDetail(ctx context.Context, repository string, number int) (*models.PullRequestDetail, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("github pull request fetch failed for %s#%d: %w", repository, number, err)
	}

	detail := &models.PullRequestDetail{
		PullRequestSummary: models.PullRequestSummary{
			Repository: repository,
			Number:     number,
			Title:      pr.GetTitle(),
			URL:        pr.GetHTMLURL(),
			MergedAt:   pr.GetMergedAt().Time,
		},
		Body:         pr.GetBody(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		FilesChanged: pr.GetChangedFiles(),
		BranchName:   pr.GetHead().GetRef(),
	}

	files, err := c.listFiles(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	detail.Files = files

	return detail, nil
}

func (c *Connector) listFiles(ctx context.Context, owner, repo string, number int) ([]string, error) {
	var files []string
	opts := &github.ListOptions{PerPage: 100}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("github file list failed for %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, f := range page {
			files = append(files, f.GetFilename())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return files, nil
}

func mergedQuery(username, repository string, since time.Time) string {
	return fmt.Sprintf("repo:%s author:%s is:pr is:merged merged:>=%s",
		repository, username, since.Format("2006-01-02"))
}

func mergedAt(issue *github.Issue) time.Time {
	if links := issue.GetPullRequestLinks(); links != nil && links.MergedAt != nil {
		return links.MergedAt.Time
	}
	return issue.GetClosedAt().Time
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q (want org/repo)", repository)
	}
	return parts[0], parts[1], nil
}

// Ensure interface compliance
var _ interfaces.CodeHostConnector = (*Connector)(nil)
