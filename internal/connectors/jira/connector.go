package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// Connector implements interfaces.IssueTrackerConnector against the Jira
// REST API (v2) with basic auth. Rendered HTML descriptions are converted to
// markdown before leaving this package.
type Connector struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// NewConnector creates a Jira connector
func NewConnector(config *common.JiraConfig, logger arbor.ILogger) (*Connector, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}
	if config.Email == "" || config.APIToken == "" {
		return nil, fmt.Errorf("jira email and API token are required")
	}

	rps := config.RPS
	if rps <= 0 {
		rps = 2
	}

	return &Connector{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		email:      config.Email,
		apiToken:   config.APIToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}, nil
}

type searchResponse struct {
	Total  int `json:"total"`
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Updated string `json:"updated"`
			Project struct {
				Key string `json:"key"`
			} `json:"project"`
		} `json:"fields"`
	} `json:"issues"`
}

// SearchResolvedIssues lists issues resolved by username in the given
// projects since the start date, oldest first
func (c *Connector) SearchResolvedIssues(ctx context.Context, username string, projects []string, since time.Time) ([]models.IssueSummary, error) {
	var summaries []models.IssueSummary
	startAt := 0

	for {
		query := url.Values{}
		query.Set("jql", resolvedJQL(username, projects, since))
		query.Set("fields", "summary,updated,project")
		query.Set("maxResults", "50")
		query.Set("startAt", strconv.Itoa(startAt))

		var page searchResponse
		if err := c.get(ctx, "/rest/api/2/search?"+query.Encode(), &page); err != nil {
			return nil, fmt.Errorf("jira search failed: %w", err)
		}

		for _, issue := range page.Issues {
			updated, _ := time.Parse("2006-01-02T15:04:05.000-0700", issue.Fields.Updated)
			summaries = append(summaries, models.IssueSummary{
				Key:     issue.Key,
				Project: issue.Fields.Project.Key,
				Title:   issue.Fields.Summary,
				URL:     c.browseURL(issue.Key),
				Updated: updated,
			})
		}

		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			break
		}
	}

	c.logger.Debug().
		Str("username", username).
		Int("count", len(summaries)).
		Msg("Discovered resolved issues")
	return summaries, nil
}

// CountResolvedIssues returns the total resolved issue count without paging
// through results
func (c *Connector) CountResolvedIssues(ctx context.Context, username string, projects []string, since time.Time) (int, error) {
	query := url.Values{}
	query.Set("jql", resolvedJQL(username, projects, since))
	query.Set("maxResults", "0")

	var page searchResponse
	if err := c.get(ctx, "/rest/api/2/search?"+query.Encode(), &page); err != nil {
		return 0, fmt.Errorf("jira count failed: %w", err)
	}
	return page.Total, nil
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary   string `json:"summary"`
		Updated   string `json:"updated"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		ResolutionDate string `json:"resolutiondate"`
		Project        struct {
			Key string `json:"key"`
		} `json:"project"`
	} `json:"fields"`
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

type remoteLinkResponse []struct {
	Object struct {
		URL string `json:"url"`
	} `json:"object"`
}

// GetIssueDetail fetches the full issue record. The rendered HTML
// description is converted to markdown; linked pull requests are collected
// from the issue's remote links.
func (c *Connector) GetIssueDetail(ctx context.Context, key string) (*models.IssueDetail, error) {
	var issue issueResponse
	path := fmt.Sprintf("/rest/api/2/issue/%s?expand=renderedFields&fields=summary,updated,issuetype,status,resolutiondate,project", url.PathEscape(key))
	if err := c.get(ctx, path, &issue); err != nil {
		return nil, fmt.Errorf("jira issue fetch failed for %s: %w", key, err)
	}

	description, err := htmlToMarkdown(issue.RenderedFields.Description)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Description conversion failed, keeping raw text")
		description = issue.RenderedFields.Description
	}

	updated, _ := time.Parse("2006-01-02T15:04:05.000-0700", issue.Fields.Updated)
	resolved, _ := time.Parse("2006-01-02T15:04:05.000-0700", issue.Fields.ResolutionDate)

	detail := &models.IssueDetail{
		IssueSummary: models.IssueSummary{
			Key:     issue.Key,
			Project: issue.Fields.Project.Key,
			Title:   issue.Fields.Summary,
			URL:     c.browseURL(issue.Key),
			Updated: updated,
		},
		Description: description,
		IssueType:   issue.Fields.IssueType.Name,
		Status:      issue.Fields.Status.Name,
		Resolved:    resolved,
	}

	// Remote links are best effort; a missing dev panel should not fail the
	// fetch.
	var links remoteLinkResponse
	linkPath := fmt.Sprintf("/rest/api/2/issue/%s/remotelink", url.PathEscape(key))
	if err := c.get(ctx, linkPath, &links); err == nil {
		for _, link := range links {
			if strings.Contains(link.Object.URL, "/pull/") {
				detail.LinkedPRs = append(detail.LinkedPRs, link.Object.URL)
			}
		}
	}

	return detail, nil
}

func (c *Connector) get(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jira API returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	return json.Unmarshal(body, out)
}

func (c *Connector) browseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

func resolvedJQL(username string, projects []string, since time.Time) string {
	return fmt.Sprintf(`project in (%s) AND assignee = %q AND statusCategory = Done AND resolutiondate >= %q ORDER BY resolutiondate ASC`,
		strings.Join(projects, ","), username, since.Format("2006-01-02"))
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// Ensure interface compliance
var _ interfaces.IssueTrackerConnector = (*Connector)(nil)
