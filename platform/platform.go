// Package platform is a thin client for the competitive data-science
// platform's official REST API — a supplementary discovery path
// alongside the Browser Fetcher's rankings-page scrape (§4.3 item 4):
// when KAGGLE_USERNAME/KAGGLE_KEY credentials are configured, discovery
// can list competition refs directly instead of crawling listing pages.
// It never enriches: every field beyond id/title/url/dates/metric is
// still the Enrichment Orchestrator's job.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BaseURL is the platform's public API root.
const BaseURL = "https://www.kaggle.com/api/v1"

// CompetitionRef is one row from the competitions-list endpoint —
// enough to seed ingest-competition-metadata, nothing more.
type CompetitionRef struct {
	ID       string     `json:"ref"`
	Title    string     `json:"title"`
	URL      string     `json:"url"`
	Category string     `json:"category"`
	Metric   string     `json:"evaluationMetric"`
	Deadline *time.Time `json:"deadline"`
}

// Client lists and looks up competition refs from the platform API.
type Client interface {
	ListCompetitions(ctx context.Context, category string, page int) ([]CompetitionRef, error)
	GetCompetition(ctx context.Context, id string) (*CompetitionRef, error)
}

type httpClient struct {
	client   *http.Client
	baseURL  string
	username string
	key      string
}

// NewClient creates an authenticated platform API client. Credentials
// are required: the platform API rejects anonymous requests.
func NewClient(username, key string, client *http.Client) Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClient{client: client, baseURL: BaseURL, username: username, key: key}
}

// NewClientWithBaseURL overrides the base URL, for testing.
func NewClientWithBaseURL(username, key, baseURL string, client *http.Client) Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClient{client: client, baseURL: baseURL, username: username, key: key}
}

// ListCompetitions fetches one page of the competitions-list endpoint,
// optionally filtered by category ("featured", "research", "playground",
// "gettingStarted"; empty means all).
func (c *httpClient) ListCompetitions(ctx context.Context, category string, page int) ([]CompetitionRef, error) {
	if page < 1 {
		page = 1
	}
	url := fmt.Sprintf("%s/competitions/list?page=%d", c.baseURL, page)
	if category != "" {
		url += "&category=" + category
	}

	var refs []CompetitionRef
	if err := c.getJSON(ctx, url, &refs); err != nil {
		return nil, fmt.Errorf("platform: list competitions: %w", err)
	}
	for i := range refs {
		refs[i].ID = slugFromRef(refs[i].ID)
	}
	return refs, nil
}

// GetCompetition looks up a single competition by slug. The API has no
// dedicated by-id endpoint, so this searches the list endpoint for an
// exact slug match, same as the reference client this is grounded on.
func (c *httpClient) GetCompetition(ctx context.Context, id string) (*CompetitionRef, error) {
	url := fmt.Sprintf("%s/competitions/list?search=%s", c.baseURL, id)

	var refs []CompetitionRef
	if err := c.getJSON(ctx, url, &refs); err != nil {
		return nil, fmt.Errorf("platform: get competition %s: %w", id, err)
	}
	for _, ref := range refs {
		if slugFromRef(ref.ID) == id {
			ref.ID = id
			return &ref, nil
		}
	}
	return nil, nil
}

func (c *httpClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// slugFromRef extracts the trailing path segment from a ref that may be
// a bare slug ("titanic") or a full URL
// ("https://www.kaggle.com/competitions/titanic").
func slugFromRef(ref string) string {
	if !strings.HasPrefix(ref, "http") {
		return ref
	}
	ref = strings.TrimRight(ref, "/")
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}
