package s2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit is one request per second, the documented limit for keyed
	// access. Unkeyed access shares a pool and is often slower.
	RateLimit = 1.0

	// DefaultPaperFields are the fields requested for paper lookups.
	DefaultPaperFields = "title,abstract,authors,year,venue,publicationVenue,publicationDate,publicationTypes,journal,externalIds,citationCount,url,openAccessPdf"

	// DefaultSearchLimit caps one search page.
	DefaultSearchLimit = 100
)

// Client is a rate-limited HTTP client for the Graph API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithRateLimit overrides the request rate (for testing).
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a new Graph API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, paperID string) error {
	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == 404:
		return fmt.Errorf("%w: %s", ErrNotFound, paperID)
	case resp.StatusCode == 429:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w", ErrServiceNotAvailable, &APIError{StatusCode: resp.StatusCode, Message: resp.Status, PaperID: paperID})
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Message: string(body), PaperID: paperID}
	}
	return nil
}

// get performs a rate-limited GET and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, path string, query url.Values, paperID string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceNotAvailable, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, paperID); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// GetPaper fetches one paper by any identifier ParsePaperID understands.
func (c *Client) GetPaper(ctx context.Context, id string) (*Paper, error) {
	pid := ParsePaperID(id)
	if !pid.IsExternalID() {
		return nil, fmt.Errorf("%w: %q is not an external identifier", ErrNotFound, id)
	}
	var paper Paper
	q := url.Values{"fields": {DefaultPaperFields}}
	if err := c.get(ctx, "/paper/"+pid.String(), q, id, &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// GetPaperByDOI fetches one paper by DOI.
func (c *Client) GetPaperByDOI(ctx context.Context, doi string) (*Paper, error) {
	return c.GetPaper(ctx, "DOI:"+NormalizeDOI(doi))
}

// SearchPapers runs a keyword search and returns one page of results.
func (c *Client) SearchPapers(ctx context.Context, query string, offset, limit int) (*SearchResponse, error) {
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}
	q := url.Values{
		"query":  {query},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
		"fields": {DefaultPaperFields},
	}
	var resp SearchResponse
	if err := c.get(ctx, "/paper/search", q, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchAll pages through a keyword search until max results or the end.
func (c *Client) SearchAll(ctx context.Context, query string, max int) ([]Paper, error) {
	var papers []Paper
	offset := 0
	for {
		resp, err := c.SearchPapers(ctx, query, offset, DefaultSearchLimit)
		if err != nil {
			return nil, err
		}
		papers = append(papers, resp.Data...)
		if resp.Next == 0 || len(resp.Data) == 0 || (max > 0 && len(papers) >= max) {
			break
		}
		offset = resp.Next
	}
	if max > 0 && len(papers) > max {
		papers = papers[:max]
	}
	return papers, nil
}
