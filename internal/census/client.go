package census

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.census.gov/data"
	maxBodyBytes   = 16 << 20
)

var ErrMissingAPIKey = errors.New("CENSUS_API_KEY is required")

// Request describes one Data API call.
type Request struct {
	Year      int
	Dataset   string // e.g. "acs/acs5", "dec/pl"
	Variables []string
	Geography string
}

// Response is the verbatim body plus what was asked for.
type Response struct {
	Endpoint    string
	Variables   []string
	Geography   string
	RetrievedAt time.Time
	Body        []byte
}

// Fetcher is implemented by Client; collectors depend on this to stay testable.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Client calls the Census Data API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Now        func() time.Time
}

// NewClient builds a client with the given key and per-request timeout.
func NewClient(apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Now:        time.Now,
	}, nil
}

// Endpoint returns the dataset URL without query parameters. The key never appears in it.
func (c *Client) Endpoint(req Request) string {
	base := strings.TrimRight(c.BaseURL, "/")
	return base + "/" + strconv.Itoa(req.Year) + "/" + strings.Trim(req.Dataset, "/")
}

// Fetch issues the request and returns the body unmodified.
func (c *Client) Fetch(ctx context.Context, req Request) (Response, error) {
	if len(req.Variables) == 0 {
		return Response{}, fmt.Errorf("census request for %s has no variables", req.Dataset)
	}
	clauses, err := ParseGeography(req.Geography)
	if err != nil {
		return Response{}, err
	}

	q := url.Values{}
	q.Set("get", strings.Join(req.Variables, ","))
	q.Set("for", clauses[0].Name+":"+clauses[0].ID)
	if len(clauses) > 1 {
		parents := make([]string, 0, len(clauses)-1)
		for _, c := range clauses[1:] {
			parents = append(parents, c.Name+":"+c.ID)
		}
		q.Set("in", strings.Join(parents, " "))
	}
	q.Set("key", c.APIKey)

	endpoint := c.Endpoint(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("build census request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("census get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read census body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return Response{}, fmt.Errorf("census get %s: status %d: %s", endpoint, resp.StatusCode, snippet)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return Response{}, fmt.Errorf("census get %s: empty body", endpoint)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return Response{
		Endpoint:    endpoint,
		Variables:   append([]string(nil), req.Variables...),
		Geography:   req.Geography,
		RetrievedAt: now().UTC(),
		Body:        body,
	}, nil
}

var _ Fetcher = (*Client)(nil)
