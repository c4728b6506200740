// Package openlibrary is a small client for the Open Library subject search.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
)

const (
	// DefaultBaseURL is the public Open Library host.
	DefaultBaseURL = "https://openlibrary.org"
	// MaxResults caps how many search results are returned to callers.
	MaxResults = 20

	coverURLFormat = "https://covers.openlibrary.org/b/id/%d-M.jpg"
)

// Options configures a Client. Zero values pick defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second; 0 means unlimited
	RateBurst  int
	HTTPClient *http.Client
}

// Client queries the Open Library search API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new Open Library client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(limit, burst),
	}
}

type searchResponse struct {
	NumFound int    `json:"numFound"`
	Docs     *[]doc `json:"docs"`
}

type doc struct {
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
	CoverID    int64    `json:"cover_i"`
}

// SearchBySubject returns up to MaxResults books tagged with subject, in the
// order Open Library ranks them. Every failure is a GatewayError.
func (c *Client) SearchBySubject(ctx context.Context, subject string) ([]models.BookSummary, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.Gateway(err, "search rate limit")
	}

	params := url.Values{}
	params.Set("subject", subject)
	searchURL := c.baseURL + "/search.json?" + params.Encode()

	log.Debug().Str("subject", subject).Str("url", searchURL).Msg("Searching Open Library")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, errors.Gateway(err, "failed to build search request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Gateway(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Gateway(fmt.Errorf("status %d", resp.StatusCode), "search service returned an error")
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, errors.Gateway(err, "unreadable search response")
	}
	if searchResp.Docs == nil {
		return nil, errors.Gateway(fmt.Errorf("missing docs field"), "unexpected search response")
	}

	docs := *searchResp.Docs
	if len(docs) > MaxResults {
		docs = docs[:MaxResults]
	}

	results := make([]models.BookSummary, 0, len(docs))
	for _, d := range docs {
		summary := models.BookSummary{Title: d.Title}
		if len(d.AuthorName) > 0 {
			summary.Author = d.AuthorName[0]
		}
		if d.CoverID > 0 {
			summary.CoverURL = fmt.Sprintf(coverURLFormat, d.CoverID)
		}
		results = append(results, summary)
	}

	log.Debug().Str("subject", subject).Int("found", searchResp.NumFound).Int("returned", len(results)).Msg("Open Library results")
	return results, nil
}
