// Package search implements the news article search client used by the scan
// engine. The wire format follows a Custom Search-style JSON API.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/threatwatch-io/threatwatch/internal/modules/scan/domain"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
)

// Client retrieves candidate news articles for a query.
type Client interface {
	Search(ctx context.Context, query string, windowHours, maxResults int) ([]domain.Article, error)
}

// Config carries the search API credentials and endpoint.
type Config struct {
	APIKey   string
	EngineID string
	BaseURL  string
	Timeout  time.Duration
}

// HTTPClient implements Client against a Custom Search-style HTTP API.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a search client from configuration.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Pagemap struct {
		Metatags []map[string]string `json:"metatags"`
	} `json:"pagemap"`
}

// Search performs one query restricted to the trailing windowHours, newest
// first. Rate-limit and auth rejections surface as non-retryable errors;
// network failures and 5xx responses remain retryable.
func (c *HTTPClient) Search(ctx context.Context, query string, windowHours, maxResults int) ([]domain.Article, error) {
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 10 // API hard limit per request
	}
	days := windowHours / 24
	if days < 1 {
		days = 1
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("cx", c.cfg.EngineID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", maxResults))
	params.Set("dateRestrict", fmt.Sprintf("d%d", days))
	params.Set("sort", "date")
	params.Set("lr", "lang_en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, oops.With("context", "failed to build search request").Wrap(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, oops.With("query", query, "context", "search request failed").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusForbidden:
			return nil, oops.With("status", resp.StatusCode, "body", string(body)).Wrap(sharederrors.ErrQuotaExceeded)
		case http.StatusBadRequest:
			return nil, oops.With("status", resp.StatusCode, "body", string(body)).Wrap(sharederrors.ErrInvalidQuery)
		default:
			return nil, oops.With("status", resp.StatusCode, "body", string(body)).Errorf("search API returned %d", resp.StatusCode)
		}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, oops.With("query", query, "context", "failed to decode search response").Wrap(err)
	}

	articles := make([]domain.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		articles = append(articles, domain.Article{
			Title:       strings.TrimSpace(item.Title),
			URL:         item.Link,
			Domain:      extractDomain(item.Link),
			PublishedAt: extractPublished(item),
			Snippet:     strings.TrimSpace(item.Snippet),
		})
	}
	return articles, nil
}

func extractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// extractPublished digs a publication time out of the page metatags; most
// news sites expose one of a handful of well-known fields.
func extractPublished(item searchItem) *time.Time {
	for _, tags := range item.Pagemap.Metatags {
		for _, field := range []string{"article:published_time", "datepublished", "publisheddate", "date"} {
			value, ok := tags[field]
			if !ok || value == "" {
				continue
			}
			if ts, err := time.Parse(time.RFC3339, value); err == nil {
				return &ts
			}
		}
	}
	return nil
}
