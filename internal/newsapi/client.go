package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"newsbee/internal/nav"
	"newsbee/internal/news"
)

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns a news.Fetcher backed by the top-headlines endpoint under baseURL.
func NewClient(baseURL, apiKey string, httpClient *http.Client) news.Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

func (c *client) FetchByCountry(ctx context.Context, country string, page, pageSize int) (news.Page, error) {
	q := url.Values{}
	q.Set("country", country)
	return c.fetch(ctx, q, page, pageSize)
}

// FetchByTopic filters on category when topic is one the API knows, and falls
// back to a keyword query otherwise.
func (c *client) FetchByTopic(ctx context.Context, topic string, page, pageSize int) (news.Page, error) {
	q := url.Values{}
	if nav.KnownCategory(strings.ToLower(topic)) {
		q.Set("category", strings.ToLower(topic))
	} else {
		q.Set("q", topic)
	}
	return c.fetch(ctx, q, page, pageSize)
}

func (c *client) fetch(ctx context.Context, q url.Values, page, pageSize int) (news.Page, error) {
	u, err := url.Parse(c.baseURL + "/top-headlines")
	if err != nil {
		return news.Page{}, fmt.Errorf("%w: bad base url: %v", news.ErrFetchFailed, err)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return news.Page{}, fmt.Errorf("%w: %v", news.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return news.Page{}, fmt.Errorf("%w: %v", news.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	var out Response
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && out.Message != "" {
			return news.Page{}, fmt.Errorf("%w: HTTP %d: %s", news.ErrFetchFailed, resp.StatusCode, out.Message)
		}
		return news.Page{}, fmt.Errorf("%w: HTTP %d", news.ErrFetchFailed, resp.StatusCode)
	}
	if decodeErr != nil {
		return news.Page{}, fmt.Errorf("%w: decode: %v", news.ErrFetchFailed, decodeErr)
	}
	if out.Status == "error" {
		return news.Page{}, fmt.Errorf("%w: %s: %s", news.ErrFetchFailed, out.Code, out.Message)
	}

	return MapResponse(out), nil
}
