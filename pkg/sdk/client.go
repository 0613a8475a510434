package dishfinder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kailas-cloud/dishfinder/internal/version"
)

const defaultTimeout = 60 * time.Second

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is the dishfinder SDK entry point. It is safe for concurrent use.
type Client struct {
	http *resty.Client
	obs  *observer
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("dishfinder: base URL required")
	}
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var hc *resty.Client
	if cfg.httpClient != nil {
		hc = resty.NewWithClient(cfg.httpClient)
	} else {
		hc = resty.New()
	}
	hc.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(cfg.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "dishfinder-go/"+version.Version)
	if cfg.apiKey != "" {
		hc.SetAuthToken(cfg.apiKey)
	}
	if cfg.retries > 0 {
		hc.SetRetryCount(cfg.retries).
			SetRetryWaitTime(100 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(retryCondition)
	}

	return &Client{http: hc, obs: obs}, nil
}

// retryCondition retries network errors and server-side failures.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	return r.StatusCode() >= 500
}

// Search runs a search through POST /search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (out SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/search")
	if err = check(resp, err); err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}
	return out, nil
}

// Find runs a search through GET /search with query parameters.
func (c *Client) Find(ctx context.Context, query string, maxResults int, f Filters) (out SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("find", start, err) }()

	params := map[string]string{"q": query}
	if maxResults > 0 {
		params["max_results"] = strconv.Itoa(maxResults)
	}
	if f.Category != "" {
		params["category"] = f.Category
	}
	if f.Vegan != nil {
		params["vegan"] = strconv.FormatBool(*f.Vegan)
	}
	if f.SpiceMax != nil {
		params["spice_max"] = strconv.Itoa(*f.SpiceMax)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/search")
	if err = check(resp, err); err != nil {
		return SearchResponse{}, fmt.Errorf("find: %w", err)
	}
	return out, nil
}

// PutItem creates or replaces a catalog item. Returns true if it was new.
func (c *Client) PutItem(ctx context.Context, item Item) (created bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("put_item", start, err) }()

	if item.ID == "" {
		return false, fmt.Errorf("put item: %w: id is required", ErrBadRequest)
	}
	var out itemResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetPathParam("id", item.ID).
		SetBody(item).
		SetResult(&out).
		SetError(&errorBody{}).
		Put("/items/{id}")
	if err = check(resp, err); err != nil {
		return false, fmt.Errorf("put item %s: %w", item.ID, err)
	}
	return out.Created, nil
}

// DeleteItem removes a catalog item. A missing item yields ErrItemNotFound.
func (c *Client) DeleteItem(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_item", start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetError(&errorBody{}).
		Delete("/items/{id}")
	if err = check(resp, err); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// IndexStats returns the server's index statistics.
func (c *Client) IndexStats(ctx context.Context) (out IndexStats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index_stats", start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/index/stats")
	if err = check(resp, err); err != nil {
		return IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	return out, nil
}

// Health checks the health of all server components. An unhealthy server
// answers 503 with a regular report; that is not an error here.
func (c *Client) Health(ctx context.Context) (out HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/health")
	if err != nil {
		return HealthStatus{}, fmt.Errorf("health: %w", err)
	}
	if resp.StatusCode() == http.StatusServiceUnavailable {
		if err = json.Unmarshal(resp.Body(), &out); err != nil {
			return HealthStatus{}, fmt.Errorf("health: decode report: %w", err)
		}
		return out, nil
	}
	if err = check(resp, nil); err != nil {
		return HealthStatus{}, fmt.Errorf("health: %w", err)
	}
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	return apiErr
}
