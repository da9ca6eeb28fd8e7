// Package api implements the PSE reporting API client: OData query
// building, page fetching, the retry-backoff executor, and the
// continuation-token pagination walker.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gridwatch/psefetch/internal/models"
)

// orderBy keeps pagination stable across requests; the API requires a
// deterministic sort for nextLink cursors to be consistent.
const orderBy = "business_date asc,resource_code asc,operating_mode asc,dtime_utc asc"

// ClientOptions configures the PSE client.
type ClientOptions struct {
	BaseURL        string
	RequestTimeout time.Duration
	RateLimit      float64
	RateLimitBurst int
}

// Client fetches pages of generator-unit readings from the PSE API. It is
// stateless across calls apart from the shared rate limiter, so a single
// client may serve concurrent fetches.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

func NewClient(opts ClientOptions, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: opts.BaseURL,
		timeout: opts.RequestTimeout,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimitBurst),
		logger:  logger,
	}
}

// FirstPageURL builds the initial request URL for a window. Subsequent
// pages use the nextLink returned by the server verbatim.
func (c *Client) FirstPageURL(w models.Window, pageSize int) string {
	params := url.Values{}
	params.Set("$filter", buildFilter(w))
	params.Set("$orderby", orderBy)
	params.Set("$first", strconv.Itoa(pageSize))
	return c.baseURL + "?" + params.Encode()
}

// FetchPage performs a single page request. It classifies failures for
// the retry executor: transport and decode failures wrap ErrTransport,
// non-2xx statuses surface as *HTTPStatusError.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (models.Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Page{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return models.Page{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return models.Page{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Page{}, &HTTPStatusError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	var body models.PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Page{}, fmt.Errorf("%w: decoding response: %v", ErrTransport, err)
	}

	c.logger.WithFields(logrus.Fields{
		"records":   len(body.Value),
		"next_link": body.NextLink != "",
	}).Debug("Fetched page")

	return models.Page{Records: body.Value, NextLink: body.NextLink}, nil
}

// buildFilter renders the OData $filter expression for a window. The API
// filters on business_date at day granularity; an end instant on a day
// boundary excludes that day, matching the half-open window.
func buildFilter(w models.Window) string {
	last := w.End
	if last.Equal(last.Truncate(24 * time.Hour)) {
		last = last.AddDate(0, 0, -1)
	}
	filter := fmt.Sprintf("business_date ge '%s' and business_date le '%s'",
		w.Start.UTC().Format("2006-01-02"),
		last.UTC().Format("2006-01-02"),
	)

	switch {
	case len(w.Filter.Resources) > 0:
		filter += " and " + eqClause("resource_code", w.Filter.Resources)
	case len(w.Filter.Plants) > 0:
		filter += " and " + eqClause("power_plant", w.Filter.Plants)
	}
	return filter
}

// eqClause builds `field eq 'v'` for one value or an or-chain in
// parentheses for several.
func eqClause(field string, values []string) string {
	if len(values) == 1 {
		return fmt.Sprintf("%s eq '%s'", field, values[0])
	}
	conditions := make([]string, len(values))
	for i, v := range values {
		conditions[i] = fmt.Sprintf("%s eq '%s'", field, v)
	}
	return "(" + strings.Join(conditions, " or ") + ")"
}
