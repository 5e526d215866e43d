// Package yelp is the client for the Yelp Fusion business search API. It
// normalises search parameters, rate limits outgoing calls and maps every
// transport failure into the apperr taxonomy.
package yelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.yelp.com/v3"
	DefaultTimeout = 10 * time.Second

	// MaxRadius is the largest radius the search endpoint accepts, in metres.
	MaxRadius = 40000
	// MaxResults is the largest page the search endpoint returns.
	MaxResults   = 50
	DefaultLimit = 20
	DefaultSort  = "distance"

	searchPath   = "/businesses/search"
	businessPath = "/businesses/"
)

// DefaultCategories are searched when the caller names none.
var DefaultCategories = []string{
	"restaurants",
	"bars",
	"cocktailbars",
	"pubs",
	"beerbar",
	"wine_bars",
	"sportsbars",
	"gastropubs",
	"breweries",
	"nightlife",
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond limits outgoing calls; zero disables the limit.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the business search API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a client. Missing values fall back to the public endpoint and a
// 10 second timeout.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Search runs a business search around the given coordinates.
func (c *Client) Search(ctx context.Context, params state.SearchParams) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.get(ctx, searchPath, SearchQuery(params), &out); err != nil {
		return nil, fmt.Errorf("search businesses: %w", err)
	}
	return &out, nil
}

// GetDetails fetches the full record of one business.
func (c *Client) GetDetails(ctx context.Context, id string) (*BusinessDetails, error) {
	var out BusinessDetails
	if err := c.get(ctx, businessPath+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get business %s: %w", id, err)
	}
	return &out, nil
}

// GetReviews fetches the review excerpts of one business.
func (c *Client) GetReviews(ctx context.Context, id string) (*ReviewsResponse, error) {
	var out ReviewsResponse
	if err := c.get(ctx, businessPath+url.PathEscape(id)+"/reviews", nil, &out); err != nil {
		return nil, fmt.Errorf("get reviews for %s: %w", id, err)
	}
	return &out, nil
}

// GetPhotos fetches the photo URLs of one business. Only paid plans serve it.
func (c *Client) GetPhotos(ctx context.Context, id string) (*PhotosResponse, error) {
	var out PhotosResponse
	if err := c.get(ctx, businessPath+url.PathEscape(id)+"/photos", nil, &out); err != nil {
		return nil, fmt.Errorf("get photos for %s: %w", id, err)
	}
	return &out, nil
}

// SearchQuery converts domain search parameters into the query string the
// search endpoint expects. Unset optional fields are omitted.
func SearchQuery(p state.SearchParams) url.Values {
	q := url.Values{}
	q.Set("latitude", formatFloat(p.Latitude))
	q.Set("longitude", formatFloat(p.Longitude))

	if p.Radius > 0 {
		q.Set("radius", strconv.Itoa(int(min(MilesToMeters(p.Radius), MaxRadius))))
	}
	if p.Term != "" {
		q.Set("term", p.Term)
	}

	categories := p.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	q.Set("categories", strings.Join(categories, ","))

	if len(p.Price) > 0 {
		levels := make([]string, len(p.Price))
		for i, l := range p.Price {
			levels[i] = strconv.Itoa(l)
		}
		q.Set("price", strings.Join(levels, ","))
	}

	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = DefaultSort
	}
	q.Set("sort_by", sortBy)

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q.Set("limit", strconv.Itoa(min(limit, MaxResults)))

	if p.OpenNow != nil {
		q.Set("open_now", strconv.FormatBool(*p.OpenNow))
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	log := logger.WithComponent("yelp")

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return transportError(ctx, ctx.Err())
		}
		// the wait would outlive ctx's deadline
		return apperr.Wrap(apperr.RateLimited, err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperr.Wrap(apperr.GenericError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	log.Debugf("GET %s", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warnf("request %s failed: %v", path, err)
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, err)
	}
	log.Debugf("response %d %s", resp.StatusCode, path)

	if resp.StatusCode != http.StatusOK {
		return apperr.FromStatus(resp.StatusCode, errorDetail(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(apperr.GenericError, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// errorDetail pulls the human readable reason out of an error body.
func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	if d := gjson.GetBytes(body, "error.description"); d.Exists() {
		return d.String()
	}
	return gjson.GetBytes(body, "message").String()
}

// transportError classifies a failure that produced no response.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.Timeout, err)
	}
	return apperr.Wrap(apperr.NetworkError, err)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
