// Package lookup queries the read-only knowledge sources used for scoring:
// Wikidata sitelinks, Reddit search engagement and Wikipedia pageviews.
//
// Every call is time-boxed and shares one rate limiter. Callers decide how to
// degrade on error; this package only reports it.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
)

// ErrRateLimited is returned when an upstream answers 429
var ErrRateLimited = errors.New("rate limited by upstream")

// Config holds endpoints and limits
type Config struct {
	WikidataEndpoint  string
	RedditEndpoint    string
	WikipediaEndpoint string
	PageviewsEndpoint string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// DefaultConfig returns the public endpoints
func DefaultConfig() Config {
	return Config{
		WikidataEndpoint:  "https://www.wikidata.org/w/api.php",
		RedditEndpoint:    "https://www.reddit.com/search.json",
		WikipediaEndpoint: "https://en.wikipedia.org/w/api.php",
		PageviewsEndpoint: "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article/en.wikipedia.org/all-access/all-agents",
		UserAgent:         "PhraseCurator/1.0 (party game phrase curation)",
		Timeout:           8 * time.Second,
		RequestsPerSecond: 5,
	}
}

// Client performs rate-limited JSON GETs
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger
	now     func() time.Time
}

// NewClient creates a lookup client
func NewClient(cfg Config, logger *logging.Logger) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.WithComponent("lookup"),
		now:     time.Now,
	}
}

// getJSON fetches endpoint?params into out. It returns found=false on 404.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) (bool, error) {
	if endpoint == "" {
		return false, fmt.Errorf("lookup endpoint not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return false, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%s returned status %d", req.URL.Host, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode %s response: %w", req.URL.Host, err)
	}
	return true, nil
}
