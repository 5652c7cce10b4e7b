package osuapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mania-tracker/internal/config"
	"mania-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

const (
	baseURL  = "https://osu.ppy.sh/api/v2"
	tokenURL = "https://osu.ppy.sh/oauth/token"

	// tokenSlack refreshes the OAuth token this long before expiry.
	tokenSlack = 5 * time.Minute
)

// Client talks to the osu! v2 API over fasthttp. Transient failures
// (transport errors, 429, 5xx) are retried once after a fixed delay;
// 4xx responses are terminal.
type Client struct {
	clientID     string
	clientSecret string
	retryDelay   time.Duration
	client       *fasthttp.Client
	logger       zerolog.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	usage atomic.Int64
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		clientID:     cfg.OsuClientID,
		clientSecret: cfg.OsuClientSecret,
		retryDelay:   cfg.APIRetryDelay,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger.With().Str("component", "osuapi").Logger(),
	}
}

// Usage returns the number of API calls issued since startup.
func (c *Client) Usage() int64 {
	return c.usage.Load()
}

// GetUser fetches a player's profile and mania statistics.
func (c *Client) GetUser(ctx context.Context, userID int64) (*User, error) {
	url := fmt.Sprintf("%s/users/%d/mania", baseURL, userID)
	return doRequest[User](ctx, c, fasthttp.MethodGet, url, nil)
}

// GetUserByName resolves a username to a profile.
func (c *Client) GetUserByName(ctx context.Context, username string) (*User, error) {
	url := fmt.Sprintf("%s/users/%s/mania", baseURL, username)
	return doRequest[User](ctx, c, fasthttp.MethodGet, url, nil)
}

// GetScores fetches a player's scores of the given kind ("recent" or
// "best"). Failed plays are excluded.
func (c *Client) GetScores(ctx context.Context, userID int64, kind string, limit int) ([]Score, error) {
	url := fmt.Sprintf("%s/users/%d/scores/%s?mode=mania&include_fails=0&limit=%d", baseURL, userID, kind, limit)
	scores, err := doRequest[[]Score](ctx, c, fasthttp.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return *scores, nil
}

// GetBeatmap fetches map metadata.
func (c *Client) GetBeatmap(ctx context.Context, mapID int64) (*Beatmap, error) {
	url := fmt.Sprintf("%s/beatmaps/%d", baseURL, mapID)
	return doRequest[Beatmap](ctx, c, fasthttp.MethodGet, url, nil)
}

// GetBeatmapAttributes fetches mod-adjusted difficulty attributes.
func (c *Client) GetBeatmapAttributes(ctx context.Context, mapID int64, mods domain.ModSet) (*BeatmapAttributes, error) {
	url := fmt.Sprintf("%s/beatmaps/%d/attributes", baseURL, mapID)
	body := map[string]any{"mods": []string(mods), "ruleset": "mania"}
	resp, err := doRequest[attributesResponse](ctx, c, fasthttp.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	return &resp.Attributes, nil
}

// GetRankings fetches one page of the performance ranking, optionally
// filtered by country.
func (c *Client) GetRankings(ctx context.Context, country string, page int) (*Rankings, error) {
	url := fmt.Sprintf("%s/rankings/mania/performance?page=%d", baseURL, page)
	if country != "" {
		url += "&country=" + country
	}
	return doRequest[Rankings](ctx, c, fasthttp.MethodGet, url, nil)
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > tokenSlack {
		return c.token, nil
	}

	c.logger.Debug().Msg("refreshing oauth token")

	body, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "client_credentials",
		"scope":         "public",
	})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(tokenURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	c.usage.Add(1)

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("token request failed: status %d", resp.StatusCode())
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body(), &tok); err != nil {
		return "", fmt.Errorf("token response decode failed: %w", err)
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)

	return c.token, nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if deadline, ok := ctx.Deadline(); ok {
		return c.client.DoDeadline(req, resp, deadline)
	}
	return c.client.Do(req, resp)
}

func doRequest[T any](ctx context.Context, c *Client, method, url string, body any) (*T, error) {
	var result *T

	backoff := retry.WithMaxRetries(1, retry.NewConstant(c.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		token, err := c.bearer(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(method)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return err
			}
			req.Header.SetContentType("application/json")
			req.SetBody(payload)
		}

		if err := c.do(ctx, req, resp); err != nil {
			c.logger.Warn().Err(err).Str("url", url).Msg("request transport failure")
			return retry.RetryableError(err)
		}
		c.usage.Add(1)

		status := resp.StatusCode()
		if status >= 500 || status == fasthttp.StatusTooManyRequests {
			c.logger.Warn().Int("status", status).Str("url", url).Msg("transient API failure")
			return retry.RetryableError(fmt.Errorf("API error: %d", status))
		}
		if status != fasthttp.StatusOK {
			return fmt.Errorf("API error: %d", status)
		}

		var decoded T
		if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
			return fmt.Errorf("decode %s: %w", pathOf(url), err)
		}
		result = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func pathOf(url string) string {
	if i := strings.Index(url, "/api/v2"); i >= 0 {
		return url[i:]
	}
	return url
}
