// Package githubapi calls the GitHub REST API for the collector. The caller
// authenticates with the configured token, classifies failures so the fetch
// loop can decide between retry, wait and skip, and reports every response's
// rate-limit headers to the shared quota tracker.
package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/pkg/log"
)

var (
	// ErrTransient marks failures worth retrying with backoff.
	ErrTransient = errors.New("transient github api failure")
	// ErrNoMoreResults means the search window is exhausted for this query.
	ErrNoMoreResults = errors.New("no more search results")
)

// RateLimitError means the quota is spent; fetching must pause until Reset.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github api rate limit reached, resets at %s", e.Reset.Format(time.RFC3339))
}

type RateInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateSink receives the rate-limit headers of every response. The collector
// plugs the shared quota tracker in here.
type RateSink interface {
	Update(remaining int, reset time.Time)
}

type Caller struct {
	Logger log.Logger
	Config *cfg.Config
	Sink   RateSink
	client *http.Client
}

func NewCaller(logger log.Logger, config *cfg.Config, sink RateSink) *Caller {
	timeout := time.Duration(config.GithubApi.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Caller{
		Logger: logger,
		Config: config,
		Sink:   sink,
		client: &http.Client{Timeout: timeout},
	}
}

// SearchRepositories fetches one page of the repository search for a
// language, most starred first. An empty location leaves the qualifier out.
func (c *Caller) SearchRepositories(ctx context.Context, language, location string, page, perPage int) (*SearchPage, error) {
	query := fmt.Sprintf("language:%s stars:>=%d", language, c.Config.GithubApi.MinStars)
	if location != "" {
		query += fmt.Sprintf(" location:%s", location)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	fullUrl := fmt.Sprintf("%s/search/repositories?%s", c.Config.GithubApi.BaseUrl, params.Encode())

	result := &SearchPage{}
	rate, err := c.do(ctx, fullUrl, result)
	result.Rate = rate
	if err != nil {
		return nil, err
	}

	c.Logger.Debug(ctx, "search %s page %d: %d items of %d total, %d calls remaining",
		language, page, len(result.Items), result.TotalCount, rate.Remaining)
	return result, nil
}

// User fetches the full profile of one login.
func (c *Caller) User(ctx context.Context, login string) (*UserProfile, error) {
	fullUrl := fmt.Sprintf("%s/users/%s", c.Config.GithubApi.BaseUrl, url.PathEscape(login))
	profile := &UserProfile{}
	if _, err := c.do(ctx, fullUrl, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UserRepos fetches a login's repositories, most recently pushed first.
func (c *Caller) UserRepos(ctx context.Context, login string, perPage int) ([]RepoItem, error) {
	params := url.Values{}
	params.Set("sort", "pushed")
	params.Set("per_page", strconv.Itoa(perPage))
	fullUrl := fmt.Sprintf("%s/users/%s/repos?%s", c.Config.GithubApi.BaseUrl, url.PathEscape(login), params.Encode())

	var repos []RepoItem
	if _, err := c.do(ctx, fullUrl, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *Caller) do(ctx context.Context, fullUrl string, out interface{}) (RateInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, nil)
	if err != nil {
		return RateInfo{Remaining: -1}, err
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.Config.GithubApi.AccessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", c.Config.GithubApi.AccessToken))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return RateInfo{Remaining: -1}, ctx.Err()
		}
		return RateInfo{Remaining: -1}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	rate := parseRateInfo(resp.Header)
	if c.Sink != nil && rate.Remaining >= 0 {
		c.Sink.Update(rate.Remaining, rate.Reset)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		reset := rate.Reset
		if retryAfter := parseRetryAfter(resp.Header); !retryAfter.IsZero() {
			reset = retryAfter
		}
		if rate.Remaining == 0 || !reset.IsZero() {
			if c.Sink != nil {
				c.Sink.Update(0, reset)
			}
			return rate, &RateLimitError{Reset: reset}
		}
		return rate, fmt.Errorf("github api refused the request: %s", resp.Status)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return rate, ErrNoMoreResults
	case resp.StatusCode >= 500:
		return rate, fmt.Errorf("%w: server returned %s", ErrTransient, resp.Status)
	default:
		return rate, fmt.Errorf("unexpected github api response: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return rate, fmt.Errorf("%w: decoding response: %v", ErrTransient, err)
	}
	return rate, nil
}

func parseRateInfo(h http.Header) RateInfo {
	info := RateInfo{Remaining: -1}
	if v := h.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Limit = n
		}
	}
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.Reset = time.Unix(sec, 0)
		}
	}
	return info
}

func parseRetryAfter(h http.Header) time.Time {
	v := h.Get("Retry-After")
	if v == "" {
		return time.Time{}
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Now().Add(time.Duration(seconds) * time.Second)
	}
	return time.Time{}
}
