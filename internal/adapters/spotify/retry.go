package spotify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultMaxRetries = 3
	defaultBackoffMs  = 500

	// defaultRateLimitWait applies to a 429 without a usable Retry-After.
	defaultRateLimitWait = 5 * time.Second
)

// doRequestWithRetry issues one GET and repeats it on 429 and 5xx, at most
// maxRetries times. Transport failures are returned without retrying.
// On exhaustion the last response is returned together with an error.
func (c *Client) doRequestWithRetry(ctx context.Context, rawURL, bearer string) (*resty.Response, error) {
	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	baseBackoff := c.baseBackoff
	if baseBackoff <= 0 {
		baseBackoff = time.Duration(defaultBackoffMs) * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("spotify adapter: request canceled: %w", err)
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(bearer).
			SetHeader("Accept", "application/json").
			Get(rawURL)
		if err != nil {
			return nil, fmt.Errorf("spotify adapter: %w", err)
		}

		delay, retry := shouldRetry(resp, attempt, baseBackoff)
		if !retry {
			return resp, nil
		}

		if attempt == maxRetries {
			return resp, fmt.Errorf("spotify adapter: request failed after %d attempts: status %d", attempt+1, resp.StatusCode())
		}

		log.Printf("WARN spotify adapter: retry attempt %d/%d after status %d, waiting %s", attempt+1, maxRetries, resp.StatusCode(), delay)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// shouldRetry decides whether resp warrants another attempt and how long to
// wait first. A 429 waits for Retry-After (5s when absent). A 5xx honors
// Retry-After when present and otherwise backs off exponentially.
func shouldRetry(resp *resty.Response, attempt int, baseBackoff time.Duration) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		if wait, ok := parseRetryAfter(resp.Header()); ok {
			return wait, true
		}
		return defaultRateLimitWait, true
	case status >= http.StatusInternalServerError:
		if wait, ok := parseRetryAfter(resp.Header()); ok {
			return wait, true
		}
		return baseBackoff * time.Duration(1<<attempt), true
	}

	return 0, false
}

// parseRetryAfter reads Retry-After as delta-seconds or an HTTP date.
// ok is false when the header is absent or unparsable; a date in the past
// yields a zero wait.
func parseRetryAfter(h http.Header) (time.Duration, bool) {
	retryAfter := strings.TrimSpace(h.Get("Retry-After"))
	if retryAfter == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		return max(time.Until(when), 0), true
	}

	return 0, false
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("spotify adapter: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
