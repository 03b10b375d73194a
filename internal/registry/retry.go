package registry

import (
	"net/http"
	"strconv"
	"time"
)

// retryTransport wraps an http.RoundTripper with retry logic for transient
// failures: network errors, 429, and 5xx gateway statuses. It applies
// exponential backoff and respects Retry-After headers. Client errors other
// than 429 are returned immediately; a 404 is an answer, not a hiccup.
type retryTransport struct {
	base           http.RoundTripper
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		reqClone := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			reqClone.Body = body
		}

		resp, err := base.RoundTrip(reqClone)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			if attempt < t.maxRetries {
				t.sleep(req, t.backoff(attempt, nil))
				continue
			}
			return nil, lastErr
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastResp = resp
		lastErr = nil

		if attempt < t.maxRetries {
			resp.Body.Close()
			t.sleep(req, t.backoff(attempt, resp))
			continue
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

// sleep waits for d or until the request context is cancelled.
func (t *retryTransport) sleep(req *http.Request, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-req.Context().Done():
	}
}

// backoff computes the wait before the next attempt, honoring Retry-After.
func (t *retryTransport) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				return min(time.Duration(seconds)*time.Second, t.maxBackoff)
			}
			if at, err := http.ParseTime(retryAfter); err == nil {
				d := time.Until(at)
				if d < 0 {
					return t.initialBackoff
				}
				return min(d, t.maxBackoff)
			}
		}
	}

	// Exponential: initial * 2^attempt, capped.
	return min(t.initialBackoff*(1<<attempt), t.maxBackoff)
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
