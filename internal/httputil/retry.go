// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP retry policy shared by every outbound
// client: the arXiv fetcher, the Slack and Notion sinks and the chat
// completions annotators.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RetryBaseDelay and RetryMaxDelay bound the exponential backoff between
// attempts. Tests override these to avoid real sleeps.
var (
	RetryBaseDelay = 4 * time.Second
	RetryMaxDelay  = 10 * time.Second
)

// DefaultAttempts is the total number of attempts made when the caller
// passes zero.
const DefaultAttempts = 3

const maxErrorBody = 4 << 10

// StatusError is returned when the final attempt produced a non-success
// HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Backoff returns the delay before retry number attempt (0-based):
// RetryBaseDelay doubled per attempt, capped at RetryMaxDelay.
func Backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if d > RetryMaxDelay {
		d = RetryMaxDelay
	}
	return d
}

// RetryPolicy reports whether a response with the given HTTP status is
// worth another attempt. Transport errors are always retried.
type RetryPolicy func(code int) bool

// RetryTransient retries HTTP 429 and 5xx responses.
func RetryTransient(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// RetryAnyStatus retries every HTTP error status, 4xx included.
func RetryAnyStatus(code int) bool { return code >= 400 }

// DoWithRetry executes req under the RetryTransient policy. See
// DoWithRetryPolicy.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, attempts int, log zerolog.Logger) (*http.Response, error) {
	return DoWithRetryPolicy(ctx, client, req, attempts, RetryTransient, log)
}

// DoWithRetryPolicy executes req, retrying transport errors and the HTTP
// statuses accepted by policy with exponential backoff (4s, 8s, capped at
// 10s by default). A nil policy means RetryTransient.
//
// attempts is the total number of tries; zero means DefaultAttempts. The
// request body, if any, is replayed from req.GetBody on each retry. A
// response with status >= 400 that is not retried, or that remains after
// the last attempt, is drained, closed and reported as a *StatusError.
// On success the caller owns resp.Body. If the context is cancelled during
// a backoff wait the function returns ctx.Err().
func DoWithRetryPolicy(ctx context.Context, client *http.Client, req *http.Request, attempts int, policy RetryPolicy, log zerolog.Logger) (*http.Response, error) {
	if policy == nil {
		policy = RetryTransient
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := Backoff(attempt - 1)
			log.Warn().Err(lastErr).Str("url", req.URL.Redacted()).
				Dur("backoff", wait).Int("attempt", attempt+1).Int("of", attempts).
				Msg("retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		r := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode < 400 {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(body)}

		if !policy(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
