package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry bounds the HTTP providers' attempts. Transport errors, 429 and 5xx
// are retried with exponential backoff; the last response is returned as-is.
type Retry struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultRetry = Retry{
	MaxAttempts:     15,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     20 * time.Second,
}

func (r Retry) attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

func (r Retry) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		b.MaxInterval = r.MaxInterval
	}
	// bounded by attempts, not elapsed time
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.attempts()-1)), ctx)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// do sends the request built by newReq until it gets a non-retryable
// response or runs out of attempts. newReq is called once per attempt.
func (r Retry) do(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	var (
		resp    *http.Response
		attempt int
	)
	op := func() error {
		attempt++
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		res, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if retryableStatus(res.StatusCode) && attempt < r.attempts() {
			_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4*1024))
			res.Body.Close()
			return fmt.Errorf("status %d", res.StatusCode)
		}
		resp = res
		return nil
	}

	if err := backoff.Retry(op, r.backOff(ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}
