package scoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"hirelens/internal/services"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 4 * time.Second
)

// RetryPolicy bounds how often a retryable scoring call is attempted.
// MaxAttempts counts the first try; 1 disables retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns three attempts with 500ms..4s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultRetryAttempts,
		BaseDelay:   defaultRetryBaseDelay,
		MaxDelay:    defaultRetryMaxDelay,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRetryAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultRetryBaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

func (p RetryPolicy) apply(client *resty.Client) {
	p = p.normalized()
	client.
		SetRetryCount(p.MaxAttempts - 1).
		SetRetryWaitTime(p.BaseDelay).
		SetRetryMaxWaitTime(p.MaxDelay).
		AddRetryCondition(shouldRetry)
}

// shouldRetry retries transport failures and 408/429/5xx answers. Missing or
// expired credentials and caller cancellation are final.
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthorized),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return false
		}
		return true
	}
	if resp == nil {
		return false
	}
	return retryableStatus(resp.StatusCode())
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}
