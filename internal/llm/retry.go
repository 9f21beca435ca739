package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// retryPolicy bounds how often and how long a failed generation is retried.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
	maxDelay time.Duration
}

func policyFor(cfg Config) retryPolicy {
	return retryPolicy{attempts: cfg.MaxRetries, backoff: cfg.RetryBackoff, maxDelay: cfg.RetryMaxDelay}
}

// wait returns the pause before attempt+1. A provider Retry-After wins over
// exponential backoff; both are capped at maxDelay.
func (p retryPolicy) wait(attempt int, err error) time.Duration {
	d := p.backoff << uint(attempt)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		d = apiErr.RetryAfter
	}
	if d <= 0 || d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// retryClient retries transient provider failures according to its policy.
type retryClient struct {
	inner  Client
	policy retryPolicy
	log    logrus.FieldLogger
}

func withRetry(client Client, policy retryPolicy, log logrus.FieldLogger) Client {
	if policy.attempts <= 1 {
		return client
	}
	return &retryClient{inner: client, policy: policy, log: log}
}

func (r *retryClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !transient(err) {
			return nil, err
		}
		if attempt+1 >= r.policy.attempts {
			return nil, fmt.Errorf("llm: giving up after %d attempts: %w", r.policy.attempts, err)
		}

		wait := r.policy.wait(attempt, err)
		r.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"wait":    wait.String(),
		}).Warn("LLM request failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *retryClient) GenerateJSON(ctx context.Context, req *Request, out any) error {
	req.JSONMode = true
	resp, err := r.Generate(ctx, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp.Content, out)
}

// transient reports whether err may succeed on a second try: provider
// throttling or outages, timeouts and dropped connections.
func transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
