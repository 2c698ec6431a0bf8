package embeddings

import (
	"context"
	"errors"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// RateLimited wraps an Embedder with a token-bucket rate limiter and
// exponential-backoff retry on HTTP 429 responses.
type RateLimited struct {
	embedder Embedder
	rpm      int

	mu       sync.Mutex
	tokens   int
	lastFill time.Time

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RateLimitedOption configures a RateLimited embedder.
type RateLimitedOption func(*RateLimited)

// WithRetryPolicy overrides the default 429 retry policy.
func WithRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) RateLimitedOption {
	return func(r *RateLimited) {
		r.maxRetries = maxRetries
		r.baseDelay = baseDelay
		r.maxDelay = maxDelay
	}
}

// NewRateLimited wraps embedder with a limiter that allows at most rpm
// Embed calls per minute.
func NewRateLimited(embedder Embedder, rpm int, opts ...RateLimitedOption) *RateLimited {
	r := &RateLimited{
		embedder:   embedder,
		rpm:        rpm,
		tokens:     rpm,
		lastFill:   time.Now(),
		maxRetries: 5,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RateLimited) Name() string    { return r.embedder.Name() }
func (r *RateLimited) Dimensions() int { return r.embedder.Dimensions() }

// Embed waits for rate-limiter capacity, then calls the wrapped
// embedder, retrying with exponential backoff if the call fails with an
// HTTP 429 (rate limit exceeded) response.
func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(r.baseDelay, r.maxDelay, attempt-1)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		if err := r.wait(ctx); err != nil {
			return nil, err
		}

		embeddings, err := r.embedder.Embed(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if !isRateLimitErr(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// wait blocks until the token bucket has capacity, refilling tokens
// proportionally to elapsed time.
func (r *RateLimited) wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(r.lastFill)

		refill := int(elapsed.Seconds() * float64(r.rpm) / 60.0)
		if refill > 0 {
			r.tokens += refill
			if r.tokens > r.rpm {
				r.tokens = r.rpm
			}
			r.lastFill = now
		}

		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// isRateLimitErr reports whether err represents an HTTP 429 response
// from an embedding provider, regardless of which provider's client
// produced it.
func isRateLimitErr(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429
	}
	return false
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
