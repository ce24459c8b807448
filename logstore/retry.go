// retry.go wraps a Store with bounded retries for transient I/O failures.
//
// Only reads, listings, deletes, and idempotent overwrites are retried.
// PutIfAbsent is deliberately passed through untouched: after a transport
// error its write may or may not have landed, and a blind retry would
// observe its own first attempt as ErrAlreadyExists. Resolving that
// ambiguity requires reading the published version back, which is the
// commit coordinator's job, not the store's.
package logstore

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryOptions bounds the retry loop.
type RetryOptions struct {
	// MaxAttempts is the total number of tries per operation, including
	// the first. Minimum 1.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; it doubles per
	// attempt with up to 50% jitter added.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration
}

// DefaultRetryOptions returns the defaults: 4 attempts, 50ms base, 2s cap.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 4,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Retrying is a Store decorator that retries transient failures of the
// inner store.
type Retrying struct {
	inner Store
	opts  RetryOptions
}

// NewRetrying wraps inner with the given retry bounds.
func NewRetrying(inner Store, opts RetryOptions) *Retrying {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultRetryOptions().BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultRetryOptions().MaxDelay
	}
	return &Retrying{inner: inner, opts: opts}
}

// retryable reports whether err is a transient store failure. Definitive
// outcomes (absent, taken, cancelled) are never retried.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// do runs op up to MaxAttempts times with exponential backoff and jitter.
func (r *Retrying) do(ctx context.Context, op func() error) error {
	delay := r.opts.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if !retryable(err) || attempt >= r.opts.MaxAttempts {
			return err
		}
		jittered := delay + time.Duration(rand.Int64N(int64(delay)))
		if jittered > r.opts.MaxDelay {
			jittered = r.opts.MaxDelay
		}
		timer := time.NewTimer(jittered)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay < r.opts.MaxDelay {
			delay *= 2
		}
	}
}

// List implements Store.
func (r *Retrying) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := r.do(ctx, func() error {
		var err error
		names, err = r.inner.List(ctx, prefix)
		return err
	})
	return names, err
}

// Read implements Store.
func (r *Retrying) Read(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.do(ctx, func() error {
		var err error
		data, err = r.inner.Read(ctx, name)
		return err
	})
	return data, err
}

// Put implements Store. Put is a full atomic replace, so retrying it is
// idempotent.
func (r *Retrying) Put(ctx context.Context, name string, data []byte) error {
	return r.do(ctx, func() error {
		return r.inner.Put(ctx, name, data)
	})
}

// PutIfAbsent implements Store. Never retried; see the package comment.
func (r *Retrying) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	return r.inner.PutIfAbsent(ctx, name, data)
}

// Delete implements Store. A retried delete that finds the object already
// gone reports success: the first attempt's outcome was delivery, not loss.
func (r *Retrying) Delete(ctx context.Context, name string) error {
	first := true
	return r.do(ctx, func() error {
		err := r.inner.Delete(ctx, name)
		if errors.Is(err, ErrNotFound) && !first {
			return nil
		}
		first = false
		return err
	})
}
