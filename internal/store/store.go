// Package store defines the transactional document store the quiz engine runs on.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrNotFound is returned by Tx.Get for a missing document.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by an implementation when a transaction lost a
	// write race. RunTransaction retries it and never surfaces it.
	ErrConflict = errors.New("transaction conflict")
	// ErrAborted is returned once every retry of a transaction has conflicted.
	ErrAborted = errors.New("transaction aborted: too many conflicts")
)

// Tx is one attempt at a transaction. Reads observe a consistent snapshot;
// writes are buffered and only become visible if the attempt commits.
type Tx interface {
	// Get decodes the document coll/id into dst.
	Get(ctx context.Context, coll, id string, dst any) error
	// List returns the ids of every document in coll, sorted.
	List(ctx context.Context, coll string) ([]string, error)
	// Set replaces the document coll/id.
	Set(coll, id string, v any) error
	// Counter reads a numeric counter; missing counters are zero.
	Counter(ctx context.Context, coll, id string) (int64, error)
	// Increment adds delta to a counter at commit time without reading it.
	Increment(coll, id string, delta int64)
}

// Store runs transactions.
type Store interface {
	// RunTransaction runs fn until it commits without conflict or the retry
	// budget is exhausted. An error from fn discards every buffered write.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Now returns the store's clock.
	Now(ctx context.Context) (time.Time, error)
}

// RetryPolicy bounds how many attempts a transaction gets.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy is used when the configuration leaves the policy empty.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, InitialBackoff: 10 * time.Millisecond}

// Retry calls attempt until it returns something other than ErrConflict.
// Conflicts past the budget become ErrAborted.
func Retry(ctx context.Context, policy RetryPolicy, attempt func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultRetryPolicy.InitialBackoff
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialBackoff
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.MaxAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := attempt()
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
	if errors.Is(err, ErrConflict) {
		return ErrAborted
	}
	return err
}
