// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"context"
	"runtime"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// Throttle bounds the number of password hash computations running at once.
// Each argon2id call holds its full memory cost for the duration of the call.
type Throttle struct {
	sem   *semaphore.Weighted
	limit int64
}

// NewThrottle creates a Throttle admitting up to limit concurrent calls.
// A non-positive limit uses runtime.GOMAXPROCS(0).
func NewThrottle(limit int) *Throttle {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Throttle{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: int64(limit),
	}
}

// Limit returns the maximum number of concurrent calls.
func (t *Throttle) Limit() int {
	return int(t.limit)
}

// Do runs fn once a slot is free. It returns an AUTH_THROTTLED error if ctx
// ends first; fn is not called in that case.
func (t *Throttle) Do(ctx context.Context, fn func() error) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return oops.Code(CodeThrottled).With("limit", t.limit).Wrap(err)
	}
	defer t.sem.Release(1)
	return fn()
}
