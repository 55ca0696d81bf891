// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyward/keyward/pkg/errutil"
)

type fakePinger struct {
	failures int
	calls    int
}

func (f *fakePinger) Ping(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func testBackoff() retry.Backoff {
	return retry.WithMaxRetries(ConnectAttempts-1, retry.NewConstant(time.Millisecond))
}

func TestPingWithRetry_SucceedsAfterFailures(t *testing.T) {
	p := &fakePinger{failures: 2}
	require.NoError(t, pingWithRetry(context.Background(), p, testBackoff()))
	assert.Equal(t, 3, p.calls)
}

func TestPingWithRetry_GivesUp(t *testing.T) {
	p := &fakePinger{failures: 100}
	err := pingWithRetry(context.Background(), p, testBackoff())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	errutil.AssertErrorContext(t, err, "attempts", ConnectAttempts)
	assert.Equal(t, ConnectAttempts, p.calls)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPingWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakePinger{failures: 100}
	err := pingWithRetry(ctx, p, retry.WithMaxRetries(10, retry.NewConstant(time.Hour)))
	require.Error(t, err)
	assert.LessOrEqual(t, p.calls, 1)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}
