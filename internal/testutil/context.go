package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext creates a context with a 5 second timeout that is cancelled on cleanup.
func NewTestContext(t *testing.T) context.Context {
	t.Helper()

	return NewTestContextWithTimeout(t, 5*time.Second)
}

// NewTestContextWithTimeout creates a context with a custom timeout.
func NewTestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)

	return ctx
}
