package utils

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/lib/pq"
)

// IsTransient reports whether err looks like a temporary infrastructure
// failure: a timeout, a dropped connection or a Postgres connection-class
// error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == "57P01", pqErr.Code == "53300", pqErr.Code == "57014":
			return true
		}
	}
	return false
}

// RetryOnce runs fn with a per-attempt timeout and repeats it a single time
// when the first attempt fails transiently and parent is still live. Only
// idempotent operations may be wrapped.
func RetryOnce(parent context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	attempt := func() error {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return fn(ctx)
	}
	err := attempt()
	if err == nil || !IsTransient(err) || parent.Err() != nil {
		return err
	}
	return attempt()
}
