package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than limit goroutines are running.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, limit)
		}
		return nil
	}
}

// FreshnessCheck fails when last reports a time older than maxAge. A zero
// time passes, so a component that has not run yet is not penalized.
func FreshnessCheck(last func() time.Time, maxAge time.Duration) CheckFunc {
	return func(context.Context) error {
		t := last()
		if t.IsZero() {
			return nil
		}
		if age := time.Since(t); age > maxAge {
			return errors.Errorf("last success %s ago exceeds %s", age.Round(time.Second), maxAge)
		}
		return nil
	}
}
