package utils

import (
	"context"
	"errors"
	"time"
)

// Returns the provided value, or a default value if the input was zero.
func OrDefault[T comparable](v T, def T) T {
	var zero T
	if v == zero {
		return def
	} else {
		return v
	}
}

// Returns a pointer to a copy of v.
func P[T any](v T) *T {
	return &v
}

func IntMax(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func Must(err error) {
	if err != nil {
		panic(err)
	}
}

var ErrSleepInterrupted = errors.New("sleep interrupted by context cancellation")

func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrSleepInterrupted
	case <-timer.C:
		return nil
	}
}
