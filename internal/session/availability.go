package session

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

// Ping checks once whether the endpoint answers.
type Ping func(ctx context.Context) error

// WaitForAvailability polls ping every interval until it succeeds or
// timeout elapses. It returns false on timeout or cancellation.
func WaitForAvailability(ctx context.Context, ping Ping, timeout, interval time.Duration) bool {
	logger := zap.S().Named("session")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if ping(ctx) == nil {
		return true
	}

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20, Mean: 0})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warnw("endpoint did not become available", "timeout", timeout)
			return false
		case <-ticker.C:
			err := ping(ctx)
			if err == nil {
				return true
			}
			logger.Debugw("endpoint not available yet", "error", err)
		}
	}
}
