package utils

import "context"

// CheckContext returns ctx.Err() without blocking.
func CheckContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
