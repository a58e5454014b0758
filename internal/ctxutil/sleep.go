// Package ctxutil holds small helpers around context.Context.
package ctxutil

import (
	"context"
	"time"
)

// Sleep waits for d and reports whether it did so before ctx was cancelled.
// A non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
