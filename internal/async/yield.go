package async

import (
	"context"
	"runtime"
)

// Yield hands control back to the Go scheduler for one tick, respecting ctx
// cancellation. The engine calls this between consecutive item executions
// on a non-paused run so event handlers and external callers can observe
// interleaving state.
func Yield(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runtime.Gosched()
}
