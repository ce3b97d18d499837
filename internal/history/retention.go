package history

import (
	"context"
	"log"
	"time"
)

// Pruner deletes archived runs older than a cutoff.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneLoop deletes runs older than retention every interval until ctx is done.
// A zero retention keeps runs forever and returns immediately.
func PruneLoop(ctx context.Context, p Pruner, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		prune(ctx, p, time.Now().Add(-retention))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func prune(ctx context.Context, p Pruner, cutoff time.Time) {
	n, err := p.DeleteBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Failed to prune runs: %v", err)
		}
		return
	}
	if n > 0 {
		log.Printf("Pruned %d runs completed before %s", n, cutoff.Format(time.RFC3339))
	}
}
