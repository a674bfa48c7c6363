package nonce

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/linkguard/pkg/logger"
)

// Purger is implemented by stores that need expired records removed explicitly.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// RunPurger calls p.Purge every interval until ctx is cancelled.
// Failures are logged and the loop keeps going.
func RunPurger(ctx context.Context, p Purger, interval time.Duration, clock func() time.Time, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx, clock())
			if err != nil {
				log.WarnContext(ctx, "nonce purge failed", logger.Error(err))
				continue
			}
			if n > 0 {
				log.DebugContext(ctx, "purged expired nonces", slog.Int64("count", n))
			}
		}
	}
}
