package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// backgroundTimeout bounds every fire-and-forget write.
const backgroundTimeout = 5 * time.Second

// background runs best-effort writes off the request path. Errors and panics are logged, never returned.
type background struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// Go runs fn in a goroutine with context.Background() and backgroundTimeout,
// so request cancellation does not abort the write.
func (b *background) Go(op string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.logger.Error("background task panicked", zap.String("op", op), zap.Any("panic", rec))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.logger.Warn("background task failed", zap.String("op", op), zap.Error(err))
		}
	}()
}

// Wait blocks until all started tasks finish.
func (b *background) Wait() {
	b.wg.Wait()
}
