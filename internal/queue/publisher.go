package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("queue closed")

type Publisher interface {
	Publish(ctx context.Context, evt OrderCompleted) error
}

type HandlerFunc func(ctx context.Context, evt OrderCompleted) error

// ChannelQueue is the in-process transport used when no brokers are
// configured.
type ChannelQueue struct {
	Logger *zap.Logger

	ch     chan OrderCompleted
	mu     sync.RWMutex
	closed bool
}

func NewChannelQueue(size int) *ChannelQueue {
	if size <= 0 {
		size = 256
	}
	return &ChannelQueue{ch: make(chan OrderCompleted, size)}
}

func (q *ChannelQueue) Publish(ctx context.Context, evt OrderCompleted) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes with the given number of workers until ctx is done or the
// queue is closed and drained.
func (q *ChannelQueue) Run(ctx context.Context, workers int, handle HandlerFunc) {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case evt, ok := <-q.ch:
					if !ok {
						return
					}
					if err := handle(ctx, evt); err != nil && q.Logger != nil {
						q.Logger.Warn("order event handler failed", zap.Uint64("order_id", evt.OrderID), zap.Error(err))
					}
				}
			}
		}()
	}
	wg.Wait()
}

func (q *ChannelQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *ChannelQueue) Len() int {
	return len(q.ch)
}
