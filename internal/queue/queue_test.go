package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"kuberafi/internal/cache"
	"kuberafi/internal/models"
	"kuberafi/internal/paymentmethod"
	"kuberafi/internal/settlement"
)

type stubSettler struct {
	mu    sync.Mutex
	calls map[uint64]int
	errs  map[uint64]error
}

func newStubSettler() *stubSettler {
	return &stubSettler{calls: map[uint64]int{}, errs: map[uint64]error{}}
}

func (s *stubSettler) SettleOrderWithRetry(_ context.Context, orderID uint64) (settlement.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[orderID]++
	if err := s.errs[orderID]; err != nil {
		return settlement.Result{OrderID: orderID}, err
	}
	return settlement.Result{OrderID: orderID, AlreadySettled: s.calls[orderID] > 1, Attempts: 1}, nil
}

func (s *stubSettler) count(orderID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[orderID]
}

func TestWorker_RedeliverySkipsSettledOrder(t *testing.T) {
	settler := newStubSettler()
	w := &Worker{Settler: settler, Dedupe: &cache.Deduper{Store: cache.NewMemoryStore(), TTL: time.Hour}}
	ctx := context.Background()

	evt := NewOrderCompleted(11, SourceLifecycle)
	require.NoError(t, w.Handle(ctx, evt))
	require.NoError(t, w.Handle(ctx, evt))
	require.NoError(t, w.Handle(ctx, NewOrderCompleted(11, SourceReconciler)))
	require.Equal(t, 1, settler.count(11))
}

func TestWorker_ErrorClassification(t *testing.T) {
	settler := newStubSettler()
	settler.errs[1] = fmt.Errorf("x: %w", models.ErrInvalidStatusTransition)
	settler.errs[2] = fmt.Errorf("x: %w", paymentmethod.ErrNoActivePaymentMethod)
	settler.errs[3] = errors.New("db down")
	settler.errs[4] = fmt.Errorf("x: %w", models.ErrInvalidOrder)
	w := &Worker{Settler: settler, Dedupe: &cache.Deduper{Store: cache.NewMemoryStore(), TTL: time.Hour}}
	ctx := context.Background()

	for id := uint64(1); id <= 4; id++ {
		require.NoError(t, w.Handle(ctx, NewOrderCompleted(id, SourceLifecycle)))
		require.NoError(t, w.Handle(ctx, NewOrderCompleted(id, SourceReconciler)))
	}
	require.Equal(t, 1, settler.count(1), "permanent failures are not retried")
	require.Equal(t, 2, settler.count(2), "configuration gaps stay retryable")
	require.Equal(t, 2, settler.count(3), "transient failures stay retryable")
	require.Equal(t, 1, settler.count(4), "malformed orders are not retried")
}

func TestWorker_AbandonedClaimExpires(t *testing.T) {
	settler := newStubSettler()
	dedupe := &cache.Deduper{Store: cache.NewMemoryStore(), TTL: 24 * time.Hour, ClaimTTL: 20 * time.Millisecond}
	w := &Worker{Settler: settler, Dedupe: dedupe}
	ctx := context.Background()

	// A worker that died mid-settlement leaves its claim behind.
	ok, err := dedupe.Claim(ctx, "5")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, w.Handle(ctx, NewOrderCompleted(5, SourceLifecycle)))
	require.Equal(t, 0, settler.count(5), "a live claim holds off concurrent deliveries")

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Handle(ctx, NewOrderCompleted(5, SourceReconciler)))
	require.Equal(t, 1, settler.count(5), "redelivery after the claim expired must settle")

	require.NoError(t, w.Handle(ctx, NewOrderCompleted(5, SourceReconciler)))
	require.Equal(t, 1, settler.count(5))
}

func TestWorker_WithoutDedupe(t *testing.T) {
	settler := newStubSettler()
	w := &Worker{Settler: settler}
	require.NoError(t, w.Handle(context.Background(), NewOrderCompleted(5, SourceLifecycle)))
	require.NoError(t, w.Handle(context.Background(), NewOrderCompleted(5, SourceLifecycle)))
	require.Equal(t, 2, settler.count(5))
	require.NoError(t, w.Handle(context.Background(), OrderCompleted{}))
}

func TestChannelQueue(t *testing.T) {
	q := NewChannelQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[uint64]bool{}
	done := make(chan struct{})
	go func() {
		q.Run(ctx, 2, func(_ context.Context, evt OrderCompleted) error {
			mu.Lock()
			seen[evt.OrderID] = true
			mu.Unlock()
			return nil
		})
		close(done)
	}()

	for id := uint64(1); id <= 4; id++ {
		require.NoError(t, q.Publish(ctx, NewOrderCompleted(id, SourceLifecycle)))
	}
	q.Close()
	<-done

	require.Len(t, seen, 3)
	require.ErrorIs(t, q.Publish(ctx, NewOrderCompleted(9, SourceLifecycle)), ErrQueueClosed)
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaRoundTrip(t *testing.T) {
	w := &fakeWriter{}
	pub := &KafkaPublisher{writer: w}
	evt := NewOrderCompleted(42, SourceLifecycle)
	require.NoError(t, pub.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)
	require.Equal(t, "42", string(w.msgs[0].Key))

	msgs := []kafka.Message{
		{Offset: 0, Value: w.msgs[0].Value},
		{Offset: 1, Value: []byte("not json")},
	}
	reader := &fakeReader{msgs: msgs}
	var got []OrderCompleted
	consumer := &KafkaConsumer{reader: reader, handle: func(_ context.Context, e OrderCompleted) error {
		got = append(got, e)
		return nil
	}}
	require.NoError(t, consumer.Run(context.Background()))

	require.Len(t, got, 1)
	require.Equal(t, evt.EventID, got[0].EventID)
	require.Equal(t, uint64(42), got[0].OrderID)
	require.Equal(t, []int64{0, 1}, reader.committed, "poison messages are skipped, not retried forever")
}

func TestKafkaConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	raw, _ := NewOrderCompleted(1, SourceLifecycle).Encode()
	reader := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: raw}}}
	consumer := &KafkaConsumer{reader: reader, handle: func(context.Context, OrderCompleted) error {
		return errors.New("boom")
	}}
	require.Error(t, consumer.Run(context.Background()))
	require.Empty(t, reader.committed)
}
