package worker

import (
	"context"
	"testing"
	"time"

	appkafka "example.com/tuitergraph/internal/broker"
	"example.com/tuitergraph/internal/relations"
	"example.com/tuitergraph/internal/store"
	"github.com/segmentio/kafka-go"
	"github.com/google/uuid"
)

// TestWorker_GracefulShutdown verifies Run drains its workers and returns
// once the context is cancelled.
func TestWorker_GracefulShutdown(t *testing.T) {
	mockStore := store.NewMock()
	svc := relations.New(mockStore)

	doomed := uuid.NewString()
	friend := uuid.NewString()
	svc.Follow(context.Background(), doomed, friend)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{teardownMessage(doomed)},
	}
	w := New(svc, mockKafka, 2, 4)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Give the worker a moment to consume the queued event, then stop it.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not shut down gracefully within the expected time")
	}

	if following, _ := svc.Following(context.Background(), doomed); len(following) != 0 {
		t.Fatal("queued teardown event was not processed before shutdown")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("worker close error: %v", err)
	}
}
