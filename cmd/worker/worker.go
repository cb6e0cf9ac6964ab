package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/tuitergraph/internal/broker"
	"example.com/tuitergraph/internal/logger"
	"example.com/tuitergraph/internal/models"
	"example.com/tuitergraph/internal/relations"
)

var logg = logger.New()

// Worker consumes account-teardown events from Kafka and runs the relation
// cascades for each torn-down user concurrently.
type Worker struct {
	relations    *relations.Service
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(svc *relations.Service, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		relations:    svc,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}(i)
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			select {
			case jobs <- msg.Value:
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
			}
		}
	}
}

// processLoop decodes teardown events and runs the cascades.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-jobs:
			if !ok {
				return
			}

			var event models.TeardownEvent
			if err := json.Unmarshal(data, &event); err != nil {
				logg.Error("worker", "Invalid JSON in Kafka message", err)
				continue
			}

			w.teardown(ctx, event.UserID)
		}
	}
}

// teardown runs every per-kind cascade for one user. Each cascade is its
// own unit: one failing does not stop or roll back the others.
func (w *Worker) teardown(ctx context.Context, userID string) {
	cascades := []struct {
		name string
		run  func(context.Context, string) (models.Outcome, error)
	}{
		{"followers", w.relations.RemoveAllFollowersOf},
		{"follows", w.relations.RemoveAllFollowsOf},
		{"bookmarks", w.relations.RemoveAllBookmarksOf},
		{"sent messages", w.relations.RemoveAllSentMessagesOf},
		{"received messages", w.relations.RemoveAllReceivedMessagesOf},
	}

	var wg sync.WaitGroup
	for _, c := range cascades {
		wg.Add(1)
		go func(name string, run func(context.Context, string) (models.Outcome, error)) {
			defer wg.Done()
			out, err := run(ctx, userID)
			if err != nil {
				logg.Error("worker", "Cascade failed: "+name, err)
				return
			}
			logg.Info("worker", fmt.Sprintf("Cascade %s removed %d relations (user ID anonymized)", name, out.Removed))
		}(c.name, c.run)
	}
	wg.Wait()

	logg.Info("worker", "Teardown completed (user ID anonymized)")
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}
	return nil
}
