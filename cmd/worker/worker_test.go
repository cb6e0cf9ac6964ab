package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	appkafka "example.com/tuitergraph/internal/broker"
	"example.com/tuitergraph/internal/models"
	"example.com/tuitergraph/internal/relations"
	"example.com/tuitergraph/internal/store"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// runWorkerOnce processes a single teardown event for testing.
func runWorkerOnce(ctx context.Context, w *Worker) error {
	msg, err := w.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if len(msg.Value) == 0 {
		return nil
	}

	var event models.TeardownEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}

	w.teardown(ctx, event.UserID)
	return nil
}

func teardownMessage(userID string) kafka.Message {
	data, _ := json.Marshal(models.TeardownEvent{UserID: userID, RequestedAt: time.Now()})
	return kafka.Message{Key: []byte("account_deleted"), Value: data}
}

// ---------- Positive test ----------

func TestWorker_RunsAllCascades(t *testing.T) {
	mockStore := store.NewMock()
	svc := relations.New(mockStore)
	ctx := context.Background()

	doomed := uuid.NewString()
	friend := uuid.NewString()
	other := uuid.NewString()
	tuit := uuid.NewString()

	// Relations anchored to the doomed user on both sides.
	svc.Follow(ctx, doomed, friend)
	svc.Follow(ctx, friend, doomed)
	svc.Bookmark(ctx, doomed, tuit)
	svc.SendMessage(ctx, doomed, friend, "bye")
	svc.SendMessage(ctx, friend, doomed, "stay")

	// An unrelated relation that must survive.
	svc.Follow(ctx, friend, other)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{teardownMessage(doomed)},
	}
	w := New(svc, mockKafka, 1, 1)

	runCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := runWorkerOnce(runCtx, w); err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	if following, _ := svc.Following(ctx, doomed); len(following) != 0 {
		t.Fatalf("doomed user still follows %d users", len(following))
	}
	if followers, _ := svc.Followers(ctx, doomed); len(followers) != 0 {
		t.Fatalf("doomed user still has %d followers", len(followers))
	}
	if marks, _ := svc.Bookmarks(ctx, doomed); len(marks) != 0 {
		t.Fatalf("doomed user still has %d bookmarks", len(marks))
	}
	if sent, _ := svc.SentMessages(ctx, doomed); len(sent) != 0 {
		t.Fatalf("doomed user still has %d sent messages", len(sent))
	}
	if received, _ := svc.ReceivedMessages(ctx, doomed); len(received) != 0 {
		t.Fatalf("doomed user still has %d received messages", len(received))
	}

	// Unrelated relation survived the teardown.
	if following, _ := svc.Following(ctx, friend); len(following) != 1 {
		t.Fatal("unrelated follow was removed by teardown")
	}
}

// ---------- Negative tests ----------

func TestWorker_InvalidEventJSON(t *testing.T) {
	mockStore := store.NewMock()
	svc := relations.New(mockStore)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: []byte("not json")}},
	}
	w := New(svc, mockKafka, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runWorkerOnce(ctx, w); err == nil {
		t.Fatal("expected JSON decode error")
	}
}

func TestWorker_ReadFailure(t *testing.T) {
	svc := relations.New(store.NewMock())
	w := New(svc, &appkafka.MockKafkaFail{}, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runWorkerOnce(ctx, w); err == nil {
		t.Fatal("expected read error")
	}
}

// teardown over a failing store logs and moves on; no panic, no retry loop
func TestWorker_StoreFailureDoesNotPanic(t *testing.T) {
	svc := relations.New(&store.MockStoreFail{})
	w := New(svc, &appkafka.MockKafka{}, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.teardown(ctx, uuid.NewString())
}

func TestWorker_Defaults(t *testing.T) {
	svc := relations.New(store.NewMock())
	w := New(svc, &appkafka.MockKafka{}, 0, 0)
	if w.workerCount <= 0 {
		t.Fatal("worker count default not applied")
	}
	if w.jobQueueSize <= 0 {
		t.Fatal("job queue size default not applied")
	}
}
