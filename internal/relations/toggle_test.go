package relations

import (
	"context"
	"sync"
	"testing"

	"example.com/tuitergraph/internal/models"
	"example.com/tuitergraph/internal/store"
	"github.com/google/uuid"
)

func newTestService() (*Service, *store.MockStore) {
	mockStore := store.NewMock()
	return New(mockStore), mockStore
}

// mustExist asserts the presence/absence of one relation in the store.
func mustExist(t *testing.T, st *store.MockStore, kind models.Kind, subject, object string, want bool) {
	t.Helper()
	got, err := st.Exists(context.Background(), kind, subject, object)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if got != want {
		t.Fatalf("exists(%s, %s, %s) = %v, want %v", kind, subject, object, got, want)
	}
}

// like -> dislike -> none walkthrough with counts checked at every step
func TestSetReaction_LikeDislikeClear(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user := uuid.NewString()
	tuit := uuid.NewString()

	current, err := svc.SetReaction(ctx, user, tuit, models.ReactionLike)
	if err != nil {
		t.Fatalf("like failed: %v", err)
	}
	if current != models.ReactionLike {
		t.Fatalf("expected like, got %s", current)
	}
	if n, _ := svc.LikeCount(ctx, tuit); n != 1 {
		t.Fatalf("expected likeCount=1, got %d", n)
	}

	current, err = svc.SetReaction(ctx, user, tuit, models.ReactionDislike)
	if err != nil {
		t.Fatalf("dislike failed: %v", err)
	}
	if current != models.ReactionDislike {
		t.Fatalf("expected dislike, got %s", current)
	}
	if n, _ := svc.LikeCount(ctx, tuit); n != 0 {
		t.Fatalf("expected likeCount=0 after toggle, got %d", n)
	}
	if n, _ := svc.DislikeCount(ctx, tuit); n != 1 {
		t.Fatalf("expected dislikeCount=1, got %d", n)
	}

	current, err = svc.SetReaction(ctx, user, tuit, models.ReactionNone)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if current != models.ReactionNone {
		t.Fatalf("expected none, got %s", current)
	}
	if n, _ := svc.DislikeCount(ctx, tuit); n != 0 {
		t.Fatalf("expected dislikeCount=0 after clear, got %d", n)
	}
}

// repeating the same reaction is a no-op, not a duplicate
func TestSetReaction_Idempotent(t *testing.T) {
	svc, mockStore := newTestService()
	ctx := context.Background()
	user := uuid.NewString()
	tuit := uuid.NewString()

	for i := 0; i < 2; i++ {
		current, err := svc.SetReaction(ctx, user, tuit, models.ReactionLike)
		if err != nil {
			t.Fatalf("like #%d failed: %v", i+1, err)
		}
		if current != models.ReactionLike {
			t.Fatalf("like #%d: expected like, got %s", i+1, current)
		}
	}

	if n, _ := svc.LikeCount(ctx, tuit); n != 1 {
		t.Fatalf("expected exactly one like relation, got %d", n)
	}
	mustExist(t, mockStore, models.KindLike, user, tuit, true)
	mustExist(t, mockStore, models.KindDislike, user, tuit, false)
}

// after any sequence of toggles at most one reaction exists per pair
func TestSetReaction_MutualExclusion(t *testing.T) {
	svc, mockStore := newTestService()
	ctx := context.Background()
	user := uuid.NewString()
	tuit := uuid.NewString()

	sequence := []models.Reaction{
		models.ReactionLike,
		models.ReactionDislike,
		models.ReactionLike,
		models.ReactionNone,
		models.ReactionDislike,
		models.ReactionDislike,
		models.ReactionLike,
	}
	for _, desired := range sequence {
		if _, err := svc.SetReaction(ctx, user, tuit, desired); err != nil {
			t.Fatalf("SetReaction(%s) failed: %v", desired, err)
		}

		liked, _ := mockStore.Exists(ctx, models.KindLike, user, tuit)
		disliked, _ := mockStore.Exists(ctx, models.KindDislike, user, tuit)
		if liked && disliked {
			t.Fatalf("like and dislike both present after SetReaction(%s)", desired)
		}
	}

	mustExist(t, mockStore, models.KindLike, user, tuit, true)
	mustExist(t, mockStore, models.KindDislike, user, tuit, false)
}

// concurrent like and dislike storms on the same pair must never leave both
func TestSetReaction_ConcurrentSamePair(t *testing.T) {
	svc, mockStore := newTestService()
	ctx := context.Background()
	user := uuid.NewString()
	tuit := uuid.NewString()

	const iterations = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			if _, err := svc.SetReaction(ctx, user, tuit, models.ReactionLike); err != nil {
				t.Errorf("concurrent like failed: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			if _, err := svc.SetReaction(ctx, user, tuit, models.ReactionDislike); err != nil {
				t.Errorf("concurrent dislike failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	liked, _ := mockStore.Exists(ctx, models.KindLike, user, tuit)
	disliked, _ := mockStore.Exists(ctx, models.KindDislike, user, tuit)
	if liked && disliked {
		t.Fatal("like and dislike both present after concurrent toggles")
	}
}

// a corrupted pair with both reactions present is repaired on next toggle
func TestSetReaction_RepairsCorruptedPair(t *testing.T) {
	svc, mockStore := newTestService()
	ctx := context.Background()
	user := uuid.NewString()
	tuit := uuid.NewString()

	// Plant the invalid state directly in the store.
	if _, err := mockStore.CreateRelation(ctx, models.KindLike, user, tuit); err != nil {
		t.Fatalf("seed like failed: %v", err)
	}
	if _, err := mockStore.CreateRelation(ctx, models.KindDislike, user, tuit); err != nil {
		t.Fatalf("seed dislike failed: %v", err)
	}

	current, err := svc.SetReaction(ctx, user, tuit, models.ReactionLike)
	if err != nil {
		t.Fatalf("SetReaction on corrupted pair failed: %v", err)
	}
	if current != models.ReactionLike {
		t.Fatalf("expected like after repair, got %s", current)
	}
	mustExist(t, mockStore, models.KindLike, user, tuit, true)
	mustExist(t, mockStore, models.KindDislike, user, tuit, false)
}

// count equals the number of distinct liking users across interleavings
func TestLikeCount_MatchesRelations(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	tuit := uuid.NewString()

	users := make([]string, 5)
	for i := range users {
		users[i] = uuid.NewString()
	}

	for _, u := range users {
		if _, err := svc.SetReaction(ctx, u, tuit, models.ReactionLike); err != nil {
			t.Fatalf("like failed: %v", err)
		}
	}
	// two users flip to dislike, one clears
	svc.SetReaction(ctx, users[0], tuit, models.ReactionDislike)
	svc.SetReaction(ctx, users[1], tuit, models.ReactionDislike)
	svc.SetReaction(ctx, users[2], tuit, models.ReactionNone)

	likes, err := svc.LikeCount(ctx, tuit)
	if err != nil {
		t.Fatalf("LikeCount failed: %v", err)
	}
	if likes != 2 {
		t.Fatalf("expected likeCount=2, got %d", likes)
	}

	likers, err := svc.Likers(ctx, tuit)
	if err != nil {
		t.Fatalf("Likers failed: %v", err)
	}
	if len(likers) != likes {
		t.Fatalf("count %d disagrees with %d listed likers", likes, len(likers))
	}

	dislikes, _ := svc.DislikeCount(ctx, tuit)
	if dislikes != 2 {
		t.Fatalf("expected dislikeCount=2, got %d", dislikes)
	}
}

func TestSetReaction_RejectsMalformedIDs(t *testing.T) {
	svc, mockStore := newTestService()
	ctx := context.Background()

	if _, err := svc.SetReaction(ctx, "not-a-uuid", uuid.NewString(), models.ReactionLike); err == nil {
		t.Fatal("expected error for malformed user id")
	}
	if len(mockStore.Relations) != 0 {
		t.Fatal("malformed id must not leave any stored relation")
	}
}

func TestReaction_ReadsCurrentState(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user := uuid.NewString()
	tuit := uuid.NewString()

	if current, _ := svc.Reaction(ctx, user, tuit); current != models.ReactionNone {
		t.Fatalf("expected none before any toggle, got %s", current)
	}

	svc.SetReaction(ctx, user, tuit, models.ReactionDislike)
	if current, _ := svc.Reaction(ctx, user, tuit); current != models.ReactionDislike {
		t.Fatalf("expected dislike, got %s", current)
	}
}
