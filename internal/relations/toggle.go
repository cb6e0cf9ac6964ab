package relations

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"example.com/tuitergraph/internal/models"
	"example.com/tuitergraph/internal/store"
)

const pairLockStripes = 64

// pairLock returns the mutex stripe for a (user, tuit) pair. Both reaction
// kinds for the same pair always land on the same stripe.
func (s *Service) pairLock(user, tuit string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(user))
	h.Write([]byte{'|'})
	h.Write([]byte(tuit))
	return &s.pairLocks[h.Sum32()%pairLockStripes]
}

// SetReaction moves the user's reaction on a tuit to the desired state,
// keeping Like and Dislike mutually exclusive. The read-modify-write runs
// under the pair's mutex so a concurrent like and dislike for the same pair
// cannot both land; the store's conditional create additionally turns a
// losing same-kind writer from another process into a no-op.
func (s *Service) SetReaction(ctx context.Context, user, tuit string, desired models.Reaction) (models.Reaction, error) {
	if err := validateIDs(user, tuit); err != nil {
		return models.ReactionNone, err
	}

	mu := s.pairLock(user, tuit)
	mu.Lock()
	defer mu.Unlock()

	liked, err := s.store.Exists(ctx, models.KindLike, user, tuit)
	if err != nil {
		return models.ReactionNone, err
	}
	disliked, err := s.store.Exists(ctx, models.KindDislike, user, tuit)
	if err != nil {
		return models.ReactionNone, err
	}

	// Integrity guard: both existing violates mutual exclusion. Delete both
	// and continue from a clean slate.
	if liked && disliked {
		logg.Error("relations", "Like and dislike both present for one pair, repairing", nil)
		if _, err := s.store.DeleteRelation(ctx, models.KindLike, user, tuit); err != nil {
			return models.ReactionNone, err
		}
		if _, err := s.store.DeleteRelation(ctx, models.KindDislike, user, tuit); err != nil {
			return models.ReactionNone, err
		}
		liked, disliked = false, false
	}

	current := models.ReactionNone
	switch {
	case liked:
		current = models.ReactionLike
	case disliked:
		current = models.ReactionDislike
	}

	if current == desired {
		return current, nil
	}

	// Remove the previous reaction first. A failure past this point leaves
	// current=None, which is a valid state, not a corrupt one.
	switch current {
	case models.ReactionLike:
		if _, err := s.store.DeleteRelation(ctx, models.KindLike, user, tuit); err != nil {
			return models.ReactionNone, err
		}
	case models.ReactionDislike:
		if _, err := s.store.DeleteRelation(ctx, models.KindDislike, user, tuit); err != nil {
			return models.ReactionNone, err
		}
	}

	switch desired {
	case models.ReactionLike:
		if _, err := s.store.CreateRelation(ctx, models.KindLike, user, tuit); err != nil && !errors.Is(err, store.ErrDuplicateRelation) {
			return models.ReactionNone, err
		}
	case models.ReactionDislike:
		if _, err := s.store.CreateRelation(ctx, models.KindDislike, user, tuit); err != nil && !errors.Is(err, store.ErrDuplicateRelation) {
			return models.ReactionNone, err
		}
	}

	return desired, nil
}

// Reaction reads the current reaction state for a (user, tuit) pair.
func (s *Service) Reaction(ctx context.Context, user, tuit string) (models.Reaction, error) {
	if err := validateIDs(user, tuit); err != nil {
		return models.ReactionNone, err
	}

	liked, err := s.store.Exists(ctx, models.KindLike, user, tuit)
	if err != nil {
		return models.ReactionNone, err
	}
	if liked {
		return models.ReactionLike, nil
	}

	disliked, err := s.store.Exists(ctx, models.KindDislike, user, tuit)
	if err != nil {
		return models.ReactionNone, err
	}
	if disliked {
		return models.ReactionDislike, nil
	}
	return models.ReactionNone, nil
}
