package relations

import (
	"context"
	"fmt"
	"sync"

	"example.com/tuitergraph/internal/logger"
	"example.com/tuitergraph/internal/models"
	"example.com/tuitergraph/internal/store"
	"github.com/google/uuid"
)

var logg = logger.New()

// Service is a stateless facade over an injected store handle, replacing
// the one-shared-instance-per-kind access objects the data model implies.
// Per-test store instances give test isolation for free.
type Service struct {
	store store.StoreInterface

	// pairLocks serializes the reaction toggle per (user, tuit) pair.
	// Striped so unrelated pairs never contend.
	pairLocks [pairLockStripes]sync.Mutex
}

// New creates a relation service over the given store.
func New(st store.StoreInterface) *Service {
	return &Service{store: st}
}

// validateIDs rejects malformed identifiers before any store call is made,
// so a bad request can never leave a partial effect.
func validateIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%w: %q", store.ErrInvalidIdentity, id)
		}
	}
	return nil
}

// --- Follow ---

// Follow records that follower follows followee. Following the same user
// twice yields store.ErrDuplicateRelation.
func (s *Service) Follow(ctx context.Context, follower, followee string) (models.Relation, error) {
	if err := validateIDs(follower, followee); err != nil {
		return models.Relation{}, err
	}
	return s.store.CreateRelation(ctx, models.KindFollow, follower, followee)
}

// Unfollow removes the follow if present. Idempotent.
func (s *Service) Unfollow(ctx context.Context, follower, followee string) (models.Outcome, error) {
	if err := validateIDs(follower, followee); err != nil {
		return models.Outcome{}, err
	}
	return s.store.DeleteRelation(ctx, models.KindFollow, follower, followee)
}

// Followers lists everyone following the user.
func (s *Service) Followers(ctx context.Context, user string) ([]models.Relation, error) {
	if err := validateIDs(user); err != nil {
		return nil, err
	}
	return s.store.ListByObject(ctx, models.KindFollow, user)
}

// Following lists everyone the user follows.
func (s *Service) Following(ctx context.Context, user string) ([]models.Relation, error) {
	if err := validateIDs(user); err != nil {
		return nil, err
	}
	return s.store.ListBySubject(ctx, models.KindFollow, user)
}

// --- Bookmark ---

func (s *Service) Bookmark(ctx context.Context, user, tuit string) (models.Relation, error) {
	if err := validateIDs(user, tuit); err != nil {
		return models.Relation{}, err
	}
	return s.store.CreateRelation(ctx, models.KindBookmark, user, tuit)
}

func (s *Service) Unbookmark(ctx context.Context, user, tuit string) (models.Outcome, error) {
	if err := validateIDs(user, tuit); err != nil {
		return models.Outcome{}, err
	}
	return s.store.DeleteRelation(ctx, models.KindBookmark, user, tuit)
}

// Bookmarks lists every tuit the user bookmarked.
func (s *Service) Bookmarks(ctx context.Context, user string) ([]models.Relation, error) {
	if err := validateIDs(user); err != nil {
		return nil, err
	}
	return s.store.ListBySubject(ctx, models.KindBookmark, user)
}

// Bookmarkers lists every user that bookmarked the tuit.
func (s *Service) Bookmarkers(ctx context.Context, tuit string) ([]models.Relation, error) {
	if err := validateIDs(tuit); err != nil {
		return nil, err
	}
	return s.store.ListByObject(ctx, models.KindBookmark, tuit)
}

// --- Reaction listings ---

// Likers lists every user that likes the tuit.
func (s *Service) Likers(ctx context.Context, tuit string) ([]models.Relation, error) {
	if err := validateIDs(tuit); err != nil {
		return nil, err
	}
	return s.store.ListByObject(ctx, models.KindLike, tuit)
}

// LikedTuits lists every tuit the user likes.
func (s *Service) LikedTuits(ctx context.Context, user string) ([]models.Relation, error) {
	if err := validateIDs(user); err != nil {
		return nil, err
	}
	return s.store.ListBySubject(ctx, models.KindLike, user)
}

// Dislikers lists every user that dislikes the tuit.
func (s *Service) Dislikers(ctx context.Context, tuit string) ([]models.Relation, error) {
	if err := validateIDs(tuit); err != nil {
		return nil, err
	}
	return s.store.ListByObject(ctx, models.KindDislike, tuit)
}

// DislikedTuits lists every tuit the user dislikes.
func (s *Service) DislikedTuits(ctx context.Context, user string) ([]models.Relation, error) {
	if err := validateIDs(user); err != nil {
		return nil, err
	}
	return s.store.ListBySubject(ctx, models.KindDislike, user)
}

// --- Aggregation ---

// LikeCount recomputes the like total from the stored relations, so it can
// never drift from them.
func (s *Service) LikeCount(ctx context.Context, tuit string) (int, error) {
	if err := validateIDs(tuit); err != nil {
		return 0, err
	}
	return s.store.CountByObject(ctx, models.KindLike, tuit)
}

// DislikeCount recomputes the dislike total from the stored relations.
func (s *Service) DislikeCount(ctx context.Context, tuit string) (int, error) {
	if err := validateIDs(tuit); err != nil {
		return 0, err
	}
	return s.store.CountByObject(ctx, models.KindDislike, tuit)
}

// --- Messages ---

// SendMessage stores a direct message. The body is assumed already
// validated at the transport edge; the send timestamp is assigned here.
func (s *Service) SendMessage(ctx context.Context, sender, recipient, body string) (models.Message, error) {
	if err := validateIDs(sender, recipient); err != nil {
		return models.Message{}, err
	}
	return s.store.CreateMessage(ctx, sender, recipient, body)
}

// DeleteMessage removes one message by its id. Idempotent.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) (models.Outcome, error) {
	if err := validateIDs(messageID); err != nil {
		return models.Outcome{}, err
	}
	return s.store.DeleteMessage(ctx, messageID)
}

// SentMessages lists messages the user sent, oldest first.
func (s *Service) SentMessages(ctx context.Context, user string) ([]models.Message, error) {
	if err := validateIDs(user); err != nil {
		return nil, err
	}
	return s.store.ListSentMessages(ctx, user)
}

// ReceivedMessages lists messages the user received, oldest first.
func (s *Service) ReceivedMessages(ctx context.Context, user string) ([]models.Message, error) {
	if err := validateIDs(user); err != nil {
		return nil, err
	}
	return s.store.ListReceivedMessages(ctx, user)
}
