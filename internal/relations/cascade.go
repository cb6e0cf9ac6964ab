package relations

import (
	"context"

	"example.com/tuitergraph/internal/models"
)

// Cascade deletions tear down every relation of one kind anchored to a
// user. Each operation is its own unit: there is no multi-kind transaction,
// and a failure in one does not roll back the others. Callers compose the
// cascades they need.

// RemoveAllFollowersOf removes every follow targeting the user.
func (s *Service) RemoveAllFollowersOf(ctx context.Context, user string) (models.Outcome, error) {
	if err := validateIDs(user); err != nil {
		return models.Outcome{}, err
	}
	return s.store.DeleteByObject(ctx, models.KindFollow, user)
}

// RemoveAllFollowsOf removes every follow the user initiated.
func (s *Service) RemoveAllFollowsOf(ctx context.Context, user string) (models.Outcome, error) {
	if err := validateIDs(user); err != nil {
		return models.Outcome{}, err
	}
	return s.store.DeleteBySubject(ctx, models.KindFollow, user)
}

// RemoveAllBookmarksOf removes every bookmark the user made.
func (s *Service) RemoveAllBookmarksOf(ctx context.Context, user string) (models.Outcome, error) {
	if err := validateIDs(user); err != nil {
		return models.Outcome{}, err
	}
	return s.store.DeleteBySubject(ctx, models.KindBookmark, user)
}

// RemoveAllSentMessagesOf purges every message the user sent.
func (s *Service) RemoveAllSentMessagesOf(ctx context.Context, user string) (models.Outcome, error) {
	if err := validateIDs(user); err != nil {
		return models.Outcome{}, err
	}
	return s.store.DeleteBySubject(ctx, models.KindMessage, user)
}

// RemoveAllReceivedMessagesOf purges every message the user received.
func (s *Service) RemoveAllReceivedMessagesOf(ctx context.Context, user string) (models.Outcome, error) {
	if err := validateIDs(user); err != nil {
		return models.Outcome{}, err
	}
	return s.store.DeleteByObject(ctx, models.KindMessage, user)
}
