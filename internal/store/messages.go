package store

import (
	"context"
	"time"

	"example.com/tuitergraph/internal/models"
	"github.com/gocql/gocql"
)

// --- Message operations ---
//
// Messages are unbounded per (sender, recipient) pair, so no CAS arbiter.
// Three tables: messages_by_sender and messages_by_recipient cluster on
// (sent_on, message_id) ascending for time-ordered listings, and messages
// keys by message_id alone so a single message can be deleted by its own
// key, the way the original per-message delete works.

// CreateMessage stores one direct message in all three tables as a logged
// batch. The message id is a TimeUUID so ids are monotone with sent_on.
func (s *Store) CreateMessage(ctx context.Context, sender, recipient, body string) (models.Message, error) {
	id := gocql.TimeUUID().String()
	sentOn := time.Now().UTC()

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO messages (message_id, sender_id, recipient_id, body, sent_on) VALUES (?, ?, ?, ?, ?)`,
		id, sender, recipient, body, sentOn)
	batch.Query(`INSERT INTO messages_by_sender (sender_id, sent_on, message_id, recipient_id, body) VALUES (?, ?, ?, ?, ?)`,
		sender, sentOn, id, recipient, body)
	batch.Query(`INSERT INTO messages_by_recipient (recipient_id, sent_on, message_id, sender_id, body) VALUES (?, ?, ?, ?, ?)`,
		recipient, sentOn, id, sender, body)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to store message", err)
		return models.Message{}, storageErr(err)
	}

	logg.Info("store", "Message stored (IDs and content anonymized)")
	return models.Message{ID: id, SenderID: sender, RecipientID: recipient, Body: body, SentOn: sentOn}, nil
}

// DeleteMessage removes one message by its own id. Removed=0 if absent.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) (models.Outcome, error) {
	var sender, recipient string
	var sentOn time.Time
	err := s.Session.Query(
		`SELECT sender_id, recipient_id, sent_on FROM messages WHERE message_id = ?`,
		messageID,
	).WithContext(ctx).Scan(&sender, &recipient, &sentOn)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Outcome{Removed: 0}, nil
		}
		logg.Error("store", "Failed to look up message", err)
		return models.Outcome{}, storageErr(err)
	}

	if err := s.deleteMessageRows(ctx, messageID, sender, recipient, sentOn); err != nil {
		return models.Outcome{}, err
	}

	logg.Info("store", "Message deleted (IDs anonymized)")
	return models.Outcome{Removed: 1}, nil
}

func (s *Store) deleteMessageRows(ctx context.Context, id, sender, recipient string, sentOn time.Time) error {
	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM messages WHERE message_id = ?`, id)
	batch.Query(`DELETE FROM messages_by_sender WHERE sender_id = ? AND sent_on = ? AND message_id = ?`,
		sender, sentOn, id)
	batch.Query(`DELETE FROM messages_by_recipient WHERE recipient_id = ? AND sent_on = ? AND message_id = ?`,
		recipient, sentOn, id)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete message rows", err)
		return storageErr(err)
	}
	return nil
}

// ListSentMessages returns every message a user sent, oldest first.
func (s *Store) ListSentMessages(ctx context.Context, sender string) ([]models.Message, error) {
	iter := s.Session.Query(
		`SELECT message_id, recipient_id, body, sent_on FROM messages_by_sender WHERE sender_id = ?`,
		sender,
	).WithContext(ctx).Iter()

	var id, recipient, body string
	var sentOn time.Time
	var res []models.Message
	for iter.Scan(&id, &recipient, &body, &sentOn) {
		res = append(res, models.Message{ID: id, SenderID: sender, RecipientID: recipient, Body: body, SentOn: sentOn})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list sent messages", err)
		return nil, storageErr(err)
	}
	return res, nil
}

// ListReceivedMessages returns every message a user received, oldest first.
func (s *Store) ListReceivedMessages(ctx context.Context, recipient string) ([]models.Message, error) {
	iter := s.Session.Query(
		`SELECT message_id, sender_id, body, sent_on FROM messages_by_recipient WHERE recipient_id = ?`,
		recipient,
	).WithContext(ctx).Iter()

	var id, sender, body string
	var sentOn time.Time
	var res []models.Message
	for iter.Scan(&id, &sender, &body, &sentOn) {
		res = append(res, models.Message{ID: id, SenderID: sender, RecipientID: recipient, Body: body, SentOn: sentOn})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list received messages", err)
		return nil, storageErr(err)
	}
	return res, nil
}

// DeleteSentMessages purges everything a user sent.
func (s *Store) DeleteSentMessages(ctx context.Context, sender string) (models.Outcome, error) {
	msgs, err := s.ListSentMessages(ctx, sender)
	if err != nil {
		return models.Outcome{}, err
	}

	removed := 0
	for _, m := range msgs {
		if err := s.deleteMessageRows(ctx, m.ID, m.SenderID, m.RecipientID, m.SentOn); err != nil {
			return models.Outcome{Removed: removed}, err
		}
		removed++
	}
	return models.Outcome{Removed: removed}, nil
}

// DeleteReceivedMessages purges everything a user received.
func (s *Store) DeleteReceivedMessages(ctx context.Context, recipient string) (models.Outcome, error) {
	msgs, err := s.ListReceivedMessages(ctx, recipient)
	if err != nil {
		return models.Outcome{}, err
	}

	removed := 0
	for _, m := range msgs {
		if err := s.deleteMessageRows(ctx, m.ID, m.SenderID, m.RecipientID, m.SentOn); err != nil {
			return models.Outcome{Removed: removed}, err
		}
		removed++
	}
	return models.Outcome{Removed: removed}, nil
}
