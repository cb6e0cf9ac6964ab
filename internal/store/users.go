package store

import (
	"context"

	"example.com/tuitergraph/internal/models"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// --- User operations ---

// GetUserIDByUsername returns the existing user_id by username.
// If the user does not exist, it returns empty string without an error.
func (s *Store) GetUserIDByUsername(ctx context.Context, username string) (string, error) {
	var id string
	err := s.Session.Query(
		`SELECT user_id FROM users_by_username WHERE username = ?`,
		username,
	).WithContext(ctx).Scan(&id)
	if err != nil {
		if err == gocql.ErrNotFound {
			return "", nil
		}
		logg.Error("store", "Failed to query user by username", err)
		return "", storageErr(err)
	}
	return id, nil
}

// CreateUser creates a new user if the username does not exist.
// Returns the existing user_id if username already exists.
func (s *Store) CreateUser(ctx context.Context, username string) (string, error) {
	existingID, err := s.GetUserIDByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if existingID != "" {
		return existingID, nil
	}

	id := uuid.NewString()

	// CAS on the username table decides who owns the name.
	prev := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO users_by_username (username, user_id)
		VALUES (?, ?) IF NOT EXISTS`,
		username, id,
	).WithContext(ctx).MapScanCAS(prev)
	if err != nil {
		logg.Error("store", "Failed to create username entry", err)
		return "", storageErr(err)
	}

	if !applied {
		// Another process already created this user
		return s.GetUserIDByUsername(ctx, username)
	}

	err = s.Session.Query(`
		INSERT INTO users (user_id, username)
		VALUES (?, ?)`,
		id, username,
	).WithContext(ctx).Exec()
	if err != nil {
		logg.Error("store", "Failed to create user in main table", err)
		return "", storageErr(err)
	}

	logg.Info("store", "User created successfully (username anonymized)")
	return id, nil
}

// --- Tuit operations ---

// GetTuit returns one tuit by id. The second return is false if the tuit
// does not exist.
func (s *Store) GetTuit(ctx context.Context, tuitID string) (models.Tuit, bool, error) {
	var tuit models.Tuit
	err := s.Session.Query(`
		SELECT tuit_id, author_id, body, posted_on FROM tuits WHERE tuit_id = ?`,
		tuitID,
	).WithContext(ctx).Scan(&tuit.ID, &tuit.AuthorID, &tuit.Body, &tuit.PostedOn)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Tuit{}, false, nil
		}
		logg.Error("store", "Failed to query tuit", err)
		return models.Tuit{}, false, storageErr(err)
	}
	return tuit, true, nil
}

// CreateTuit stores a tuit so reactions and bookmarks have a target.
func (s *Store) CreateTuit(ctx context.Context, tuit models.Tuit) error {
	if err := s.Session.Query(`
		INSERT INTO tuits (tuit_id, author_id, body, posted_on)
		VALUES (?, ?, ?, ?)`,
		tuit.ID, tuit.AuthorID, tuit.Body, tuit.PostedOn,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to store tuit", err)
		return storageErr(err)
	}

	logg.Info("store", "Tuit stored (content anonymized)")
	return nil
}
