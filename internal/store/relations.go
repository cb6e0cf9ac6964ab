package store

import (
	"context"
	"fmt"
	"time"

	"example.com/tuitergraph/internal/models"
	"github.com/gocql/gocql"
)

// --- Generic relation operations ---
//
// Each uniqueness-bounded kind lives in two tables: one partitioned by the
// acting user (subject) and a mirror partitioned by the target (object),
// following the same dual-table layout Cassandra wants for two-sided
// lookups. The by-subject table is the arbiter: creates go through a
// lightweight transaction there, and only a winning write touches the
// mirror.

func tables(kind models.Kind) (tableSpec, error) {
	tabs, ok := relationTables[kind]
	if !ok {
		return tableSpec{}, fmt.Errorf("no relation tables for kind %q", kind)
	}
	return tabs, nil
}

// Exists reports whether the (kind, subject, object) relation is stored.
// Absence is not an error.
func (s *Store) Exists(ctx context.Context, kind models.Kind, subject, object string) (bool, error) {
	tabs, err := tables(kind)
	if err != nil {
		return false, err
	}

	var created time.Time
	err = s.Session.Query(
		fmt.Sprintf(`SELECT created_at FROM %s WHERE subject_id = ? AND object_id = ?`, tabs.bySubject),
		subject, object,
	).WithContext(ctx).Scan(&created)
	if err != nil {
		if err == gocql.ErrNotFound {
			return false, nil
		}
		logg.Error("store", "Failed to probe relation existence", err)
		return false, storageErr(err)
	}
	return true, nil
}

// CreateRelation inserts a relation if the pair is absent. A losing
// concurrent writer (or a repeat call) gets ErrDuplicateRelation.
func (s *Store) CreateRelation(ctx context.Context, kind models.Kind, subject, object string) (models.Relation, error) {
	tabs, err := tables(kind)
	if err != nil {
		return models.Relation{}, err
	}

	now := time.Now().UTC()

	// CAS insert into the arbiter table decides the race.
	prev := make(map[string]interface{})
	applied, err := s.Session.Query(
		fmt.Sprintf(`INSERT INTO %s (subject_id, object_id, created_at) VALUES (?, ?, ?) IF NOT EXISTS`, tabs.bySubject),
		subject, object, now,
	).WithContext(ctx).MapScanCAS(prev)
	if err != nil {
		logg.Error("store", "Failed to create relation", err)
		return models.Relation{}, storageErr(err)
	}
	if !applied {
		return models.Relation{}, ErrDuplicateRelation
	}

	if err := s.Session.Query(
		fmt.Sprintf(`INSERT INTO %s (object_id, subject_id, created_at) VALUES (?, ?, ?)`, tabs.byObject),
		object, subject, now,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to mirror relation", err)
		return models.Relation{}, storageErr(err)
	}

	logg.Info("store", "Relation created (IDs anonymized) kind="+string(kind))
	return models.Relation{Kind: kind, SubjectID: subject, ObjectID: object, CreatedAt: now}, nil
}

// DeleteRelation removes one relation from both tables. Idempotent: a
// missing relation yields Removed=0.
func (s *Store) DeleteRelation(ctx context.Context, kind models.Kind, subject, object string) (models.Outcome, error) {
	tabs, err := tables(kind)
	if err != nil {
		return models.Outcome{}, err
	}

	// Cassandra deletes report nothing, so probe first for the count.
	present, err := s.Exists(ctx, kind, subject, object)
	if err != nil {
		return models.Outcome{}, err
	}
	if !present {
		return models.Outcome{Removed: 0}, nil
	}

	if err := s.deletePair(ctx, tabs, subject, object); err != nil {
		return models.Outcome{}, err
	}

	logg.Info("store", "Relation deleted (IDs anonymized) kind="+string(kind))
	return models.Outcome{Removed: 1}, nil
}

// deletePair removes one (subject, object) row from both sides in a logged
// batch so the tables cannot drift apart.
func (s *Store) deletePair(ctx context.Context, tabs tableSpec, subject, object string) error {
	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(fmt.Sprintf(`DELETE FROM %s WHERE subject_id = ? AND object_id = ?`, tabs.bySubject), subject, object)
	batch.Query(fmt.Sprintf(`DELETE FROM %s WHERE object_id = ? AND subject_id = ?`, tabs.byObject), object, subject)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete relation pair", err)
		return storageErr(err)
	}
	return nil
}

// DeleteBySubject removes every relation of the kind where the user acts as
// subject. For messages this purges the user's sent messages.
func (s *Store) DeleteBySubject(ctx context.Context, kind models.Kind, subject string) (models.Outcome, error) {
	if kind == models.KindMessage {
		return s.DeleteSentMessages(ctx, subject)
	}

	rels, err := s.ListBySubject(ctx, kind, subject)
	if err != nil {
		return models.Outcome{}, err
	}

	tabs, _ := tables(kind)
	removed := 0
	for _, rel := range rels {
		if err := s.deletePair(ctx, tabs, rel.SubjectID, rel.ObjectID); err != nil {
			return models.Outcome{Removed: removed}, err
		}
		removed++
	}
	return models.Outcome{Removed: removed}, nil
}

// DeleteByObject removes every relation of the kind targeting the entity.
// For messages this purges the user's received messages.
func (s *Store) DeleteByObject(ctx context.Context, kind models.Kind, object string) (models.Outcome, error) {
	if kind == models.KindMessage {
		return s.DeleteReceivedMessages(ctx, object)
	}

	rels, err := s.ListByObject(ctx, kind, object)
	if err != nil {
		return models.Outcome{}, err
	}

	tabs, _ := tables(kind)
	removed := 0
	for _, rel := range rels {
		if err := s.deletePair(ctx, tabs, rel.SubjectID, rel.ObjectID); err != nil {
			return models.Outcome{Removed: removed}, err
		}
		removed++
	}
	return models.Outcome{Removed: removed}, nil
}

// ListBySubject returns relations where the user is the acting side, e.g.
// everyone a user follows or every tuit a user bookmarked.
func (s *Store) ListBySubject(ctx context.Context, kind models.Kind, subject string) ([]models.Relation, error) {
	tabs, err := tables(kind)
	if err != nil {
		return nil, err
	}

	iter := s.Session.Query(
		fmt.Sprintf(`SELECT object_id, created_at FROM %s WHERE subject_id = ?`, tabs.bySubject),
		subject,
	).WithContext(ctx).Iter()

	var object string
	var created time.Time
	var res []models.Relation
	for iter.Scan(&object, &created) {
		res = append(res, models.Relation{Kind: kind, SubjectID: subject, ObjectID: object, CreatedAt: created})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list relations by subject", err)
		return nil, storageErr(err)
	}
	return res, nil
}

// ListByObject returns relations targeting the entity, e.g. all followers
// of a user or every user that liked a tuit.
func (s *Store) ListByObject(ctx context.Context, kind models.Kind, object string) ([]models.Relation, error) {
	tabs, err := tables(kind)
	if err != nil {
		return nil, err
	}

	iter := s.Session.Query(
		fmt.Sprintf(`SELECT subject_id, created_at FROM %s WHERE object_id = ?`, tabs.byObject),
		object,
	).WithContext(ctx).Iter()

	var subject string
	var created time.Time
	var res []models.Relation
	for iter.Scan(&subject, &created) {
		res = append(res, models.Relation{Kind: kind, SubjectID: subject, ObjectID: object, CreatedAt: created})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list relations by object", err)
		return nil, storageErr(err)
	}
	return res, nil
}

// CountByObject counts relations targeting the entity. The count is always
// recomputed from the stored relations, never from a counter column.
func (s *Store) CountByObject(ctx context.Context, kind models.Kind, object string) (int, error) {
	tabs, err := tables(kind)
	if err != nil {
		return 0, err
	}

	var n int
	err = s.Session.Query(
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE object_id = ?`, tabs.byObject),
		object,
	).WithContext(ctx).Scan(&n)
	if err != nil {
		logg.Error("store", "Failed to count relations", err)
		return 0, storageErr(err)
	}
	return n, nil
}
