package store

import (
	"context"
	"fmt"
	"path/filepath"

	config "example.com/tuitergraph/internal/init"
	"example.com/tuitergraph/internal/logger"
	"example.com/tuitergraph/internal/models"
	"github.com/gocql/gocql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/cassandra"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

var logg = logger.New()

// --- Interfaces ---

type SessionInterface interface {
	Query(stmt string, values ...interface{}) *gocql.Query
	NewBatch(batchType gocql.BatchType) *gocql.Batch
	ExecuteBatch(batch *gocql.Batch) error
	Close()
}

// StoreInterface is the abstract document store the relation core is built
// against: create, single delete, bulk delete, find-by-endpoint, and an
// atomic create-if-absent for uniqueness-bounded kinds.
type StoreInterface interface {
	// Generic relation engine (Follow, Like, Dislike, Bookmark).
	Exists(ctx context.Context, kind models.Kind, subject, object string) (bool, error)
	CreateRelation(ctx context.Context, kind models.Kind, subject, object string) (models.Relation, error)
	DeleteRelation(ctx context.Context, kind models.Kind, subject, object string) (models.Outcome, error)
	DeleteBySubject(ctx context.Context, kind models.Kind, subject string) (models.Outcome, error)
	DeleteByObject(ctx context.Context, kind models.Kind, object string) (models.Outcome, error)
	ListBySubject(ctx context.Context, kind models.Kind, subject string) ([]models.Relation, error)
	ListByObject(ctx context.Context, kind models.Kind, object string) ([]models.Relation, error)
	CountByObject(ctx context.Context, kind models.Kind, object string) (int, error)

	// Messages carry a payload and are exempt from uniqueness.
	CreateMessage(ctx context.Context, sender, recipient, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) (models.Outcome, error)
	ListSentMessages(ctx context.Context, sender string) ([]models.Message, error)
	ListReceivedMessages(ctx context.Context, recipient string) ([]models.Message, error)

	// Users and tuits exist so relations have endpoints to point at.
	CreateUser(ctx context.Context, username string) (string, error)
	GetUserIDByUsername(ctx context.Context, username string) (string, error)
	CreateTuit(ctx context.Context, tuit models.Tuit) error
	GetTuit(ctx context.Context, tuitID string) (models.Tuit, bool, error)

	Close()
}

// tableSpec maps a relation kind to its dual-table layout: one table
// partitioned by subject, a mirror partitioned by object. Both carry the
// columns (subject_id, object_id, created_at); the by-subject table is the
// uniqueness arbiter for conditional writes.
type tableSpec struct {
	bySubject string
	byObject  string
}

var relationTables = map[models.Kind]tableSpec{
	models.KindFollow:   {bySubject: "follows_by_follower", byObject: "follows_by_followee"},
	models.KindLike:     {bySubject: "likes_by_user", byObject: "likes_by_tuit"},
	models.KindDislike:  {bySubject: "dislikes_by_user", byObject: "dislikes_by_tuit"},
	models.KindBookmark: {bySubject: "bookmarks_by_user", byObject: "bookmarks_by_tuit"},
}

// --- Store Implementation ---

type Store struct {
	Session SessionInterface
}

// New initializes Cassandra connection using config package.
func New() (StoreInterface, error) {
	cfg := config.Get()

	if err := ensureKeyspace(cfg); err != nil {
		return nil, fmt.Errorf("failed to ensure keyspace: %w", err)
	}

	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Keyspace = cfg.CassandraKeyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.CassandraTimeout
	cluster.ConnectTimeout = cfg.CassandraTimeout

	if cfg.CassandraUsername != "" && cfg.CassandraPassword != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.CassandraUsername,
			Password: cfg.CassandraPassword,
		}
	}

	if cfg.CassandraDC != "" {
		cluster.HostFilter = gocql.DataCentreHostFilter(cfg.CassandraDC)
	}

	sess, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	logg.Info("store", "Connected to Cassandra keyspace (host anonymized)")
	return &Store{Session: sess}, nil
}

// --- Ensure keyspace exists before migrations ---

func ensureKeyspace(cfg *config.Config) error {
	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Keyspace = "system"
	sess, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("failed to connect to Cassandra system keyspace: %w", err)
	}
	defer sess.Close()

	query := fmt.Sprintf(`
        CREATE KEYSPACE IF NOT EXISTS %s
        WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1};
    `, cfg.CassandraKeyspace)

	if err := sess.Query(query).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace: %w", err)
	}

	logg.Info("store", "Ensured Cassandra keyspace exists (keyspace name anonymized)")
	return nil
}

// --- Migration runner ---

func runMigrations(cfg *config.Config) error {
	migrationsPath := filepath.Join("./migrations/cassandra")
	sourceURL := fmt.Sprintf("file://%s", migrationsPath)
	dbURL := fmt.Sprintf(
		"cassandra://%s/%s?x-migrations-table=schema_migrations&x-multi-statement=true",
		cfg.CassandraHost, cfg.CassandraKeyspace,
	)

	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

// storageErr wraps a driver failure in the taxonomy the core exposes.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// Close gracefully closes Cassandra session.
func (s *Store) Close() {
	if s.Session != nil {
		s.Session.Close()
		logg.Info("store", "Cassandra session closed")
	}
}
