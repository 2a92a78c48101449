package profilestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/driftlock/recall/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	owner_id TEXT PRIMARY KEY,
	prominent_topics TEXT NOT NULL DEFAULT '[]',
	representative_conversations TEXT NOT NULL DEFAULT '[]',
	narrative_overviews TEXT NOT NULL DEFAULT '[]',
	key_questions TEXT NOT NULL DEFAULT '[]',
	emerging_trends TEXT NOT NULL DEFAULT '[]',
	user_sentiments TEXT NOT NULL DEFAULT '[]',
	people_mentions TEXT NOT NULL DEFAULT '[]',
	interaction_count INTEGER NOT NULL DEFAULT 0,
	last_interaction_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// SQLiteStore implements Store using an embedded SQLite database. List
// fields are stored as JSON text columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed profile store at path.
// Use ":memory:" for an ephemeral store in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one writer; serialize access through a single
	// connection to avoid SQLITE_BUSY under concurrent enrichment.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetDB returns the underlying database connection.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// Get retrieves the profile for an owner.
func (s *SQLiteStore) Get(ctx context.Context, ownerID string) (*types.Profile, error) {
	const query = `
		SELECT owner_id, prominent_topics, representative_conversations,
		       narrative_overviews, key_questions, emerging_trends,
		       user_sentiments, people_mentions, interaction_count,
		       last_interaction_at, created_at, updated_at
		FROM profiles WHERE owner_id = ?
	`
	row := s.db.QueryRowContext(ctx, query, ownerID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get profile for owner %s: %w", ownerID, err)
	}
	return p, nil
}

// Put inserts or fully replaces the profile row for profile.OwnerID.
func (s *SQLiteStore) Put(ctx context.Context, profile *types.Profile) error {
	cols, err := marshalLists(profile)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal profile for owner %s: %w", profile.OwnerID, err)
	}

	const query = `
		INSERT INTO profiles (
			owner_id, prominent_topics, representative_conversations,
			narrative_overviews, key_questions, emerging_trends,
			user_sentiments, people_mentions, interaction_count,
			last_interaction_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			prominent_topics = excluded.prominent_topics,
			representative_conversations = excluded.representative_conversations,
			narrative_overviews = excluded.narrative_overviews,
			key_questions = excluded.key_questions,
			emerging_trends = excluded.emerging_trends,
			user_sentiments = excluded.user_sentiments,
			people_mentions = excluded.people_mentions,
			interaction_count = excluded.interaction_count,
			last_interaction_at = excluded.last_interaction_at,
			updated_at = excluded.updated_at
	`

	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := profile.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, query,
		profile.OwnerID,
		cols.topics, cols.conversations, cols.narratives, cols.questions,
		cols.trends, cols.sentiments, cols.people,
		profile.InteractionCount, profile.LastInteractionAt, createdAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to put profile for owner %s: %w", profile.OwnerID, err)
	}
	return nil
}

// Delete removes the profile for an owner. Missing rows are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, ownerID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE owner_id = ?", ownerID); err != nil {
		return fmt.Errorf("sqlite: failed to delete profile for owner %s: %w", ownerID, err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time assertion.
var _ Store = (*SQLiteStore)(nil)

// listColumns carries the JSON-encoded list fields of a profile row.
type listColumns struct {
	topics, conversations, narratives, questions, trends, sentiments, people []byte
}

func marshalLists(p *types.Profile) (listColumns, error) {
	var cols listColumns
	var err error
	if cols.topics, err = json.Marshal(p.ProminentTopics); err != nil {
		return cols, err
	}
	if cols.conversations, err = json.Marshal(p.RepresentativeConversations); err != nil {
		return cols, err
	}
	if cols.narratives, err = json.Marshal(p.NarrativeOverviews); err != nil {
		return cols, err
	}
	if cols.questions, err = json.Marshal(p.KeyQuestions); err != nil {
		return cols, err
	}
	if cols.trends, err = json.Marshal(p.EmergingTrends); err != nil {
		return cols, err
	}
	if cols.sentiments, err = json.Marshal(p.UserSentiments); err != nil {
		return cols, err
	}
	if cols.people, err = json.Marshal(p.PeopleMentions); err != nil {
		return cols, err
	}
	return cols, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*types.Profile, error) {
	var p types.Profile
	var topics, conversations, narratives, questions, trends, sentiments, people []byte
	var lastInteraction sql.NullTime

	err := row.Scan(
		&p.OwnerID, &topics, &conversations, &narratives, &questions,
		&trends, &sentiments, &people, &p.InteractionCount,
		&lastInteraction, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastInteraction.Valid {
		p.LastInteractionAt = lastInteraction.Time
	}

	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{topics, &p.ProminentTopics},
		{conversations, &p.RepresentativeConversations},
		{narratives, &p.NarrativeOverviews},
		{questions, &p.KeyQuestions},
		{trends, &p.EmergingTrends},
		{sentiments, &p.UserSentiments},
		{people, &p.PeopleMentions},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("corrupt profile column: %w", err)
		}
	}

	return &p, nil
}
