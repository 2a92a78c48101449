package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/driftlock/recall/pkg/types"
)

// pgvectorSchema keeps an index registry plus one record table. The embedding
// column is fixed at the default dimension; every index is created with it.
const pgvectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vector_indexes (
	name       TEXT PRIMARY KEY,
	dimension  INTEGER NOT NULL,
	metric     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vector_records (
	index_name TEXT NOT NULL REFERENCES vector_indexes(name) ON DELETE CASCADE,
	namespace  TEXT NOT NULL DEFAULT '',
	id         TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	ts         BIGINT NOT NULL,
	owner_id   TEXT NOT NULL,
	embedding  vector(512) NOT NULL,
	PRIMARY KEY (index_name, namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_vector_records_lookup
	ON vector_records (index_name, namespace);
`

// PgVectorProvider stores vectors in PostgreSQL via the pgvector extension.
// Indexes map to registry rows; namespaces are a column on the record table.
type PgVectorProvider struct {
	db *sql.DB
}

// NewPgVectorProvider connects to PostgreSQL and applies the schema.
func NewPgVectorProvider(dsn string) (*PgVectorProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, pgvectorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PgVectorProvider{db: db}, nil
}

func (p *PgVectorProvider) Name() string { return "pgvector" }

func (p *PgVectorProvider) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO vector_indexes (name, dimension, metric) VALUES ($1, $2, $3)`,
		name, dimension, metric)
	if err != nil {
		return fmt.Errorf("failed to create index %q: %w", name, err)
	}
	return nil
}

func (p *PgVectorProvider) IndexExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vector_indexes WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check index %q: %w", name, err)
	}
	return exists, nil
}

func (p *PgVectorProvider) DeleteIndex(ctx context.Context, name string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM vector_indexes WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete index %q: %w", name, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrIndexNotFound
	}
	return nil
}

func (p *PgVectorProvider) Upsert(ctx context.Context, index, namespace string, records []types.VectorRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_records (index_name, namespace, id, role, content, ts, owner_id, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (index_name, namespace, id) DO UPDATE SET
			role = EXCLUDED.role,
			content = EXCLUDED.content,
			ts = EXCLUDED.ts,
			owner_id = EXCLUDED.owner_id,
			embedding = EXCLUDED.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx, index, namespace, rec.ID, rec.Role, rec.Text,
			rec.Timestamp, rec.OwnerID, pgvector.NewVector(rec.Vector))
		if err != nil {
			return fmt.Errorf("failed to upsert record %q: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

func (p *PgVectorProvider) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]types.Match, error) {
	// Cosine similarity from pgvector's cosine distance operator.
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, role, content, ts, owner_id, 1 - (embedding <=> $1) AS score
		FROM vector_records
		WHERE index_name = $2 AND namespace = $3
		ORDER BY embedding <=> $1
		LIMIT $4`,
		pgvector.NewVector(vector), index, namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []types.Match
	for rows.Next() {
		var m types.Match
		if err := rows.Scan(&m.Record.ID, &m.Record.Role, &m.Record.Text,
			&m.Record.Timestamp, &m.Record.OwnerID, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *PgVectorProvider) DeleteNamespace(ctx context.Context, index, namespace string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM vector_records WHERE index_name = $1 AND namespace = $2`, index, namespace)
	if err != nil {
		return fmt.Errorf("failed to delete namespace %q: %w", namespace, err)
	}
	return nil
}

func (p *PgVectorProvider) Close() error {
	return p.db.Close()
}

var _ Provider = (*PgVectorProvider)(nil)
