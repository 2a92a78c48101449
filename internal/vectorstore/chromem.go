package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/driftlock/recall/pkg/types"
)

// ChromemProvider is an embedded, pure-Go backend built on chromem-go. Each
// index maps to a base collection; namespaces get their own collection named
// "<index>__<namespace>". Useful for local runs and tests where no external
// vector database is available.
type ChromemProvider struct {
	db *chromem.DB
	mu sync.Mutex
}

// NewChromemProvider creates an in-memory chromem backend. If path is
// non-empty the database persists to disk.
func NewChromemProvider(path string) (*ChromemProvider, error) {
	if path == "" {
		return &ChromemProvider{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem database: %w", err)
	}
	return &ChromemProvider{db: db}, nil
}

func (p *ChromemProvider) Name() string { return "chromem" }

func collectionName(index, namespace string) string {
	if namespace == "" {
		return index
	}
	return index + "__" + namespace
}

func (p *ChromemProvider) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db.GetCollection(name, nil) != nil {
		return fmt.Errorf("index %q already exists", name)
	}
	// chromem always uses cosine similarity; dimension is implied by the
	// first stored embedding.
	_, err := p.db.CreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return nil
}

func (p *ChromemProvider) IndexExists(ctx context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db.GetCollection(name, nil) != nil, nil
}

func (p *ChromemProvider) DeleteIndex(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db.GetCollection(name, nil) == nil {
		return ErrIndexNotFound
	}
	// Drop the base collection and every namespaced collection under it.
	for colName := range p.db.ListCollections() {
		if colName == name || strings.HasPrefix(colName, name+"__") {
			if err := p.db.DeleteCollection(colName); err != nil {
				return fmt.Errorf("failed to delete collection %q: %w", colName, err)
			}
		}
	}
	return nil
}

func (p *ChromemProvider) collection(index, namespace string) (*chromem.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db.GetCollection(index, nil) == nil {
		return nil, ErrIndexNotFound
	}
	col, err := p.db.GetOrCreateCollection(collectionName(index, namespace), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return col, nil
}

func (p *ChromemProvider) Upsert(ctx context.Context, index, namespace string, records []types.VectorRecord) error {
	col, err := p.collection(index, namespace)
	if err != nil {
		return err
	}

	for _, rec := range records {
		doc := chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: rec.Vector,
			Metadata: map[string]string{
				"role":      string(rec.Role),
				"timestamp": strconv.FormatInt(rec.Timestamp, 10),
				"owner_id":  rec.OwnerID,
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to add document %q: %w", rec.ID, err)
		}
	}
	return nil
}

func (p *ChromemProvider) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]types.Match, error) {
	col, err := p.collection(index, namespace)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]types.Match, 0, len(results))
	for _, res := range results {
		ts, _ := strconv.ParseInt(res.Metadata["timestamp"], 10, 64)
		matches = append(matches, types.Match{
			Record: types.VectorRecord{
				ID:        res.ID,
				Role:      types.Role(res.Metadata["role"]),
				Text:      res.Content,
				Timestamp: ts,
				OwnerID:   res.Metadata["owner_id"],
			},
			Score: res.Similarity,
		})
	}
	return matches, nil
}

func (p *ChromemProvider) DeleteNamespace(ctx context.Context, index, namespace string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := collectionName(index, namespace)
	if p.db.GetCollection(name, nil) == nil {
		return nil
	}
	if err := p.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", name, err)
	}
	// Keep the base collection so the index itself still exists.
	if namespace != "" {
		return nil
	}
	if _, err := p.db.CreateCollection(index, nil, nil); err != nil {
		return fmt.Errorf("failed to recreate collection %q: %w", index, err)
	}
	return nil
}

func (p *ChromemProvider) Close() error { return nil }

var _ Provider = (*ChromemProvider)(nil)
