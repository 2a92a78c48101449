package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/driftlock/recall/pkg/types"
)

const (
	// DefaultDimension is the embedding dimension every index is created with.
	DefaultDimension = 512

	// DefaultMetric is the distance metric every index is created with.
	DefaultMetric = "cosine"

	indexNamePrefix = "chat-user-"
)

// IndexNameFor derives the dedicated index name for an owner. Hyphens are
// stripped and the result lowercased to satisfy backend naming rules.
func IndexNameFor(ownerID string) string {
	return indexNamePrefix + strings.ToLower(strings.ReplaceAll(ownerID, "-", ""))
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	SharedIndex string // index every namespace-mode owner shares
	Dimension   int
	Metric      string
}

// Manager owns vector storage lifecycle for chat owners. An owner either
// shares one index with everyone else, partitioned by namespace, or holds a
// dedicated index named after them. The choice is made at provisioning time
// and is sticky: once a dedicated index exists for an owner, every later
// operation for that owner uses it. Provisioning is single-flight per index:
// concurrent callers for the same index coalesce onto one create call and
// all see its outcome.
type Manager struct {
	provider  Provider
	shared    string
	dimension int
	metric    string

	mu       sync.Mutex
	inflight map[string]*provisionCall
	ready    map[string]bool            // index names confirmed to exist
	modes    map[string]types.IndexMode // resolved mode per owner
}

type provisionCall struct {
	done chan struct{}
	err  error
}

// NewManager creates a Manager over the given backend.
func NewManager(provider Provider, cfg ManagerConfig) *Manager {
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Metric == "" {
		cfg.Metric = DefaultMetric
	}
	if cfg.SharedIndex == "" {
		cfg.SharedIndex = "chat-shared"
	}
	return &Manager{
		provider:  provider,
		shared:    cfg.SharedIndex,
		dimension: cfg.Dimension,
		metric:    cfg.Metric,
		inflight:  make(map[string]*provisionCall),
		ready:     make(map[string]bool),
		modes:     make(map[string]types.IndexMode),
	}
}

// resolveMode determines which mode governs the owner. A dedicated index
// that already exists wins over the namespace default; the answer is cached
// until teardown.
func (m *Manager) resolveMode(ctx context.Context, ownerID string) (types.IndexMode, error) {
	m.mu.Lock()
	if mode, ok := m.modes[ownerID]; ok {
		m.mu.Unlock()
		return mode, nil
	}
	m.mu.Unlock()

	exists, err := m.provider.IndexExists(ctx, IndexNameFor(ownerID))
	if err != nil {
		return "", fmt.Errorf("resolve mode for owner %s: %w", ownerID, err)
	}

	mode := types.ModeNamespace
	if exists {
		mode = types.ModeDedicated
	}
	m.mu.Lock()
	m.modes[ownerID] = mode
	if exists {
		m.ready[IndexNameFor(ownerID)] = true
	}
	m.mu.Unlock()
	return mode, nil
}

// Describe resolves where an owner's records live.
func (m *Manager) Describe(ctx context.Context, ownerID string) (types.IndexDescriptor, error) {
	mode, err := m.resolveMode(ctx, ownerID)
	if err != nil {
		return types.IndexDescriptor{}, err
	}
	if mode == types.ModeDedicated {
		return types.IndexDescriptor{OwnerID: ownerID, Mode: mode, IndexName: IndexNameFor(ownerID)}, nil
	}
	return types.IndexDescriptor{OwnerID: ownerID, Mode: mode, IndexName: m.shared}, nil
}

// target returns the index and namespace holding the descriptor's data.
func target(desc types.IndexDescriptor) (index, namespace string) {
	if desc.Mode == types.ModeNamespace {
		return desc.IndexName, desc.OwnerID
	}
	return desc.IndexName, ""
}

// EnsureStorage guarantees storage for the owner. When dedicated is false
// and no dedicated index already exists, the owner is served from the shared
// index with their ID as namespace and no provisioning happens. When
// dedicated is true the owner's index is created if absent. At most one
// create call runs per index regardless of concurrent callers; a failed
// attempt is forgotten so the next call can retry.
func (m *Manager) EnsureStorage(ctx context.Context, ownerID string, dedicated bool) (types.IndexDescriptor, error) {
	if !dedicated {
		desc, err := m.Describe(ctx, ownerID)
		if err != nil || desc.Mode == types.ModeNamespace {
			return desc, err
		}
		// Sticky: the owner already has a dedicated index.
	}

	name := IndexNameFor(ownerID)
	if err := m.ensureIndex(ctx, name); err != nil {
		return types.IndexDescriptor{OwnerID: ownerID, Mode: types.ModeDedicated, IndexName: name}, err
	}

	m.mu.Lock()
	m.modes[ownerID] = types.ModeDedicated
	m.mu.Unlock()
	return types.IndexDescriptor{OwnerID: ownerID, Mode: types.ModeDedicated, IndexName: name}, nil
}

func (m *Manager) ensureIndex(ctx context.Context, name string) error {
	m.mu.Lock()
	if m.ready[name] {
		m.mu.Unlock()
		return nil
	}
	if call, ok := m.inflight[name]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &provisionCall{done: make(chan struct{})}
	m.inflight[name] = call
	m.mu.Unlock()

	call.err = m.provision(ctx, name)
	close(call.done)

	m.mu.Lock()
	delete(m.inflight, name)
	if call.err == nil {
		m.ready[name] = true
	}
	m.mu.Unlock()

	return call.err
}

// provision checks existence first so an index created by an earlier process
// is adopted rather than recreated.
func (m *Manager) provision(ctx context.Context, name string) error {
	exists, err := m.provider.IndexExists(ctx, name)
	if err != nil {
		return &ProvisioningError{Index: name, Err: err}
	}
	if exists {
		return nil
	}

	log.Printf("vectorstore: creating index %q (dim=%d, metric=%s, backend=%s)",
		name, m.dimension, m.metric, m.provider.Name())
	if err := m.provider.CreateIndex(ctx, name, m.dimension, m.metric); err != nil {
		return &ProvisioningError{Index: name, Err: err}
	}
	return nil
}

// StorageExists reports whether storage is already present for the owner and
// which mode governs them, without creating anything.
func (m *Manager) StorageExists(ctx context.Context, ownerID string) (bool, types.IndexMode, error) {
	mode, err := m.resolveMode(ctx, ownerID)
	if err != nil {
		return false, "", err
	}
	if mode == types.ModeDedicated {
		return true, mode, nil
	}

	m.mu.Lock()
	if m.ready[m.shared] {
		m.mu.Unlock()
		return true, mode, nil
	}
	m.mu.Unlock()

	exists, err := m.provider.IndexExists(ctx, m.shared)
	if err != nil {
		return false, "", err
	}
	return exists, mode, nil
}

// Upsert writes records for the owner, provisioning storage first if needed.
// Namespace-mode owners get the shared index created lazily on first write.
func (m *Manager) Upsert(ctx context.Context, ownerID string, records []types.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	desc, err := m.EnsureStorage(ctx, ownerID, false)
	if err != nil {
		return err
	}
	if err := m.ensureIndex(ctx, desc.IndexName); err != nil {
		return err
	}
	index, namespace := target(desc)
	return m.provider.Upsert(ctx, index, namespace, records)
}

// Query returns up to topK matches for the owner, most similar first.
func (m *Manager) Query(ctx context.Context, ownerID string, vector []float32, topK int) ([]types.Match, error) {
	desc, err := m.Describe(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	index, namespace := target(desc)
	return m.provider.Query(ctx, index, namespace, vector, topK)
}

// TeardownStorage removes all of the owner's records. A dedicated owner's
// index is dropped whole; a namespace owner's data is cleared from the
// shared index. The cached mode is forgotten either way.
func (m *Manager) TeardownStorage(ctx context.Context, ownerID string) error {
	desc, err := m.Describe(ctx, ownerID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.modes, ownerID)
	m.mu.Unlock()

	index, namespace := target(desc)
	if desc.Mode == types.ModeNamespace {
		return m.provider.DeleteNamespace(ctx, index, namespace)
	}

	m.mu.Lock()
	delete(m.ready, index)
	m.mu.Unlock()

	if err := m.provider.DeleteIndex(ctx, index); err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			return nil
		}
		return fmt.Errorf("teardown index %q: %w", index, err)
	}
	return nil
}

// Close releases the underlying backend.
func (m *Manager) Close() error {
	return m.provider.Close()
}
