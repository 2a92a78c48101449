package vectorstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/recall/pkg/types"
)

// fakeProvider records lifecycle calls for manager tests.
type fakeProvider struct {
	mu      sync.Mutex
	indexes map[string]bool

	createCalls   atomic.Int32
	existsCalls   atomic.Int32
	deleteNsCalls atomic.Int32

	createDelay time.Duration
	createErr   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{indexes: make(map[string]bool)}
}

func (f *fakeProvider) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	f.createCalls.Add(1)
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexes[name] = true
	return nil
}

func (f *fakeProvider) IndexExists(ctx context.Context, name string) (bool, error) {
	f.existsCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexes[name], nil
}

func (f *fakeProvider) DeleteIndex(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.indexes[name] {
		return ErrIndexNotFound
	}
	delete(f.indexes, name)
	return nil
}

func (f *fakeProvider) Upsert(ctx context.Context, index, namespace string, records []types.VectorRecord) error {
	return nil
}

func (f *fakeProvider) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]types.Match, error) {
	return nil, nil
}

func (f *fakeProvider) DeleteNamespace(ctx context.Context, index, namespace string) error {
	f.deleteNsCalls.Add(1)
	return nil
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

func testRecords(ownerID string) []types.VectorRecord {
	return []types.VectorRecord{{
		ID:        "r1",
		Vector:    []float32{1, 2, 3},
		Role:      types.RoleUser,
		Text:      "hello",
		Timestamp: 1000,
		OwnerID:   ownerID,
	}}
}

func TestIndexNameFor(t *testing.T) {
	assert.Equal(t, "chat-user-abc123", IndexNameFor("ABC-123"))
	assert.Equal(t, "chat-user-a1b2c3d4", IndexNameFor("a1b2-c3d4"))
	assert.Equal(t, "chat-user-", IndexNameFor(""))
}

func TestEnsureStorageCreatesOnce(t *testing.T) {
	fake := newFakeProvider()
	mgr := NewManager(fake, ManagerConfig{})

	desc, err := mgr.EnsureStorage(context.Background(), "user-1", true)
	require.NoError(t, err)
	assert.Equal(t, "chat-user-user1", desc.IndexName)
	assert.Equal(t, types.ModeDedicated, desc.Mode)
	assert.Equal(t, int32(1), fake.createCalls.Load())

	// Second call hits the ready cache, no further backend traffic.
	existsBefore := fake.existsCalls.Load()
	_, err = mgr.EnsureStorage(context.Background(), "user-1", true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.createCalls.Load())
	assert.Equal(t, existsBefore, fake.existsCalls.Load())
}

func TestEnsureStorageNamespaceNeedsNoProvisioning(t *testing.T) {
	fake := newFakeProvider()
	mgr := NewManager(fake, ManagerConfig{SharedIndex: "chat-shared"})

	desc, err := mgr.EnsureStorage(context.Background(), "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, types.ModeNamespace, desc.Mode)
	assert.Equal(t, "chat-shared", desc.IndexName)
	assert.Equal(t, int32(0), fake.createCalls.Load())
}

func TestDedicatedModeIsSticky(t *testing.T) {
	fake := newFakeProvider()
	mgr := NewManager(fake, ManagerConfig{})

	_, err := mgr.EnsureStorage(context.Background(), "user-1", true)
	require.NoError(t, err)

	// Later callers that do not ask for a dedicated index still get it.
	desc, err := mgr.EnsureStorage(context.Background(), "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, types.ModeDedicated, desc.Mode)
	assert.Equal(t, "chat-user-user1", desc.IndexName)
}

func TestEnsureStorageAdoptsExistingIndex(t *testing.T) {
	fake := newFakeProvider()
	fake.indexes["chat-user-user1"] = true
	mgr := NewManager(fake, ManagerConfig{})

	_, err := mgr.EnsureStorage(context.Background(), "user-1", true)
	require.NoError(t, err)
	assert.Equal(t, int32(0), fake.createCalls.Load())
}

func TestEnsureStorageSingleFlight(t *testing.T) {
	fake := newFakeProvider()
	fake.createDelay = 50 * time.Millisecond
	mgr := NewManager(fake, ManagerConfig{})

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mgr.EnsureStorage(context.Background(), "user-1", true)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, int32(1), fake.createCalls.Load(), "concurrent callers must coalesce onto one create")
}

func TestEnsureStorageFailurePropagatesToAllWaiters(t *testing.T) {
	fake := newFakeProvider()
	fake.createDelay = 50 * time.Millisecond
	fake.createErr = errors.New("quota exceeded")
	mgr := NewManager(fake, ManagerConfig{})

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mgr.EnsureStorage(context.Background(), "user-1", true)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Error(t, errs[i])
		var provErr *ProvisioningError
		assert.ErrorAs(t, errs[i], &provErr)
	}
}

func TestEnsureStorageFailureIsRetryable(t *testing.T) {
	fake := newFakeProvider()
	fake.createErr = errors.New("transient")
	mgr := NewManager(fake, ManagerConfig{})

	_, err := mgr.EnsureStorage(context.Background(), "user-1", true)
	require.Error(t, err)
	assert.Equal(t, int32(1), fake.createCalls.Load())

	// The failed flight is forgotten; a later call attempts again.
	fake.createErr = nil
	_, err = mgr.EnsureStorage(context.Background(), "user-1", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.createCalls.Load())
}

func TestNamespaceOwnersShareOneIndex(t *testing.T) {
	fake := newFakeProvider()
	mgr := NewManager(fake, ManagerConfig{SharedIndex: "chat-shared"})

	require.NoError(t, mgr.Upsert(context.Background(), "user-a", testRecords("user-a")))
	require.NoError(t, mgr.Upsert(context.Background(), "user-b", testRecords("user-b")))

	a, err := mgr.Describe(context.Background(), "user-a")
	require.NoError(t, err)
	b, err := mgr.Describe(context.Background(), "user-b")
	require.NoError(t, err)

	assert.Equal(t, "chat-shared", a.IndexName)
	assert.Equal(t, "chat-shared", b.IndexName)
	assert.Equal(t, int32(1), fake.createCalls.Load(), "shared index is created once, lazily")
}

func TestStorageExistsReportsMode(t *testing.T) {
	fake := newFakeProvider()
	mgr := NewManager(fake, ManagerConfig{SharedIndex: "chat-shared"})

	exists, mode, err := mgr.StorageExists(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, types.ModeNamespace, mode)

	_, err = mgr.EnsureStorage(context.Background(), "user-1", true)
	require.NoError(t, err)

	exists, mode, err = mgr.StorageExists(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, types.ModeDedicated, mode)
}

func TestTeardownDedicatedDropsIndex(t *testing.T) {
	fake := newFakeProvider()
	mgr := NewManager(fake, ManagerConfig{})

	_, err := mgr.EnsureStorage(context.Background(), "user-1", true)
	require.NoError(t, err)

	require.NoError(t, mgr.TeardownStorage(context.Background(), "user-1"))

	exists, mode, err := mgr.StorageExists(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, types.ModeNamespace, mode)

	// The ready cache was purged; provisioning works again.
	_, err = mgr.EnsureStorage(context.Background(), "user-1", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.createCalls.Load())
}

func TestTeardownNamespaceClearsOwnerData(t *testing.T) {
	fake := newFakeProvider()
	mgr := NewManager(fake, ManagerConfig{SharedIndex: "chat-shared"})

	require.NoError(t, mgr.Upsert(context.Background(), "user-1", testRecords("user-1")))
	require.NoError(t, mgr.TeardownStorage(context.Background(), "user-1"))

	assert.Equal(t, int32(1), fake.deleteNsCalls.Load())
	// The shared index itself survives.
	exists, err := fake.IndexExists(context.Background(), "chat-shared")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUpsertEmptyBatchIsNoOp(t *testing.T) {
	fake := newFakeProvider()
	mgr := NewManager(fake, ManagerConfig{})

	require.NoError(t, mgr.Upsert(context.Background(), "user-1", nil))
	assert.Equal(t, int32(0), fake.createCalls.Load())
	assert.Equal(t, int32(0), fake.existsCalls.Load())
}
