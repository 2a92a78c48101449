// Package vectorstore manages per-owner vector storage: index lifecycle,
// single-flight provisioning, and record upsert/query across pluggable
// backends.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftlock/recall/pkg/types"
)

// ErrIndexNotFound is returned when an operation targets an index that does
// not exist on the backend.
var ErrIndexNotFound = errors.New("index not found")

// Provider is a vector database backend. An index is a named vector space
// with a fixed dimension and distance metric; a namespace partitions records
// within an index. Backends without native namespaces emulate them.
type Provider interface {
	// CreateIndex provisions a new index. Creating an index that already
	// exists is an error.
	CreateIndex(ctx context.Context, name string, dimension int, metric string) error

	// IndexExists reports whether the named index is present.
	IndexExists(ctx context.Context, name string) (bool, error)

	// DeleteIndex removes an index and all records in it. Deleting a missing
	// index returns ErrIndexNotFound.
	DeleteIndex(ctx context.Context, name string) error

	// Upsert writes records into the index, replacing any record with the
	// same ID in the same namespace.
	Upsert(ctx context.Context, index, namespace string, records []types.VectorRecord) error

	// Query returns up to topK records nearest to the given vector, most
	// similar first.
	Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]types.Match, error)

	// DeleteNamespace removes every record in the namespace. Missing
	// namespaces are a no-op.
	DeleteNamespace(ctx context.Context, index, namespace string) error

	// Name identifies the backend in logs.
	Name() string

	Close() error
}

// ProvisioningError wraps a failure to create or verify an index. Callers
// surface it to the user as retryable rather than swallowing it.
type ProvisioningError struct {
	Index string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning index %q: %v", e.Index, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
