// Package profilestore persists contextual metadata profiles keyed by owner.
// It is a thin wrapper over a relational store: the merge engine owns all
// profile mutation logic, this package only reads and upserts whole rows.
package profilestore

import (
	"context"
	"errors"

	"github.com/driftlock/recall/pkg/types"
)

// ErrNotFound indicates that no profile exists for the requested owner.
var ErrNotFound = errors.New("profile not found")

// Store provides profile persistence by owner. Put has upsert semantics and
// writes the whole profile atomically; concurrent writers are resolved by
// last write wins, nothing beyond the single-statement atomicity is provided.
type Store interface {
	// Get retrieves the profile for an owner. Returns ErrNotFound when the
	// owner has no profile yet.
	Get(ctx context.Context, ownerID string) (*types.Profile, error)

	// Put inserts or fully replaces the profile for profile.OwnerID.
	Put(ctx context.Context, profile *types.Profile) error

	// Delete removes the profile for an owner. Deleting a missing profile is
	// not an error.
	Delete(ctx context.Context, ownerID string) error

	// Close releases any resources held by the store.
	Close() error
}
