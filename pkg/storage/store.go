package storage

import (
	"errors"

	"github.com/cuemby/cibcore/pkg/types"
)

// ErrNotFound is returned when a revision does not exist
var ErrNotFound = errors.New("revision not found")

// Store defines the interface for persisting accepted configuration
// revisions
type Store interface {
	// SaveRevision stores a new revision. A missing ID is generated and the
	// sequence number is assigned by the store; both are written back to rev.
	SaveRevision(rev *types.Revision) error

	// UpdateRevision replaces an existing revision, keeping its sequence
	UpdateRevision(rev *types.Revision) error

	GetRevision(id string) (*types.Revision, error)
	LatestRevision() (*types.Revision, error)

	// ListRevisions returns every revision, oldest first
	ListRevisions() ([]*types.Revision, error)

	DeleteRevision(id string) error

	// Utility
	Close() error
}
