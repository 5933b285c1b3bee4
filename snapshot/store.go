package snapshot

import "context"

// Store indexes snapshots by id and by the store path they were taken from.
type Store interface {
	// Connect prepares the backend (schema, indexes).
	Connect(ctx context.Context) error

	// Close marks the store as disconnected. The caller owns the
	// underlying database handle.
	Close(ctx context.Context) error

	// Save stores s. An empty ID is assigned a new one. Saving an id that
	// already exists returns ErrAlreadyExists.
	Save(ctx context.Context, s *Snapshot) error

	// Get returns the snapshot with the given id.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// Latest returns the most recent snapshot of path on the store
	// identified by prefix.
	Latest(ctx context.Context, prefix, path string) (*Snapshot, error)

	// Delete removes the snapshot with the given id.
	Delete(ctx context.Context, id string) error
}

// Archive keeps snapshots as objects addressed by URI.
type Archive interface {
	// Put writes s and returns its URI.
	Put(ctx context.Context, s *Snapshot) (string, error)

	// Load reads the snapshot at uri.
	Load(ctx context.Context, uri string) (*Snapshot, error)

	// Delete removes the object at uri.
	Delete(ctx context.Context, uri string) error
}
