// Package memory provides in-memory snapshot.Store and snapshot.Archive
// implementations for testing. Nothing is persisted.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rbaliyan/exmdb/snapshot"
)

var (
	_ snapshot.Store   = (*Store)(nil)
	_ snapshot.Archive = (*Archive)(nil)
)

// Store implements snapshot.Store. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*snapshot.Snapshot
	connected int32
}

// New creates an empty store.
func New() *Store {
	return &Store{snapshots: make(map[string]*snapshot.Snapshot)}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return snapshot.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// Save stores a copy of snap.
func (s *Store) Save(_ context.Context, snap *snapshot.Snapshot) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return snapshot.ErrNotConnected
	}
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	} else if !snapshot.ValidID(snap.ID) {
		return snapshot.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snap.ID]; ok {
		return snapshot.ErrAlreadyExists
	}
	cp := *snap
	s.snapshots[snap.ID] = &cp
	return nil
}

// Get returns a copy of the snapshot with the given id.
func (s *Store) Get(_ context.Context, id string) (*snapshot.Snapshot, error) {
	if atomic.LoadInt32(&s.connected) == 0 {
		return nil, snapshot.ErrNotConnected
	}
	if !snapshot.ValidID(id) {
		return nil, snapshot.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, snapshot.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

// Latest returns the newest snapshot of path on prefix.
func (s *Store) Latest(_ context.Context, prefix, path string) (*snapshot.Snapshot, error) {
	if atomic.LoadInt32(&s.connected) == 0 {
		return nil, snapshot.ErrNotConnected
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *snapshot.Snapshot
	for _, snap := range s.snapshots {
		if snap.Prefix != prefix || snap.Path != path {
			continue
		}
		if latest == nil || snap.TakenAt.After(latest.TakenAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, snapshot.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// Delete removes the snapshot with the given id.
func (s *Store) Delete(_ context.Context, id string) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return snapshot.ErrNotConnected
	}
	if !snapshot.ValidID(id) {
		return snapshot.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[id]; !ok {
		return snapshot.ErrNotFound
	}
	delete(s.snapshots, id)
	return nil
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

const scheme = "mem://"

// Archive implements snapshot.Archive. Objects are kept in their encoded
// form so that Load exercises the same decoding as the remote archives.
type Archive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewArchive creates an empty archive.
func NewArchive() *Archive {
	return &Archive{objects: make(map[string][]byte)}
}

// Put encodes snap and returns a mem:// URI.
func (a *Archive) Put(_ context.Context, snap *snapshot.Snapshot) (string, error) {
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return "", err
	}
	key := snap.ID
	if key == "" {
		key = uuid.New().String()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = data
	return scheme + key, nil
}

// Load decodes the snapshot at uri.
func (a *Archive) Load(_ context.Context, uri string) (*snapshot.Snapshot, error) {
	key, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	data, ok := a.objects[key]
	a.mu.RUnlock()
	if !ok {
		return nil, snapshot.ErrNotFound
	}
	return snapshot.Unmarshal(data)
}

// Delete removes the object at uri. Deleting a missing object is not an
// error.
func (a *Archive) Delete(_ context.Context, uri string) error {
	key, err := parseURI(uri)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	return nil
}

func parseURI(uri string) (string, error) {
	key, ok := strings.CutPrefix(uri, scheme)
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %q", snapshot.ErrInvalidURI, uri)
	}
	return key, nil
}
