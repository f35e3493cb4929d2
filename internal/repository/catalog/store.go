package catalog

import (
	"sync/atomic"
)

// Store holds the current catalog snapshot. Swaps are atomic: readers keep
// the snapshot they obtained until they are done with it.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store serving initial.
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot { return s.current.Load() }

// Swap installs next and returns the snapshot it replaced.
func (s *Store) Swap(next *Snapshot) *Snapshot { return s.current.Swap(next) }

// Version returns the current snapshot version, 0 when empty.
func (s *Store) Version() uint64 {
	if snap := s.current.Load(); snap != nil {
		return snap.Version()
	}
	return 0
}
