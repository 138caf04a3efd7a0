package region

import "sync/atomic"

// Store holds the current Index and lets a reload replace it wholesale while
// readers keep using whichever Index they already loaded.
type Store struct {
	current atomic.Pointer[Index]
}

// NewStore creates a Store holding idx.
func NewStore(idx *Index) *Store {
	s := &Store{}
	if idx != nil {
		s.current.Store(idx)
	}
	return s
}

// Load returns the current Index. A Store that was never filled returns an
// empty Index rather than nil.
func (s *Store) Load() *Index {
	if s == nil {
		return Build(nil, nil)
	}
	if idx := s.current.Load(); idx != nil {
		return idx
	}
	return Build(nil, nil)
}

// Swap installs idx and returns the previous Index, if any.
func (s *Store) Swap(idx *Index) *Index {
	return s.current.Swap(idx)
}

// Ready reports whether an Index has been installed.
func (s *Store) Ready() bool {
	return s != nil && s.current.Load() != nil
}
