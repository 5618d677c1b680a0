package session

import "sync"

type entry struct {
	mu   sync.Mutex
	sess *ChatSession
}

// Store is the in-memory session registry. The map mutex only guards
// membership; each session carries its own lock so a long-running turn on
// one session never blocks operations on another.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Insert registers a session. An existing session with the same ID is
// replaced; IDs are random UUIDs so this does not happen in practice.
func (s *Store) Insert(sess *ChatSession) {
	s.mu.Lock()
	s.entries[sess.ID] = &entry{sess: sess}
	s.mu.Unlock()
}

// Remove drops a session from the registry. Goroutines already blocked on
// the session's lock will observe the removal and fail with
// ErrSessionNotFound once they acquire it.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// WithLock runs fn with exclusive access to the session. Presence is
// re-checked after the lock is acquired: a waiter whose session was removed
// in the meantime gets ErrSessionNotFound instead of a stale snapshot.
func (s *Store) WithLock(id string, fn func(sess *ChatSession) error) error {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s.mu.RLock()
	_, ok = s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return fn(e.sess)
}

// TryWithLock is WithLock with a non-blocking acquire. It reports whether
// the lock was obtained; a busy session returns (false, nil) and is left
// untouched.
func (s *Store) TryWithLock(id string, fn func(sess *ChatSession) error) (bool, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return false, ErrSessionNotFound
	}

	if !e.mu.TryLock() {
		return false, nil
	}
	defer e.mu.Unlock()

	s.mu.RLock()
	_, ok = s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return true, ErrSessionNotFound
	}
	return true, fn(e.sess)
}

// Snapshot returns a copy of the session taken under its lock. The
// transcript slice is copied so the caller can read it freely.
func (s *Store) Snapshot(id string) (ChatSession, error) {
	var snap ChatSession
	err := s.WithLock(id, func(sess *ChatSession) error {
		snap = *sess
		snap.Transcript = append([]Message(nil), sess.Transcript...)
		return nil
	})
	return snap, err
}

// IDs returns the IDs of all registered sessions.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len reports the number of registered sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
