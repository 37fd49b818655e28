package minigame

import (
	"sync"
	"time"
)

// SessionStore is the source of truth for live sessions. One mutex guards the whole map;
// it holds at most one entry per concurrently active player, so coarse locking is enough.
type SessionStore struct {
	mu    sync.Mutex
	byKey map[Key]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byKey: make(map[Key]*Session)}
}

// Create registers s under every key it owns. Either all keys are inserted or none.
func (st *SessionStore) Create(s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidArgs
	}
	keys := s.Keys()
	for _, k := range keys {
		if !k.valid() {
			return ErrInvalidArgs
		}
	}
	if len(keys) == 2 && keys[0] == keys[1] {
		return ErrSelfChallenge
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, k := range keys {
		if _, ok := st.byKey[k]; ok {
			return ErrAlreadyActive
		}
	}
	return st.insertLocked(keys, s)
}

func (st *SessionStore) insertLocked(keys []Key, s *Session) error {
	for i, k := range keys {
		if _, ok := st.byKey[k]; ok {
			for _, done := range keys[:i] {
				delete(st.byKey, done)
			}
			return internalErr("key %s occupied during exclusive create", k)
		}
		st.byKey[k] = s
	}
	return nil
}

// Get returns a snapshot of the session registered under k.
func (st *SessionStore) Get(k Key) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byKey[k]
	if !ok {
		return Session{}, false
	}
	return s.Clone(), true
}

// Busy reports whether any of the players has a live session in realm.
func (st *SessionStore) Busy(realm string, players ...string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.busyLocked(realm, players...)
}

func (st *SessionStore) busyLocked(realm string, players ...string) bool {
	for _, p := range players {
		if _, ok := st.byKey[Key{Realm: realm, Player: p}]; ok {
			return true
		}
	}
	return false
}

// Update runs fn on the live session registered under k, provided it is still the session
// identified by id. fn runs under the store lock and must not block.
func (st *SessionStore) Update(k Key, id string, fn func(s *Session) error) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byKey[k]
	if !ok || s.ID != id {
		return Session{}, ErrNotFound
	}
	if _, member := s.SlotOf(k.Player); !member {
		return Session{}, internalErr("session %s registered under foreign key %s", s.ID, k)
	}
	if err := fn(s); err != nil {
		return s.Clone(), err
	}
	return s.Clone(), nil
}

// claimFinalize marks the session as being torn down. Only the first caller wins.
func (st *SessionStore) claimFinalize(k Key, id string) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byKey[k]
	if !ok || s.ID != id || s.Turn != TurnFinished || s.finalizing {
		return Session{}, false
	}
	s.finalizing = true
	return s.Clone(), true
}

// Remove deletes every key the session identified by id is registered under. Removing an
// absent session is a no-op; it reports whether anything was deleted.
func (st *SessionStore) Remove(k Key, id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byKey[k]
	if !ok || (id != "" && s.ID != id) {
		return false
	}
	st.removeLocked(s)
	return true
}

func (st *SessionStore) removeLocked(s *Session) {
	for _, key := range s.Keys() {
		if cur, ok := st.byKey[key]; ok && cur == s {
			delete(st.byKey, key)
		}
	}
}

// RemoveWhere deletes every session matching pred and returns their snapshots.
func (st *SessionStore) RemoveWhere(pred func(s *Session) bool) []Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	seen := make(map[*Session]struct{})
	var out []Session
	for _, s := range st.byKey {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if pred(s) {
			out = append(out, s.Clone())
			st.removeLocked(s)
		}
	}
	return out
}

// List returns snapshots of the distinct sessions in realm (all realms when realm is empty).
func (st *SessionStore) List(realm string) []Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	seen := make(map[*Session]struct{})
	var out []Session
	for k, s := range st.byKey {
		if realm != "" && k.Realm != realm {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s.Clone())
	}
	return out
}

// Len counts distinct live sessions.
func (st *SessionStore) Len() int {
	return len(st.List(""))
}

func idleBefore(cutoff time.Time) func(s *Session) bool {
	return func(s *Session) bool { return s.UpdatedAt.Before(cutoff) && !s.finalizing }
}
