package minigame

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pairKey is direction-free: (A,B) and (B,A) collide.
type pairKey struct {
	realm string
	lo    string
	hi    string
}

func pairOf(realm, a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{realm: realm, lo: a, hi: b}
}

type pendingChallenge struct {
	ch    Challenge
	timer *time.Timer
}

// ChallengeRegistry tracks pending PvP proposals, each guarded by one expiry timer.
// accept, decline and expiry all go through mu, so exactly one of them takes effect.
// Lock order: ChallengeRegistry.mu, then SessionStore.mu.
type ChallengeRegistry struct {
	mu       sync.Mutex
	sessions *SessionStore
	pending  map[pairKey]*pendingChallenge
	onExpire func(Challenge)
	now      func() time.Time
	closed   bool
}

func NewChallengeRegistry(sessions *SessionStore, onExpire func(Challenge)) *ChallengeRegistry {
	return &ChallengeRegistry{
		sessions: sessions,
		pending:  make(map[pairKey]*pendingChallenge),
		onExpire: onExpire,
		now:      time.Now,
	}
}

// Propose registers a challenge that expires after ttl.
func (r *ChallengeRegistry) Propose(realm, kind, challenger, challenged string, names map[string]string, ttl time.Duration) (Challenge, error) {
	realm, challenger, challenged = strings.TrimSpace(realm), strings.TrimSpace(challenger), strings.TrimSpace(challenged)
	if realm == "" || challenger == "" || challenged == "" || ttl <= 0 {
		return Challenge{}, ErrInvalidArgs
	}
	if challenger == challenged {
		return Challenge{}, ErrSelfChallenge
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Challenge{}, ErrInvalidState
	}
	pk := pairOf(realm, challenger, challenged)
	if _, ok := r.pending[pk]; ok {
		return Challenge{}, ErrAlreadyPending
	}
	if r.sessions.Busy(realm, challenger, challenged) {
		return Challenge{}, ErrParticipantBusy
	}

	now := r.now()
	pc := &pendingChallenge{ch: Challenge{
		ID:         uuid.NewString(),
		Realm:      realm,
		Kind:       kind,
		Challenger: challenger,
		Challenged: challenged,
		Names:      cloneMap(names),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}}
	r.pending[pk] = pc
	id := pc.ch.ID
	pc.timer = time.AfterFunc(ttl, func() { r.fire(pk, id) })
	return pc.ch.clone(), nil
}

// fire is the timer path. It re-checks under mu that the same challenge is still pending.
func (r *ChallengeRegistry) fire(pk pairKey, id string) {
	r.mu.Lock()
	pc, ok := r.pending[pk]
	if !ok || pc.ch.ID != id {
		r.mu.Unlock()
		return
	}
	delete(r.pending, pk)
	expired := pc.ch.clone()
	r.mu.Unlock()

	if r.onExpire != nil {
		r.onExpire(expired)
	}
}

// Acceptance is what a successful Accept produced.
type Acceptance struct {
	Session   Session
	Challenge Challenge
	// Cancelled lists other challenges that involved either participant; they cannot
	// outlive the new session.
	Cancelled []Challenge
}

// Accept converts the challenge into a PvP session built by build. The challenge is removed
// whatever the outcome, and no session exists if the create fails.
func (r *ChallengeRegistry) Accept(key ChallengeKey, actor string, build func(Challenge) (*Session, error)) (Acceptance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, err := r.lookupLocked(key, actor)
	if err != nil {
		return Acceptance{}, err
	}
	ch := pc.ch.clone()
	r.removeLocked(key, pc)
	if !r.now().Before(ch.ExpiresAt) {
		return Acceptance{Challenge: ch}, ErrExpired
	}
	s, err := build(ch)
	if err != nil {
		return Acceptance{Challenge: ch}, err
	}
	if err := r.sessions.Create(s); err != nil {
		if errors.Is(err, ErrAlreadyActive) {
			err = ErrParticipantBusy
		}
		return Acceptance{Challenge: ch}, err
	}
	return Acceptance{
		Session:   s.Clone(),
		Challenge: ch,
		Cancelled: r.cancelInvolvingLocked(ch.Realm, ch.Challenger, ch.Challenged),
	}, nil
}

// CreateSession registers a session that did not come from a challenge. It is refused while
// any of its players has a pending challenge.
func (r *ChallengeRegistry) CreateSession(s *Session) error {
	if s == nil {
		return ErrInvalidArgs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range s.Keys() {
		if r.involvedLocked(k.Realm, k.Player) {
			return ErrAlreadyPending
		}
	}
	return r.sessions.Create(s)
}

func (r *ChallengeRegistry) involvedLocked(realm, player string) bool {
	for pk := range r.pending {
		if pk.realm == realm && (pk.lo == player || pk.hi == player) {
			return true
		}
	}
	return false
}

func (r *ChallengeRegistry) cancelInvolvingLocked(realm string, players ...string) []Challenge {
	var out []Challenge
	for pk, pc := range r.pending {
		if pk.realm != realm {
			continue
		}
		for _, p := range players {
			if pk.lo == p || pk.hi == p {
				pc.timer.Stop()
				delete(r.pending, pk)
				out = append(out, pc.ch.clone())
				break
			}
		}
	}
	return out
}

// Decline removes the challenge without creating a session.
func (r *ChallengeRegistry) Decline(key ChallengeKey, actor string) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, err := r.lookupLocked(key, actor)
	if err != nil {
		return Challenge{}, err
	}
	r.removeLocked(key, pc)
	return pc.ch.clone(), nil
}

func (r *ChallengeRegistry) lookupLocked(key ChallengeKey, actor string) (*pendingChallenge, error) {
	pc, ok := r.pending[pairOf(key.Realm, key.Challenger, key.Challenged)]
	if !ok {
		return nil, ErrNotFound
	}
	if actor != pc.ch.Challenged {
		return nil, ErrNotYourChallenge
	}
	return pc, nil
}

// removeLocked stops the timer and deletes the entry. A timer that already fired finds the
// entry gone in fire and does nothing.
func (r *ChallengeRegistry) removeLocked(key ChallengeKey, pc *pendingChallenge) {
	if pc.timer != nil {
		pc.timer.Stop()
	}
	delete(r.pending, pairOf(key.Realm, key.Challenger, key.Challenged))
}

// PendingFor lists challenges addressed to player in realm, newest first.
func (r *ChallengeRegistry) PendingFor(realm, player string) []Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Challenge
	for _, pc := range r.pending {
		if pc.ch.Realm == realm && pc.ch.Challenged == player {
			out = append(out, pc.ch.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Get returns the challenge pending between a and b (either direction).
func (r *ChallengeRegistry) Get(realm, a, b string) (Challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.pending[pairOf(realm, a, b)]
	if !ok {
		return Challenge{}, false
	}
	return pc.ch.clone(), true
}

// DropRealm cancels every challenge in realm without notifications.
func (r *ChallengeRegistry) DropRealm(realm string) []Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Challenge
	for pk, pc := range r.pending {
		if pk.realm != realm {
			continue
		}
		pc.timer.Stop()
		delete(r.pending, pk)
		out = append(out, pc.ch.clone())
	}
	return out
}

func (r *ChallengeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close stops every timer; later proposals are rejected.
func (r *ChallengeRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for pk, pc := range r.pending {
		pc.timer.Stop()
		delete(r.pending, pk)
	}
}
