package auditsession

import (
	"sync"
	"time"

	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Store owns the state of the session being audited. Mutations happen under one
// mutex and listeners are notified after the mutex is released.
type Store struct {
	mu         sync.Mutex
	generation uint64
	status     Status
	info       SessionInfo

	expected   []audit.ExpectedAsset
	expectedID map[uuid.UUID]struct{}

	items map[string]*ScannedItem
	order []string

	// an asset id is in at most one of these
	pending   map[uuid.UUID]struct{}
	persisted map[uuid.UUID]struct{}
	parked    map[uuid.UUID]struct{}

	frozen *audit.Counts

	listeners    map[int]Listener
	nextListener int
	now          func() time.Time
}

// NewStore creates an uninitialized store
func NewStore() *Store {
	s := &Store{
		status:    StatusUninitialized,
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
	s.wipe()
	return s
}

// Subscribe registers l and returns a function that removes it
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Token returns the token of the current session incarnation
func (s *Store) Token() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenLocked()
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Token:    s.tokenLocked(),
		Status:   s.status,
		Session:  s.info,
		Expected: append([]audit.ExpectedAsset(nil), s.expected...),
		Items:    make([]ScannedItem, 0, len(s.order)),
	}
	for _, code := range s.order {
		it := *s.items[code]
		snap.Items = append(snap.Items, it)
		if id, ok := it.AssetID(); ok {
			switch {
			case has(s.pending, id):
				snap.Pending = appendOnce(snap.Pending, id)
			case has(s.persisted, id):
				snap.Persisted = appendOnce(snap.Persisted, id)
			case has(s.parked, id):
				snap.Parked = appendOnce(snap.Parked, id)
			}
		}
	}
	if s.frozen != nil {
		snap.Counts = *s.frozen
	} else {
		snap.Counts = s.reconcileLocked().Counts
	}
	return snap
}

// Reconciliation classifies the resolved asset items against the expected set
func (s *Store) Reconciliation() audit.Reconciliation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked()
}

func (s *Store) reconcileLocked() audit.Reconciliation {
	scanned := make([]audit.ScannedAsset, 0, len(s.order))
	for _, code := range s.order {
		if a, ok := s.items[code].Payload.(ResolvedAsset); ok {
			scanned = append(scanned, audit.ScannedAsset{ID: a.Asset.ID, Name: a.Asset.Title, Valuation: a.Asset.Valuation})
		}
	}
	return audit.Reconcile(s.expected, scanned)
}

// reset starts a new incarnation: previous items and id sets are discarded, the
// expected set is seeded and prior durable scans are replayed as persisted.
func (s *Store) reset(info SessionInfo, expected []audit.ExpectedAsset, prior []PriorScan) Token {
	s.mu.Lock()
	s.generation++
	s.status = StatusActive
	s.info = info
	s.wipe()
	s.setExpectedLocked(expected)
	for _, p := range prior {
		if _, dup := s.items[p.Code]; !dup {
			s.order = append(s.order, p.Code)
		}
		at := p.ScannedAt
		if at.IsZero() {
			at = s.now()
		}
		s.items[p.Code] = &ScannedItem{Code: p.Code, CodeType: defaultCodeType, Payload: ResolvedAsset{Asset: p.Asset}, ScannedAt: at}
		s.persisted[p.Asset.ID] = struct{}{}
	}
	tok := s.tokenLocked()
	s.notifyUnlock(tok)
	return tok
}

// clear drops the session from memory
func (s *Store) clear() {
	s.mu.Lock()
	s.generation++
	s.status = StatusUninitialized
	s.info = SessionInfo{}
	s.wipe()
	s.notifyUnlock(s.tokenLocked())
}

func (s *Store) setExpected(expected []audit.ExpectedAsset) error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return shared.NewDomainError("INVALID_STATE", "No active audit session")
	}
	s.setExpectedLocked(expected)
	s.notifyUnlock(s.tokenLocked())
	return nil
}

// admit records a scan of code. It returns resolve=true when a lookup must be
// started: the code is new, or its previous attempt errored.
func (s *Store) admit(code, codeType string, failure *Errored) (tok Token, resolve bool, err error) {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return Token{}, false, shared.NewDomainError("INVALID_STATE", "Cannot scan outside an active audit session")
	}
	tok = s.tokenLocked()

	existing, seen := s.items[code]
	if seen {
		if _, errored := existing.Payload.(Errored); !errored {
			// resolved or in flight
			s.mu.Unlock()
			return tok, false, nil
		}
	} else {
		existing = &ScannedItem{Code: code}
		s.items[code] = existing
		s.order = append(s.order, code)
	}

	existing.CodeType = codeType
	existing.ScannedAt = s.now()
	if failure != nil {
		existing.Payload = *failure
	} else {
		existing.Payload = Unresolved{}
		resolve = true
	}
	s.notifyUnlock(tok)
	return tok, resolve, nil
}

// applyResolution stores a lookup result if tok is still current
func (s *Store) applyResolution(tok Token, code string, p Payload) bool {
	s.mu.Lock()
	if tok != s.tokenLocked() || s.status != StatusActive {
		s.mu.Unlock()
		return false
	}
	it, ok := s.items[code]
	if !ok {
		s.mu.Unlock()
		return false
	}
	it.Payload = p
	s.notifyUnlock(tok)
	return true
}

type claim struct {
	Token      Token
	Code       string
	AssetID    uuid.UUID
	IsExpected bool
}

// claimEligible moves every resolved asset that is not pending, persisted or
// parked into pending and returns one claim per asset.
func (s *Store) claimEligible() []claim {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return nil
	}
	tok := s.tokenLocked()
	var claims []claim
	for _, code := range s.order {
		id, ok := s.items[code].AssetID()
		if !ok || has(s.pending, id) || has(s.persisted, id) || has(s.parked, id) {
			continue
		}
		s.pending[id] = struct{}{}
		claims = append(claims, claim{Token: tok, Code: code, AssetID: id, IsExpected: has(s.expectedID, id)})
	}
	return claims
}

// settle moves id from pending to persisted
func (s *Store) settle(tok Token, id uuid.UUID) bool {
	s.mu.Lock()
	if tok != s.tokenLocked() || !has(s.pending, id) {
		s.mu.Unlock()
		return false
	}
	delete(s.pending, id)
	s.persisted[id] = struct{}{}
	s.notifyUnlock(tok)
	return true
}

// release takes id out of pending after a failed write. A parked id is not
// claimed again until unpark. Release does not notify listeners, so a failing
// write is retried on the next change rather than immediately.
func (s *Store) release(tok Token, id uuid.UUID, park bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.tokenLocked() || !has(s.pending, id) {
		return false
	}
	delete(s.pending, id)
	if park {
		s.parked[id] = struct{}{}
	}
	return true
}

// unpark makes parked ids eligible again
func (s *Store) unpark() int {
	s.mu.Lock()
	n := len(s.parked)
	if n == 0 {
		s.mu.Unlock()
		return 0
	}
	s.parked = make(map[uuid.UUID]struct{})
	s.notifyUnlock(s.tokenLocked())
	return n
}

// unpersisted counts resolved assets without a durable row
func (s *Store) unpersisted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	for _, code := range s.order {
		if id, ok := s.items[code].AssetID(); ok && !has(s.persisted, id) {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// complete freezes counts and makes the session terminal
func (s *Store) complete(tok Token, counts audit.Counts) error {
	s.mu.Lock()
	if tok != s.tokenLocked() || s.status != StatusActive {
		s.mu.Unlock()
		return shared.NewDomainError("INVALID_STATE", "Audit session changed during completion")
	}
	s.status = StatusCompleted
	s.frozen = &counts
	s.notifyUnlock(tok)
	return nil
}

func (s *Store) tokenLocked() Token {
	return Token{SessionID: s.info.ID, Generation: s.generation}
}

func (s *Store) setExpectedLocked(expected []audit.ExpectedAsset) {
	s.expected = make([]audit.ExpectedAsset, 0, len(expected))
	s.expectedID = make(map[uuid.UUID]struct{}, len(expected))
	for _, e := range expected {
		if _, dup := s.expectedID[e.ID]; dup || e.ID == uuid.Nil {
			continue
		}
		s.expectedID[e.ID] = struct{}{}
		s.expected = append(s.expected, e)
	}
}

func (s *Store) wipe() {
	s.expected = nil
	s.expectedID = make(map[uuid.UUID]struct{})
	s.items = make(map[string]*ScannedItem)
	s.order = nil
	s.pending = make(map[uuid.UUID]struct{})
	s.persisted = make(map[uuid.UUID]struct{})
	s.parked = make(map[uuid.UUID]struct{})
	s.frozen = nil
}

// notifyUnlock releases the mutex, then calls every listener
func (s *Store) notifyUnlock(tok Token) {
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()
	for _, l := range listeners {
		l(tok)
	}
}

func has(set map[uuid.UUID]struct{}, id uuid.UUID) bool {
	_, ok := set[id]
	return ok
}

func appendOnce(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}
