package pairing

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/google/uuid"
)

const lockStripes = 64

// Snapshot is a consistent view of one user's session.
type Snapshot struct {
	State     models.SessionState `json:"state"`
	PartnerID string              `json:"partner_id,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	Since     time.Time           `json:"since,omitempty"`
}

// Link is the sender's view of a live pairing.
type Link struct {
	PartnerID string
	SessionID string
}

// ClearedPair is what ClearPair hands back once an edge is destroyed.
type ClearedPair struct {
	Edge        models.PairingEdge
	Transcripts map[string][]models.TranscriptEntry
}

// Stats counts users per state.
type Stats struct {
	Searching int `json:"searching"`
	Paired    int `json:"paired"`
	Pairs     int `json:"pairs"`
}

type edgeState struct {
	edge models.PairingEdge
	seq  uint64 // guarded by both participants' stripes
}

type userSession struct {
	state models.SessionState
	since time.Time
	edge  *edgeState
}

// Registry owns pairing edges, per-user session state and the transcripts scoped to them.
//
// Locking: every read-modify-write of a user's state holds that user's stripe mutex.
// Operations spanning two users lock both stripes in ascending stripe order.
// The sessions map itself is guarded by mu; both directed entries of an edge are
// written under a single mu write lock, so readers never see half an edge.
// Idle users have no entry.
type Registry struct {
	stripes [lockStripes]sync.Mutex

	mu       sync.RWMutex
	sessions map[string]*userSession

	transcripts *TranscriptStore
	now         func() time.Time
	newID       func() string
}

// NewRegistry creates an empty registry backed by transcripts.
func NewRegistry(transcripts *TranscriptStore) *Registry {
	if transcripts == nil {
		transcripts = NewTranscriptStore(DefaultTranscriptCap)
	}
	return &Registry{
		sessions:    make(map[string]*userSession),
		transcripts: transcripts,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// Transcripts exposes the store owned by the registry.
func (r *Registry) Transcripts() *TranscriptStore { return r.transcripts }

func stripeOf(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % lockStripes)
}

// lock acquires the stripes of ids in ascending order and returns the release func.
func (r *Registry) lock(ids ...string) func() {
	idx := make([]int, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s := stripeOf(id)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		idx = append(idx, s)
	}
	sort.Ints(idx)
	for _, i := range idx {
		r.stripes[i].Lock()
	}
	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			r.stripes[idx[i]].Unlock()
		}
	}
}

func (r *Registry) get(userID string) (userSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return userSession{}, false
	}
	return *s, true
}

// BeginSearch moves userID from Idle to Searching. It is idempotent while Searching.
func (r *Registry) BeginSearch(userID string) (Snapshot, error) {
	unlock := r.lock(userID)
	defer unlock()

	s, ok := r.get(userID)
	if ok {
		switch s.state {
		case models.StatePaired:
			return snapshotOf(s), ErrAlreadyPaired
		case models.StateSearching:
			return snapshotOf(s), nil
		}
	}

	next := &userSession{state: models.StateSearching, since: r.now()}
	r.mu.Lock()
	r.sessions[userID] = next
	r.mu.Unlock()
	return snapshotOf(*next), nil
}

// AbandonSearch returns a Searching user to Idle. Any other state is left untouched.
func (r *Registry) AbandonSearch(userID string) bool {
	unlock := r.lock(userID)
	defer unlock()

	s, ok := r.get(userID)
	if !ok || s.state != models.StateSearching {
		return false
	}
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
	return true
}

// CommitPair atomically links userID and partnerID after re-checking that neither
// is already paired, and starts an empty transcript for both.
func (r *Registry) CommitPair(userID, partnerID string) (models.PairingEdge, error) {
	if userID == partnerID {
		return models.PairingEdge{}, ErrSelfPair
	}

	unlock := r.lock(userID, partnerID)
	defer unlock()

	if s, ok := r.get(userID); ok && s.state == models.StatePaired {
		return models.PairingEdge{}, ErrAlreadyPaired
	}
	if s, ok := r.get(partnerID); ok && s.state == models.StatePaired {
		return models.PairingEdge{}, ErrPartnerUnavailable
	}

	now := r.now()
	es := &edgeState{edge: models.PairingEdge{
		SessionID: r.newID(),
		UserA:     userID,
		UserB:     partnerID,
		PairedAt:  now,
	}}

	r.transcripts.Init(userID)
	r.transcripts.Init(partnerID)

	r.mu.Lock()
	r.sessions[userID] = &userSession{state: models.StatePaired, since: now, edge: es}
	r.sessions[partnerID] = &userSession{state: models.StatePaired, since: now, edge: es}
	r.mu.Unlock()

	return es.edge, nil
}

// Partner returns userID's current partner.
func (r *Registry) Partner(userID string) (string, bool) {
	l, ok := r.Link(userID)
	return l.PartnerID, ok
}

// Link returns the partner and pairing session of userID.
func (r *Registry) Link(userID string) (Link, bool) {
	s, ok := r.get(userID)
	if !ok || s.state != models.StatePaired {
		return Link{}, false
	}
	return Link{PartnerID: s.edge.edge.Other(userID), SessionID: s.edge.edge.SessionID}, true
}

// IsPaired reports whether userID currently has a partner.
func (r *Registry) IsPaired(userID string) bool {
	_, ok := r.Link(userID)
	return ok
}

// State returns a snapshot of userID's session; unknown users are Idle.
func (r *Registry) State(userID string) Snapshot {
	s, ok := r.get(userID)
	if !ok {
		return Snapshot{State: models.StateIdle}
	}
	snap := snapshotOf(s)
	if s.edge != nil {
		snap.PartnerID = s.edge.edge.Other(userID)
	}
	return snap
}

// Record appends entry to both transcripts of the pairing identified by sessionID.
// It fails with ErrNotPaired when that pairing is no longer current for senderID.
func (r *Registry) Record(sessionID, senderID string, entry models.TranscriptEntry) (models.TranscriptEntry, error) {
	s, ok := r.get(senderID)
	if !ok || s.edge == nil || s.edge.edge.SessionID != sessionID {
		return models.TranscriptEntry{}, ErrNotPaired
	}
	partnerID := s.edge.edge.Other(senderID)

	unlock := r.lock(senderID, partnerID)
	defer unlock()

	// re-check under the stripes: ClearPair may have run in between
	s, ok = r.get(senderID)
	if !ok || s.edge == nil || s.edge.edge.SessionID != sessionID {
		return models.TranscriptEntry{}, ErrNotPaired
	}

	s.edge.seq++
	entry.Seq = s.edge.seq
	entry.SenderID = senderID
	r.transcripts.Append(senderID, entry)
	r.transcripts.Append(partnerID, entry)
	return entry, nil
}

// ClearPair destroys userID's pairing edge, returns both users to Idle and hands
// back both drained transcripts.
func (r *Registry) ClearPair(userID string) (ClearedPair, error) {
	for {
		s, ok := r.get(userID)
		if !ok || s.edge == nil {
			return ClearedPair{}, ErrNoActivePair
		}
		edge := s.edge.edge
		partnerID := edge.Other(userID)

		unlock := r.lock(userID, partnerID)
		cur, ok := r.get(userID)
		if !ok || cur.edge == nil {
			unlock()
			return ClearedPair{}, ErrNoActivePair
		}
		if cur.edge.edge.SessionID != edge.SessionID {
			// re-paired between the read and the lock; retry against the new edge
			unlock()
			continue
		}

		r.mu.Lock()
		delete(r.sessions, userID)
		delete(r.sessions, partnerID)
		r.mu.Unlock()

		cleared := ClearedPair{
			Edge: edge,
			Transcripts: map[string][]models.TranscriptEntry{
				userID:    r.transcripts.Drain(userID),
				partnerID: r.transcripts.Drain(partnerID),
			},
		}
		unlock()
		return cleared, nil
	}
}

// PairedIDs lists every user currently in a pairing, sorted.
func (r *Registry) PairedIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.edge != nil {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Stats returns per-state counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var st Stats
	for _, s := range r.sessions {
		switch s.state {
		case models.StateSearching:
			st.Searching++
		case models.StatePaired:
			st.Paired++
		}
	}
	st.Pairs = st.Paired / 2
	return st
}

func snapshotOf(s userSession) Snapshot {
	snap := Snapshot{State: s.state, Since: s.since}
	if s.edge != nil {
		snap.SessionID = s.edge.edge.SessionID
	}
	return snap
}
