package pairing

import (
	"sort"
	"sync"

	"github.com/AnshRaj112/tandem-backend/internal/models"
)

// DefaultTranscriptCap is the per-user transcript length used when none is configured.
const DefaultTranscriptCap = 100

// TranscriptStore keeps a bounded, ordered log of relayed messages per user.
// Each participant of a pairing owns an independent copy; eviction on one side
// does not touch the other.
type TranscriptStore struct {
	mu   sync.Mutex
	cap  int
	logs map[string]*transcriptRing
}

// NewTranscriptStore creates a store whose transcripts hold at most capacity entries.
func NewTranscriptStore(capacity int) *TranscriptStore {
	if capacity <= 0 {
		capacity = DefaultTranscriptCap
	}
	return &TranscriptStore{
		cap:  capacity,
		logs: make(map[string]*transcriptRing),
	}
}

// Cap returns the configured per-user limit.
func (s *TranscriptStore) Cap() int { return s.cap }

// Init starts an empty transcript for userID, replacing any leftover one.
func (s *TranscriptStore) Init(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[userID] = &transcriptRing{}
}

// Append adds entry to userID's transcript, evicting the oldest entry past the cap.
func (s *TranscriptStore) Append(userID string, entry models.TranscriptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.logs[userID]
	if !ok {
		r = &transcriptRing{}
		s.logs[userID] = r
	}
	r.push(entry, s.cap)
}

// Drain returns userID's transcript oldest-first and discards it.
func (s *TranscriptStore) Drain(userID string) []models.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.logs[userID]
	if !ok {
		return nil
	}
	delete(s.logs, userID)
	return r.items()
}

// Snapshot returns a copy of userID's transcript without clearing it.
func (s *TranscriptStore) Snapshot(userID string) []models.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.logs[userID]; ok {
		return r.items()
	}
	return nil
}

// Len returns the number of entries currently held for userID.
func (s *TranscriptStore) Len(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.logs[userID]; ok {
		return r.n
	}
	return 0
}

// transcriptRing grows up to cap and then overwrites its oldest slot.
type transcriptRing struct {
	buf   []models.TranscriptEntry
	start int
	n     int
}

func (r *transcriptRing) push(e models.TranscriptEntry, capacity int) {
	if r.n < capacity {
		if len(r.buf) < capacity {
			r.buf = append(r.buf, e)
		} else {
			r.buf[(r.start+r.n)%len(r.buf)] = e
		}
		r.n++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *transcriptRing) items() []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// MergeTranscripts combines both participants' copies of one pairing timeline,
// dropping duplicates by sequence number and ordering oldest-first.
func MergeTranscripts(copies ...[]models.TranscriptEntry) []models.TranscriptEntry {
	seen := make(map[uint64]struct{})
	var out []models.TranscriptEntry
	for _, c := range copies {
		for _, e := range c {
			if _, dup := seen[e.Seq]; dup {
				continue
			}
			seen[e.Seq] = struct{}{}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
