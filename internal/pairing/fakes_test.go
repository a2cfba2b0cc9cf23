package pairing

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/AnshRaj112/tandem-backend/internal/models"
)

type memoryDirectory struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryDirectory(users ...models.User) *memoryDirectory {
	d := &memoryDirectory{users: make(map[string]models.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *memoryDirectory) GetUser(_ context.Context, id string) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (d *memoryDirectory) ListEligible(_ context.Context, requesterID string, criteria models.SearchCriteria, pool CandidatePool) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.User
	for _, u := range d.users {
		if u.ID == requesterID || u.Blocked || !u.ProfileComplete || !criteria.Matches(u) {
			continue
		}
		if slices.Contains(pool.Exclude, u.ID) {
			continue
		}
		if pool.Only != nil && !slices.Contains(pool.Only, u.ID) {
			continue
		}
		out = append(out, u)
	}
	// stable order so injected pickers are deterministic
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type failingDirectory struct{ err error }

func (f failingDirectory) GetUser(context.Context, string) (models.User, error) {
	return models.User{}, f.err
}

func (f failingDirectory) ListEligible(context.Context, string, models.SearchCriteria, CandidatePool) ([]models.User, error) {
	return nil, f.err
}

type onlineSet struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newOnlineSet(ids ...string) *onlineSet {
	o := &onlineSet{ids: make(map[string]bool)}
	for _, id := range ids {
		o.ids[id] = true
	}
	return o
}

func (o *onlineSet) Online(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ids[userID]
}

func (o *onlineSet) OnlineUsers() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.ids))
	for id := range o.ids {
		out = append(out, id)
	}
	return out
}

func (o *onlineSet) drop(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.ids, userID)
}

func completeUser(id, language string) models.User {
	return models.User{ID: id, DisplayName: "user-" + id, Language: language, ProfileComplete: true}
}

type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries map[string][]Delivery
	err        error
	onDeliver  func()
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{deliveries: make(map[string][]Delivery)}
}

func (d *recordingDeliverer) Deliver(_ context.Context, targetID string, del Delivery) error {
	if d.onDeliver != nil {
		d.onDeliver()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.deliveries[targetID] = append(d.deliveries[targetID], del)
	return nil
}

func (d *recordingDeliverer) to(targetID string) []Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Delivery(nil), d.deliveries[targetID]...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[string][]Event)}
}

func (n *recordingNotifier) Notify(_ context.Context, userID string, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[userID] = append(n.events[userID], ev)
	return nil
}

func (n *recordingNotifier) kinds(userID string) []EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []EventKind
	for _, ev := range n.events[userID] {
		out = append(out, ev.Kind)
	}
	return out
}

func (n *recordingNotifier) last(userID string) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	evs := n.events[userID]
	if len(evs) == 0 {
		return Event{}, false
	}
	return evs[len(evs)-1], true
}

type recordingOversight struct {
	mu          sync.Mutex
	connections []models.ConnectionRecord
	transcripts []models.TranscriptRecord
	err         error
}

func (o *recordingOversight) LogConnection(_ context.Context, rec models.ConnectionRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.connections = append(o.connections, rec)
	return nil
}

func (o *recordingOversight) LogTranscript(_ context.Context, rec models.TranscriptRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.transcripts = append(o.transcripts, rec)
	return nil
}

func (o *recordingOversight) snapshot() ([]models.ConnectionRecord, []models.TranscriptRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ConnectionRecord(nil), o.connections...), append([]models.TranscriptRecord(nil), o.transcripts...)
}

type recordingCheckpointer struct {
	mu     sync.Mutex
	states map[string][]Snapshot
}

func (c *recordingCheckpointer) Save(_ context.Context, userID string, state Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states == nil {
		c.states = make(map[string][]Snapshot)
	}
	c.states[userID] = append(c.states[userID], state)
	return nil
}

func (c *recordingCheckpointer) count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states[userID])
}

var errUnreachable = errors.New("partner unreachable")
