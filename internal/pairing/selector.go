package pairing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/AnshRaj112/tandem-backend/internal/models"
)

// Selector picks a uniformly random eligible partner.
// Its choice is a hint: CommitPair re-checks availability.
type Selector struct {
	directory Directory
	registry  *Registry
	presence  Presence
	intn      func(n int) int
}

// NewSelector wires a selector over a directory and the live registry.
func NewSelector(directory Directory, registry *Registry) *Selector {
	return &Selector{directory: directory, registry: registry, intn: rand.IntN}
}

// WithPresence limits candidates to users p reports as connected.
func (s *Selector) WithPresence(p Presence) *Selector {
	s.presence = p
	return s
}

// Select returns a random candidate for requesterID, or ok=false when nobody qualifies.
// Users listed in exclude are skipped.
func (s *Selector) Select(ctx context.Context, requesterID string, criteria models.SearchCriteria, exclude map[string]struct{}) (models.User, bool, error) {
	pool := CandidatePool{Exclude: s.registry.PairedIDs()}
	for id := range exclude {
		pool.Exclude = append(pool.Exclude, id)
	}
	sort.Strings(pool.Exclude)
	if s.presence != nil {
		pool.Only = make([]string, 0)
		for _, id := range s.presence.OnlineUsers() {
			if id != requesterID {
				pool.Only = append(pool.Only, id)
			}
		}
		if len(pool.Only) == 0 {
			return models.User{}, false, nil
		}
		sort.Strings(pool.Only)
	}

	users, err := s.directory.ListEligible(ctx, requesterID, criteria, pool)
	if err != nil {
		return models.User{}, false, fmt.Errorf("list eligible users: %w", err)
	}

	candidates := make([]models.User, 0, len(users))
	for _, u := range users {
		if !s.eligible(requesterID, u, criteria, exclude) {
			continue
		}
		candidates = append(candidates, u)
	}
	if len(candidates) == 0 {
		return models.User{}, false, nil
	}
	return candidates[s.intn(len(candidates))], true, nil
}

func (s *Selector) eligible(requesterID string, u models.User, criteria models.SearchCriteria, exclude map[string]struct{}) bool {
	if u.ID == "" || u.ID == requesterID {
		return false
	}
	if u.Blocked || !u.ProfileComplete {
		return false
	}
	if _, skip := exclude[u.ID]; skip {
		return false
	}
	if !criteria.Matches(u.WithDefaults()) {
		return false
	}
	if s.presence != nil && !s.presence.Online(u.ID) {
		return false
	}
	return !s.registry.IsPaired(u.ID)
}
