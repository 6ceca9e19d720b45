package leaderboard

import (
	"context"
	"sort"
	"sync"

	"github.com/mcdev12/pitchtank/go/internal/models"
)

// MemoryStore keeps entries for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryStore) Top(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var deals []Entry
	for _, e := range s.entries {
		if e.Result == models.OutcomeDeal {
			deals = append(deals, e)
		}
	}
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].DealAmount > deals[j].DealAmount
	})
	if limit > 0 && len(deals) > limit {
		deals = deals[:limit]
	}
	return deals, nil
}

// All returns every recorded entry, deals or not.
func (s *MemoryStore) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *MemoryStore) Close(context.Context) error { return nil }
