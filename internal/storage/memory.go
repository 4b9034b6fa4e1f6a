package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// MemoryStore keeps analyses in process. Used when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	analyses map[string]models.Analysis
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{analyses: make(map[string]models.Analysis)}
}

func (m *MemoryStore) Save(ctx context.Context, analysis *models.Analysis) error {
	if analysis == nil || analysis.ID == "" {
		return fmt.Errorf("analysis id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[analysis.ID] = cloneAnalysis(*analysis)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.analyses[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneAnalysis(a)
	return &out, nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]models.Analysis, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	all := make([]models.Analysis, 0, len(m.analyses))
	for _, a := range m.analyses {
		all = append(all, cloneAnalysis(a))
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// cloneAnalysis copies the people and equipment maps so callers cannot
// mutate stored state.
func cloneAnalysis(a models.Analysis) models.Analysis {
	people := make([]models.PersonRecord, len(a.People))
	for i, p := range a.People {
		equipment := make(map[string]models.EquipmentVerdict, len(p.Equipment))
		for k, v := range p.Equipment {
			if v.BoundingBox != nil {
				box := *v.BoundingBox
				v.BoundingBox = &box
			}
			equipment[k] = v
		}
		p.Equipment = equipment
		people[i] = p
	}
	a.People = people
	return a
}
