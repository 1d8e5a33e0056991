// internal/repository/memory_repository.go
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"plc-monitor/internal/model"
)

// memoryTriggerEventRepository keeps events in process when no database is
// configured. It holds at most capacity events and drops the oldest.
type memoryTriggerEventRepository struct {
	mu       sync.RWMutex
	events   []*model.TriggerEvent
	capacity int
}

// NewMemoryTriggerEventRepository creates an in-process repository
func NewMemoryTriggerEventRepository(capacity int) TriggerEventRepository {
	if capacity <= 0 {
		capacity = MaxListLimit
	}
	return &memoryTriggerEventRepository{capacity: capacity}
}

func (r *memoryTriggerEventRepository) Create(ctx context.Context, event *model.TriggerEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	stored := *event

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, &stored)
	sort.SliceStable(r.events, func(i, j int) bool {
		return r.events[i].MatchedAt.Before(r.events[j].MatchedAt)
	})
	if over := len(r.events) - r.capacity; over > 0 {
		r.events = append(r.events[:0:0], r.events[over:]...)
	}
	return nil
}

func (r *memoryTriggerEventRepository) List(ctx context.Context, filter *TriggerEventFilter) ([]*model.TriggerEvent, error) {
	limit := filter.limit()

	r.mu.RLock()
	defer r.mu.RUnlock()

	events := []*model.TriggerEvent{}
	for i := len(r.events) - 1; i >= 0 && len(events) < limit; i-- {
		e := r.events[i]
		if filter != nil {
			if filter.Address != nil && e.Address != *filter.Address {
				continue
			}
			if filter.Name != nil && e.Name != *filter.Name {
				continue
			}
			if filter.Since != nil && e.MatchedAt.Before(*filter.Since) {
				continue
			}
		}
		copied := *e
		events = append(events, &copied)
	}
	return events, nil
}

func (r *memoryTriggerEventRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var deleted int64
	for _, e := range r.events {
		if e.MatchedAt.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}
