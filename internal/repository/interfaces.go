// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"plc-monitor/internal/model"
)

// ErrInvalidEvent is returned when an event cannot be stored
var ErrInvalidEvent = errors.New("invalid trigger event")

// TriggerEventRepository defines trigger event data access operations
type TriggerEventRepository interface {
	Create(ctx context.Context, event *model.TriggerEvent) error
	List(ctx context.Context, filter *TriggerEventFilter) ([]*model.TriggerEvent, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// DefaultListLimit bounds List when the filter does not
const DefaultListLimit = 100

// MaxListLimit is the largest page List returns
const MaxListLimit = 1000

// TriggerEventFilter represents trigger event listing filters
type TriggerEventFilter struct {
	Address *string    `json:"address,omitempty"`
	Name    *string    `json:"name,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
	Limit   int        `json:"limit"`
}

// limit clamps the requested page size
func (f *TriggerEventFilter) limit() int {
	if f == nil || f.Limit <= 0 {
		return DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

func validateEvent(event *model.TriggerEvent) error {
	if event == nil || event.Address == "" {
		return ErrInvalidEvent
	}
	return nil
}
