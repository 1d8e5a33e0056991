// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType represents the type of event
type EventType string

const (
	EventTrigger      EventType = "trigger"
	EventStateChanged EventType = "state_changed"
	EventTargetSet    EventType = "target_set"
)

// Event is the envelope broadcast to live subscribers
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// TriggerEvent records one raised trigger
type TriggerEvent struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Address     string          `json:"address" db:"address"`
	TargetValue uint16          `json:"target_value" db:"target_value"`
	Mask        uint16          `json:"mask" db:"mask"`
	RawValue    uint16          `json:"raw_value" db:"raw_value"`
	ScaledValue decimal.Decimal `json:"scaled_value" db:"scaled_value"`
	Unit        string          `json:"unit,omitempty" db:"unit"`
	MatchedAt   time.Time       `json:"matched_at" db:"matched_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Label names the current target and how its readings are scaled
type Label struct {
	Name  string          `json:"name"`
	Scale decimal.Decimal `json:"scale"`
	Unit  string          `json:"unit,omitempty"`
}

// DefaultLabel is applied to targets set without a name
func DefaultLabel() Label {
	return Label{Name: "manual", Scale: decimal.NewFromInt(1)}
}

// NewTriggerEvent builds an event for a matched reading
func NewTriggerEvent(label Label, address string, targetValue, mask, raw uint16, at time.Time) *TriggerEvent {
	scale := label.Scale
	if scale.IsZero() {
		scale = decimal.NewFromInt(1)
	}
	return &TriggerEvent{
		ID:          uuid.New(),
		Name:        label.Name,
		Address:     address,
		TargetValue: targetValue,
		Mask:        mask,
		RawValue:    raw,
		ScaledValue: decimal.NewFromInt(int64(raw)).Mul(scale),
		Unit:        label.Unit,
		MatchedAt:   at,
		CreatedAt:   time.Now(),
	}
}

// StateChangedEventData is broadcast on connection state transitions
type StateChangedEventData struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// TargetSetEventData is broadcast when the watched target is replaced
type TargetSetEventData struct {
	Address string `json:"address"`
	Value   uint16 `json:"value"`
	Mask    uint16 `json:"mask"`
	Label   Label  `json:"label"`
}
