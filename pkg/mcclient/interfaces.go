// pkg/mcclient/interfaces.go
package mcclient

import (
	"context"
	"time"
)

// TriggerClient is what a caller needs to watch one controller word
type TriggerClient interface {
	// Target management
	SetTarget(address string, value uint16) error
	SetTargetMasked(address string, value, mask uint16) error

	// Waiting for a match
	Wait(ctx context.Context) bool
	WaitTimeout(timeout time.Duration) bool
	CurrentValue() uint16

	// Lifecycle
	Start() error
	Run(ctx context.Context) error
	Stop()
	Done() <-chan struct{}

	// Status and notifications
	State() State
	Status() Status
	OnMatch(fn func(Match))
	OnStateChange(fn func(State))
}

var _ TriggerClient = (*Client)(nil)
