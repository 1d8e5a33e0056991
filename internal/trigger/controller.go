// internal/trigger/controller.go
package trigger

import (
	"context"
	"sync"
	"time"

	"plc-monitor/internal/driver/melsec"
)

// DefaultMask compares every bit of the observed word
const DefaultMask uint16 = 0xFFFF

// Target is the word being watched and the value that satisfies it
type Target struct {
	Address melsec.ElementAddress `json:"address"`
	Value   uint16                `json:"value"`
	Mask    uint16                `json:"mask"`
}

// Matches applies the mask to an observed value and compares it with the target value
func (t Target) Matches(observed uint16) bool {
	return observed&t.Mask == t.Value
}

// Match is handed to match hooks after a raise
type Match struct {
	Target Target
	Value  uint16
	At     time.Time
}

// State is a point-in-time copy of the shared poll state
type State struct {
	Target       Target
	HasTarget    bool
	Changing     bool
	Dirty        bool
	Satisfied    bool
	LastObserved uint16
	CurrentValue uint16
	LastMatchAt  time.Time
}

// Controller owns the watched target and the wait/raise contract between the
// caller and the polling engine. All shared fields sit behind one mutex that
// is only held for short sections, never across network I/O.
type Controller struct {
	mu sync.Mutex

	target     Target
	hasTarget  bool
	generation uint64

	lastObserved uint16
	dirty        bool

	// changing is set when the target is replaced and cleared once a request
	// built from the new target has gone out on the wire.
	changing bool

	satisfied    bool
	currentValue uint16
	lastMatchAt  time.Time

	// closed and replaced on every raise to wake all waiters
	signal chan struct{}

	hooks []func(Match)
}

// NewController returns a controller with no target configured
func NewController() *Controller {
	return &Controller{signal: make(chan struct{})}
}

// SetTarget parses addressText and atomically replaces the target. On a parse
// error the current target is left untouched.
func (c *Controller) SetTarget(addressText string, value, mask uint16) error {
	addr, err := melsec.ParseAddress(addressText)
	if err != nil {
		return err
	}
	c.Replace(Target{Address: addr, Value: value, Mask: mask})
	return nil
}

// Replace installs an already parsed target
func (c *Controller) Replace(t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.target = t
	c.hasTarget = true
	c.generation++
	c.changing = true
	// a trigger nobody consumed belongs to the superseded target
	c.satisfied = false
}

// Wait blocks until a raise is observed or ctx is done. A raise is consumed
// by exactly one Wait; a raise with nobody waiting is kept for the next call.
func (c *Controller) Wait(ctx context.Context) bool {
	for {
		c.mu.Lock()
		if c.satisfied {
			c.satisfied = false
			c.mu.Unlock()
			return true
		}
		signal := c.signal
		c.mu.Unlock()

		select {
		case <-signal:
		case <-ctx.Done():
			return false
		}
	}
}

// WaitTimeout is Wait with a relative timeout; d <= 0 waits forever
func (c *Controller) WaitTimeout(d time.Duration) bool {
	ctx := context.Background()
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return c.Wait(ctx)
}

// Raise records value as the current trigger value and wakes all waiters
func (c *Controller) Raise(value uint16) {
	c.mu.Lock()
	m := c.raiseLocked(value)
	hooks := c.hooks
	c.mu.Unlock()

	c.notify(hooks, m)
}

func (c *Controller) raiseLocked(value uint16) Match {
	c.currentValue = value
	c.satisfied = true
	c.lastMatchAt = time.Now()
	close(c.signal)
	c.signal = make(chan struct{})
	return Match{Target: c.target, Value: value, At: c.lastMatchAt}
}

// CurrentValue returns the value of the last raise
func (c *Controller) CurrentValue() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentValue
}

// OnMatch registers fn to be called after every raise, outside the lock
func (c *Controller) OnMatch(fn func(Match)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Snapshot returns the target a new request should be built from. The
// generation must be handed back to MarkSent once that request is written.
func (c *Controller) Snapshot() (Target, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target, c.generation, c.hasTarget
}

// MarkSent clears the changing flag if no newer target was installed since
// the Snapshot that produced generation.
func (c *Controller) MarkSent(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation == c.generation {
		c.changing = false
	}
}

// Observe evaluates a decoded reading and raises when the masked value
// matches a live target after a change in the observed value.
func (c *Controller) Observe(value uint16) bool {
	c.mu.Lock()
	if value != c.lastObserved {
		c.lastObserved = value
		c.dirty = true
	}
	if !c.hasTarget || !c.dirty || c.changing || !c.target.Matches(value) {
		c.mu.Unlock()
		return false
	}
	c.dirty = false
	m := c.raiseLocked(value)
	hooks := c.hooks
	c.mu.Unlock()

	c.notify(hooks, m)
	return true
}

// ResetObservation sets the last observed value back to 0 for every new
// session. A first reading of 0 after a reconnect is therefore not a change.
func (c *Controller) ResetObservation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastObserved = 0
	c.dirty = false
}

func (c *Controller) notify(hooks []func(Match), m Match) {
	for _, fn := range hooks {
		fn(m)
	}
}

// State returns a copy of the shared state for status reporting
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Target:       c.target,
		HasTarget:    c.hasTarget,
		Changing:     c.changing,
		Dirty:        c.dirty,
		Satisfied:    c.satisfied,
		LastObserved: c.lastObserved,
		CurrentValue: c.currentValue,
		LastMatchAt:  c.lastMatchAt,
	}
}
