// pkg/mcclient/mcclienttest/client.go

// Package mcclienttest provides an in-process TriggerClient for tests. It
// runs the real trigger controller and lets the test play controller
// responses without a network.
package mcclienttest

import (
	"context"
	"sync"
	"time"

	"plc-monitor/internal/trigger"
	"plc-monitor/pkg/mcclient"
)

// Client is a mcclient.TriggerClient backed by a trigger controller
type Client struct {
	ctrl *trigger.Controller

	mu        sync.Mutex
	state     mcclient.State
	listeners []func(mcclient.State)
	status    mcclient.Status
	done      chan struct{}
	stopOnce  sync.Once
}

var _ mcclient.TriggerClient = (*Client)(nil)

// New creates an idle client
func New() *Client {
	return &Client{
		ctrl:  trigger.NewController(),
		state: mcclient.StateIdle,
		done:  make(chan struct{}),
	}
}

func (c *Client) SetTarget(address string, value uint16) error {
	return c.ctrl.SetTarget(address, value, mcclient.DefaultMask)
}

func (c *Client) SetTargetMasked(address string, value, mask uint16) error {
	return c.ctrl.SetTarget(address, value, mask)
}

func (c *Client) Wait(ctx context.Context) bool { return c.ctrl.Wait(ctx) }

func (c *Client) WaitTimeout(d time.Duration) bool { return c.ctrl.WaitTimeout(d) }

func (c *Client) CurrentValue() uint16 { return c.ctrl.CurrentValue() }

// Start moves the client to Connected
func (c *Client) Start() error {
	c.SetState(mcclient.StateConnected)
	return nil
}

// Run is Start followed by blocking until Stop or ctx is done
func (c *Client) Run(ctx context.Context) error {
	c.Start()
	select {
	case <-ctx.Done():
		c.Stop()
	case <-c.done:
	}
	return nil
}

// Stop moves the client to Stopped and closes Done
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.SetState(mcclient.StateStopped)
		close(c.done)
	})
}

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) State() mcclient.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status reports the controller state merged over the status set by
// SetStatus
func (c *Client) Status() mcclient.Status {
	c.mu.Lock()
	status := c.status
	status.State = c.state
	c.mu.Unlock()

	st := c.ctrl.State()
	status.HasTarget = st.HasTarget
	status.Changing = st.Changing
	status.LastObserved = st.LastObserved
	status.CurrentValue = st.CurrentValue
	if st.HasTarget {
		status.Address = st.Target.Address.String()
		status.TargetValue = st.Target.Value
		status.Mask = st.Target.Mask
	}
	return status
}

func (c *Client) OnMatch(fn func(mcclient.Match)) { c.ctrl.OnMatch(fn) }

func (c *Client) OnStateChange(fn func(mcclient.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetStatus sets the connection fields Status reports
func (c *Client) SetStatus(status mcclient.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// SetState changes the state and notifies listeners on the calling goroutine
func (c *Client) SetState(s mcclient.State) {
	c.mu.Lock()
	c.state = s
	listeners := append([]func(mcclient.State){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// Respond plays one request and response round for the current target.
// It reports whether the response raised a match.
func (c *Client) Respond(value uint16) bool {
	_, gen, ok := c.ctrl.Snapshot()
	if !ok {
		return false
	}
	c.ctrl.MarkSent(gen)
	return c.ctrl.Observe(value)
}

// AnswerEachTarget makes every newly installed target match exactly once,
// until ctx is done.
func (c *Client) AnswerEachTarget(ctx context.Context) {
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Millisecond):
		}
		target, gen, ok := c.ctrl.Snapshot()
		if !ok || gen == last {
			continue
		}
		last = gen
		c.Respond(^target.Value)
		c.Respond(target.Value)
	}
}
