// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"plc-monitor/internal/model"
)

// EventBus decouples event producers from slow consumers. Publish never
// blocks; events are dropped when the bus or a subscriber is full.
type EventBus struct {
	subscribers map[model.EventType][]chan model.Event
	events      chan model.Event
	mutex       sync.RWMutex
	logger      *zap.Logger
	dropped     atomic.Uint64
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[model.EventType][]chan model.Event),
		events:      make(chan model.Event, 1000),
		logger:      logger,
	}
}

// Start distributes events until ctx is done, then closes every subscriber
// channel.
func (eb *EventBus) Start(ctx context.Context) {
	defer eb.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// Publish publishes an event
func (eb *EventBus) Publish(event model.Event) {
	select {
	case eb.events <- event:
	default:
		eb.dropped.Add(1)
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe returns a channel receiving events of the given types
func (eb *EventBus) Subscribe(eventTypes ...model.EventType) <-chan model.Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.Event, 100)
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], subscriber)
	}
	return subscriber
}

// Dropped returns how many events were discarded
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.Event) {
	eb.mutex.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// slow subscriber
			eb.dropped.Add(1)
		}
	}
}

func (eb *EventBus) closeSubscribers() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	closed := make(map[chan model.Event]bool)
	for _, subs := range eb.subscribers {
		for _, s := range subs {
			if !closed[s] {
				close(s)
				closed[s] = true
			}
		}
	}
	eb.subscribers = make(map[model.EventType][]chan model.Event)
}
