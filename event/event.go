// Package event fans committed DAO events out to in-process sinks such as the
// indexer. Delivery is synchronous and in publish order.
package event

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EventType string

type EventSubscriberId int

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// Subscriber receives events synchronously from Publish. A Deliver error or
// panic unsubscribes it. Close must be idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]Subscriber
	metrics     *busMetrics
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	Logger      *slog.Logger
	stopOnce    sync.Once
}

func NewEventBus(promRegistry prometheus.Registerer, logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]Subscriber),
		Logger:      logger,
	}
	if promRegistry != nil {
		e.metrics = newBusMetrics(promRegistry)
	}
	return e
}

// subscriberKind labels metrics with the Go type of the sink.
func subscriberKind(sub Subscriber) string {
	return fmt.Sprintf("%T", sub)
}

func (e *EventBus) add(eventType EventType, sub Subscriber) EventSubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSubId++
	subs, ok := e.subscribers[eventType]
	if !ok {
		subs = make(map[EventSubscriberId]Subscriber)
		e.subscribers[eventType] = subs
	}
	subs[e.lastSubId] = sub
	e.metrics.subscribed(eventType, subscriberKind(sub))
	return e.lastSubId
}

// RegisterSubscriber adds a synchronous sink. Publish returns only after the
// sink handled the event, so a single publisher sees its sinks in order.
func (e *EventBus) RegisterSubscriber(eventType EventType, sub Subscriber) EventSubscriberId {
	return e.add(eventType, sub)
}

func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	sub, ok := e.subscribers[eventType][subId]
	if ok {
		delete(e.subscribers[eventType], subId)
		if len(e.subscribers[eventType]) == 0 {
			delete(e.subscribers, eventType)
		}
		e.metrics.unsubscribed(eventType, subscriberKind(sub))
	}
	e.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Publish delivers evt to every subscriber of eventType before returning.
func (e *EventBus) Publish(eventType EventType, evt Event) {
	e.mu.RLock()
	ids := make([]EventSubscriberId, 0, len(e.subscribers[eventType]))
	subs := make([]Subscriber, 0, len(e.subscribers[eventType]))
	for id, sub := range e.subscribers[eventType] {
		ids = append(ids, id)
		subs = append(subs, sub)
	}
	e.mu.RUnlock()

	for i, sub := range subs {
		if err := deliver(sub, evt); err != nil {
			e.Unsubscribe(eventType, ids[i])
			e.metrics.deliveryFailed(eventType, subscriberKind(sub))
			e.Logger.Debug("event delivery error", "type", eventType, "err", err)
		}
	}
	e.metrics.published(eventType)
}

func deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// Stop closes every subscriber. Later publishes reach nobody.
func (e *EventBus) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		subs := e.subscribers
		e.subscribers = make(map[EventType]map[EventSubscriberId]Subscriber)
		e.mu.Unlock()
		for _, byID := range subs {
			for _, sub := range byID {
				sub.Close()
			}
		}
		e.metrics.reset()
	})
}
