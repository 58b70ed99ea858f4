package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"opsconsole/internal/domain"
)

type delivery struct {
	ctx   context.Context
	event domain.Event
}

// subscription owns a queue and a worker goroutine, so one subscriber sees
// events in publish order and a slow handler never blocks Publish.
type subscription struct {
	id      uint64
	handler domain.EventHandler

	mu     sync.Mutex
	queue  []delivery
	signal chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func (s *subscription) push(d delivery) {
	s.mu.Lock()
	s.queue = append(s.queue, d)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) pop() (delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return delivery{}, false
	}
	d := s.queue[0]
	s.queue[0] = delivery{}
	s.queue = s.queue[1:]
	return d, true
}

func (s *subscription) cancel() { s.once.Do(func() { close(s.stop) }) }

// Bus is an in-process, goroutine-safe event bus.
type Bus struct {
	mu      sync.RWMutex
	typed   map[domain.EventType][]*subscription
	allSubs []*subscription
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool
	closing chan struct{}
}

var _ domain.EventBus = (*Bus)(nil)

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		typed:   make(map[domain.EventType][]*subscription),
		logger:  logger,
		closing: make(chan struct{}),
	}
}

// Publish enqueues event for matching typed subscribers and all-event
// subscribers. It never waits for a handler.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	typed := make([]*subscription, len(b.typed[event.Type]))
	copy(typed, b.typed[event.Type])
	allSubs := make([]*subscription, len(b.allSubs))
	copy(allSubs, b.allSubs)
	b.mu.RUnlock()

	d := delivery{ctx: ctx, event: event}
	for _, sub := range typed {
		sub.push(d)
	}
	for _, sub := range allSubs {
		sub.push(d)
	}
}

func (b *Bus) newSubscription(handler domain.EventHandler) *subscription {
	sub := &subscription{
		id:      b.nextID.Add(1),
		handler: handler,
		signal:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run(sub)
	return sub
}

// run delivers queued events until the subscription is cancelled, or until
// the bus closes and the queue is empty.
func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	for {
		if d, ok := sub.pop(); ok {
			select {
			case <-sub.stop:
				return
			default:
			}
			b.deliver(sub, d)
			continue
		}
		select {
		case <-sub.signal:
		case <-sub.stop:
			return
		case <-b.closing:
			sub.mu.Lock()
			empty := len(sub.queue) == 0
			sub.mu.Unlock()
			if empty {
				return
			}
		}
	}
}

func (b *Bus) deliver(sub *subscription, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(d.event.Type),
				"panic", r,
			)
		}
	}()
	sub.handler(d.ctx, d.event)
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function; events still queued for it are dropped.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	sub := b.newSubscription(handler)

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		subs := b.typed[eventType]
		for i, s := range subs {
			if s.id == sub.id {
				b.typed[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		sub.cancel()
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	sub := b.newSubscription(handler)

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		for i, s := range b.allSubs {
			if s.id == sub.id {
				b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		sub.cancel()
	}
}

// Close prevents new publishes, delivers what is already queued and waits
// for every worker to exit. Close is idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	close(b.closing)
	b.wg.Wait()
}
