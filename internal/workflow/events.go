package workflow

import (
	"fmt"
	"sync"

	"timeline/internal/logging"
)

// EventKind is one of the fixed fan-out event kinds the engine emits.
type EventKind string

const (
	EventStarted             EventKind = "started"
	EventPaused              EventKind = "paused"
	EventResumed             EventKind = "resumed"
	EventStopped             EventKind = "stopped"
	EventCancelled           EventKind = "cancelled"
	EventCompleted           EventKind = "completed"
	EventItemStarted         EventKind = "item_started"
	EventItemCompleted       EventKind = "item_completed"
	EventItemError           EventKind = "item_error"
	EventUserActionRequired  EventKind = "user_action_required"
	EventItemProgress        EventKind = "item_progress"
)

// Event is the payload delivered to subscribers. Not every field is
// populated for every Kind:
//
//	started/paused/resumed/stopped/cancelled/completed: no payload
//	item_started(item), item_completed(item, result), item_error(item, message),
//	user_action_required(item, result), item_progress(item, data)
type Event struct {
	Kind    EventKind
	Item    Item
	Result  *Result
	Message string
	Data    any
}

// Handler receives delivered events. Handlers must not block — the engine
// invokes them synchronously, in registration order, on the goroutine that
// made the state transition (the run loop, or a caller of Start, Pause,
// Cancel, HandleUserAction and the like).
type Handler func(Event)

type subscription struct {
	token   int
	handler Handler
}

// EventBus is a fixed-kind, multi-subscriber, synchronous pub/sub. Delivery
// order matches registration order; a panicking handler is recovered and
// logged, never allowed to abort the engine's own state transition.
type EventBus struct {
	mu     sync.Mutex
	subs   map[EventKind][]subscription
	nextID int
	log    logging.Logger
}

// NewEventBus constructs an empty bus. A nil logger is replaced with a
// no-op one via logging.OrNop.
func NewEventBus(log logging.Logger) *EventBus {
	return &EventBus{subs: make(map[EventKind][]subscription), log: logging.OrNop(log)}
}

// On registers handler for kind and returns a token that can be passed to
// Off to remove it again.
func (b *EventBus) On(kind EventKind, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	token := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{token: token, handler: handler})
	return token
}

// Off removes the handler registered under token for kind. Removing an
// unknown token is a silent no-op.
func (b *EventBus) Off(kind EventKind, token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[kind]
	for i, s := range subs {
		if s.token == token {
			b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// emit delivers ev synchronously to every subscriber of ev.Kind, in
// registration order, trapping panics from individual handlers.
func (b *EventBus) emit(ev Event) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs[ev.Kind]...)
	b.mu.Unlock()

	for _, s := range subs {
		b.dispatch(s.handler, ev)
	}
}

func (b *EventBus) dispatch(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked for %s: %v", ev.Kind, r)
		}
	}()
	handler(ev)
}

func (e Event) String() string {
	if e.Item != nil {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Item.ID())
	}
	return string(e.Kind)
}
