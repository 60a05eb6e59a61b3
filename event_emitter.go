package wavechan

import (
	"sync"
)

type callback[T any] func(T)

type registration[V any] struct {
	id       uint64
	listener callback[V]
}

// EventEmitterCallback maps events (of type K) to callbacks receiving values of
// type V. Listeners run synchronously on the emitting goroutine, in
// registration order.
type EventEmitterCallback[K comparable, V any] struct {
	listeners map[K][]registration[V]
	nextID    uint64
	lock      sync.RWMutex
}

// NewEventEmitter creates a new EventEmitterCallback and returns a pointer to it.
func NewEventEmitter[K comparable, V any]() *EventEmitterCallback[K, V] {
	return &EventEmitterCallback[K, V]{
		listeners: make(map[K][]registration[V]),
	}
}

// On registers a new listener for the given event. The returned func removes
// it; calling it more than once is harmless.
func (e *EventEmitterCallback[K, V]) On(event K, listener callback[V]) func() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], registration[V]{id: id, listener: listener})

	return func() { e.off(event, id) }
}

func (e *EventEmitterCallback[K, V]) off(event K, id uint64) {
	e.lock.Lock()
	defer e.lock.Unlock()

	regs := e.listeners[event]
	for i, r := range regs {
		if r.id == id {
			next := make([]registration[V], 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			e.listeners[event] = next
			return
		}
	}
}

// Emit calls every listener registered for the given event with data.
// Listeners may register or remove listeners while being called; such changes
// apply from the next Emit.
func (e *EventEmitterCallback[K, V]) Emit(event K, data V) {
	e.lock.RLock()
	regs := e.listeners[event]
	e.lock.RUnlock()

	for _, r := range regs {
		r.listener(data)
	}
}

// Len returns the number of listeners registered for event.
func (e *EventEmitterCallback[K, V]) Len(event K) int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.listeners[event])
}
