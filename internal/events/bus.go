package events

import "sync"

// Bus fans values out to subscribers in subscription order. Handlers run on
// the publishing goroutine. The zero value is ready to use.
type Bus[T any] struct {
	mu     sync.RWMutex
	nextID int
	order  []int
	subs   map[int]func(T)
}

func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = map[int]func(T){}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) Publish(value T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(value)
	}
}

func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.order)
}

func (b *Bus[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			return
		}
	}
}
