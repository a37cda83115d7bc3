// Package store holds the client-side ticket state: the ticket collection
// with its derived stats, the filter and pagination state, and transient
// UI state. Each store is an explicitly constructed object; consumers read
// through getters and learn about changes through Subscribe.
package store

import "sync"

// Observable is implemented by every store. The callback runs
// synchronously after a mutation has been committed, outside the store's
// lock, so it may read from the store. The returned function removes the
// subscription.
type Observable interface {
	Subscribe(fn func()) (unsubscribe func())
}

// subscribers is the registry embedded in each store.
type subscribers struct {
	mu   sync.Mutex
	next int
	list []subscription
}

type subscription struct {
	id int
	fn func()
}

// Subscribe implements Observable.
func (s *subscribers) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.list = append(s.list, subscription{id: id, fn: fn})

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			for i, sub := range s.list {
				if sub.id == id {
					s.list = append(s.list[:i:i], s.list[i+1:]...)

					break
				}
			}
		})
	}
}

// notify calls every subscriber in registration order. Must be called
// without the owning store's lock held.
func (s *subscribers) notify() {
	s.mu.Lock()
	list := make([]subscription, len(s.list))
	copy(list, s.list)
	s.mu.Unlock()

	for _, sub := range list {
		sub.fn()
	}
}
