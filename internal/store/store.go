// Package store holds per-user, in-memory copies of backend data so repeated
// reads inside a session do not go back to the network. Stores never do I/O;
// services decide when to fetch and write results here.
package store

import (
	"fmt"
	"sync"
	"time"
)

type Identifiable interface {
	GetID() string
}

// Change is sent to subscribers after every mutation.
type Change struct {
	Store string    `json:"store"`
	Kind  string    `json:"kind"`
	At    time.Time `json:"at"`
}

const (
	ChangeSet        = "set"
	ChangeAppend     = "append"
	ChangeUpsert     = "upsert"
	ChangeRemove     = "remove"
	ChangeLoading    = "loading"
	ChangeError      = "error"
	ChangeInvalidate = "invalidate"
)

type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

func (n *notifier) subscribe(fn func(Change)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Change))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify(c Change) {
	n.mu.Lock()
	fns := make([]func(Change), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Store is a list cache. Every mutation swaps in a new slice, so a slice
// returned by Items is never modified afterwards.
type Store[T Identifiable] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu        sync.RWMutex
	items     []T
	total     int
	loading   bool
	err       error
	current   string
	fetchedAt time.Time

	notifier
}

func New[T Identifiable](name string, ttl time.Duration) *Store[T] {
	return &Store[T]{
		name:  name,
		ttl:   ttl,
		now:   time.Now,
		items: []T{},
	}
}

func (s *Store[T]) Name() string {
	return s.name
}

func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items
}

func (s *Store[T]) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store[T]) Find(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.GetID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// FindFunc returns the first item matching pred.
func (s *Store[T]) FindFunc(pred func(T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Set replaces the contents and clears loading and error state.
func (s *Store[T]) Set(data []T, total int) {
	next := make([]T, len(data))
	copy(next, data)

	s.mu.Lock()
	s.items = next
	s.total = total
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	s.notify(Change{Store: s.name, Kind: ChangeSet, At: s.now()})
}

// Append adds items whose id is not already cached. Existing items keep their
// position and duplicates inside data are dropped too.
func (s *Store[T]) Append(data ...T) int {
	s.mu.Lock()
	seen := make(map[string]struct{}, len(s.items)+len(data))
	for _, item := range s.items {
		seen[item.GetID()] = struct{}{}
	}

	next := make([]T, len(s.items), len(s.items)+len(data))
	copy(next, s.items)
	added := 0
	for _, item := range data {
		id := item.GetID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		next = append(next, item)
		added++
	}
	if added > 0 {
		s.items = next
		s.total += added
	}
	s.mu.Unlock()

	if added > 0 {
		s.notify(Change{Store: s.name, Kind: ChangeAppend, At: s.now()})
	}
	return added
}

// Upsert replaces the item with the same id in place, or prepends it.
func (s *Store[T]) Upsert(item T) {
	id := item.GetID()

	s.mu.Lock()
	idx := -1
	for i, existing := range s.items {
		if existing.GetID() == id {
			idx = i
			break
		}
	}

	var next []T
	if idx >= 0 {
		next = make([]T, len(s.items))
		copy(next, s.items)
		next[idx] = item
	} else {
		next = make([]T, 0, len(s.items)+1)
		next = append(next, item)
		next = append(next, s.items...)
		s.total++
	}
	s.items = next
	s.mu.Unlock()

	s.notify(Change{Store: s.name, Kind: ChangeUpsert, At: s.now()})
}

func (s *Store[T]) Remove(id string) bool {
	s.mu.Lock()
	next := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if item.GetID() != id {
			next = append(next, item)
		}
	}
	removed := len(next) != len(s.items)
	if removed {
		s.items = next
		s.total--
	}
	s.mu.Unlock()

	if removed {
		s.notify(Change{Store: s.name, Kind: ChangeRemove, At: s.now()})
	}
	return removed
}

func (s *Store[T]) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
	s.notify(Change{Store: s.name, Kind: ChangeLoading, At: s.now()})
}

// SetError records a failed fetch; cached items are kept.
func (s *Store[T]) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.loading = false
	s.mu.Unlock()
	s.notify(Change{Store: s.name, Kind: ChangeError, At: s.now()})
}

func pageKey(key string, page int) string {
	return fmt.Sprintf("%s#%d", key, page)
}

// ShouldFetch reports whether the cached contents are missing, stale, errored
// or belong to a different query/page.
func (s *Store[T]) ShouldFetch(key string, page int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil || s.current != pageKey(key, page) || s.fetchedAt.IsZero() {
		return true
	}
	return s.now().Sub(s.fetchedAt) > s.ttl
}

func (s *Store[T]) MarkFetched(key string, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = pageKey(key, page)
	s.fetchedAt = s.now()
}

// Invalidate forces the next ShouldFetch to return true without dropping items.
func (s *Store[T]) Invalidate() {
	s.mu.Lock()
	s.current = ""
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
	s.notify(Change{Store: s.name, Kind: ChangeInvalidate, At: s.now()})
}

func (s *Store[T]) Subscribe(fn func(Change)) func() {
	return s.subscribe(fn)
}
