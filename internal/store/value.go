package store

import (
	"sync"
	"time"
)

// Value caches a single object with a TTL.
type Value[T any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	value *T
	setAt time.Time

	notifier
}

func NewValue[T any](name string, ttl time.Duration) *Value[T] {
	return &Value[T]{name: name, ttl: ttl, now: time.Now}
}

// Get returns the value only while it is fresh.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var zero T
	if v.value == nil || v.now().Sub(v.setAt) > v.ttl {
		return zero, false
	}
	return *v.value, true
}

// Peek returns the last value regardless of age.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var zero T
	if v.value == nil {
		return zero, false
	}
	return *v.value, true
}

func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	v.value = &value
	v.setAt = v.now()
	v.mu.Unlock()
	v.notify(Change{Store: v.name, Kind: ChangeSet, At: v.now()})
}

func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	v.setAt = time.Time{}
	v.mu.Unlock()
	v.notify(Change{Store: v.name, Kind: ChangeInvalidate, At: v.now()})
}

func (v *Value[T]) Subscribe(fn func(Change)) func() {
	return v.subscribe(fn)
}
