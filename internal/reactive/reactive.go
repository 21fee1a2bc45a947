// Package reactive provides replay-latest values and memoized derivations.
//
// A Value always holds a current value. Subscribe delivers that value
// immediately and then every change. A Derived node computes its value once
// per upstream change and shares it with all of its subscribers.
package reactive

import (
	"sync"
)

// Equal reports whether two values should be treated as unchanged.
type Equal[T any] func(a, b T) bool

// Value is a thread-safe observable value.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	equal   Equal[T]
	subs    map[uint64]func(T)
	nextID  uint64
}

// NewValue creates a Value. A nil equal means every Set notifies.
func NewValue[T any](initial T, equal Equal[T]) *Value[T] {
	return &Value[T]{
		current: initial,
		equal:   equal,
		subs:    make(map[uint64]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value and notifies subscribers. It returns false
// without notifying when the value is equal to the current one.
func (v *Value[T]) Set(next T) bool {
	v.mu.Lock()
	if v.equal != nil && v.equal(v.current, next) {
		v.mu.Unlock()
		return false
	}
	v.current = next
	subs := v.snapshot()
	v.mu.Unlock()
	for _, fn := range subs {
		fn(next)
	}
	return true
}

// Update applies fn to the current value and stores the result.
func (v *Value[T]) Update(fn func(T) T) bool {
	v.mu.Lock()
	next := fn(v.current)
	if v.equal != nil && v.equal(v.current, next) {
		v.mu.Unlock()
		return false
	}
	v.current = next
	subs := v.snapshot()
	v.mu.Unlock()
	for _, sub := range subs {
		sub(next)
	}
	return true
}

// Subscribe calls fn with the current value and then on every change.
// The returned function removes the subscription; it is safe to call twice.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	current := v.current
	v.mu.Unlock()
	fn(current)
	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}

// Subscribers returns the number of live subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

func (v *Value[T]) snapshot() []func(T) {
	out := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		out = append(out, fn)
	}
	return out
}

// Readable is the read side of a Value or Derived node.
type Readable[T any] interface {
	Get() T
	Subscribe(fn func(T)) func()
}

// Derived is a Value computed from upstream readables. Close detaches it.
type Derived[T any] struct {
	*Value[T]
	once  sync.Once
	stops []func()
}

// Close unsubscribes from all upstream readables.
func (d *Derived[T]) Close() {
	d.once.Do(func() {
		for _, stop := range d.stops {
			stop()
		}
	})
}

// Map derives a value from a single upstream.
func Map[A, B any](src Readable[A], fn func(A) B, equal Equal[B]) *Derived[B] {
	var zero B
	d := &Derived[B]{Value: NewValue(zero, equal)}
	d.stops = append(d.stops, src.Subscribe(func(a A) {
		d.Set(fn(a))
	}))
	return d
}

// Combine derives a value from two upstreams.
func Combine[A, B, C any](a Readable[A], b Readable[B], fn func(A, B) C, equal Equal[C]) *Derived[C] {
	var zero C
	d := &Derived[C]{Value: NewValue(zero, equal)}
	var mu sync.Mutex
	ready := false
	recompute := func() {
		mu.Lock()
		if !ready {
			mu.Unlock()
			return
		}
		next := fn(a.Get(), b.Get())
		mu.Unlock()
		d.Set(next)
	}
	d.stops = append(d.stops, a.Subscribe(func(A) { recompute() }))
	d.stops = append(d.stops, b.Subscribe(func(B) { recompute() }))
	mu.Lock()
	ready = true
	mu.Unlock()
	recompute()
	return d
}

// Comparable is an Equal for comparable types.
func Comparable[T comparable](a, b T) bool { return a == b }

// SameElements reports whether two slices hold identical elements in the
// same order. For pointer elements this is a reference comparison.
func SameElements[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
