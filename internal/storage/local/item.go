package local

import "go.uber.org/zap"

// Item is a typed handle on one key. Get never fails: a missing or
// unparseable value yields the initial value.
type Item[T any] struct {
	store   *Store
	key     string
	initial T
}

// NewItem creates a typed handle for key.
func NewItem[T any](store *Store, key string, initial T) *Item[T] {
	return &Item[T]{store: store, key: key, initial: initial}
}

// Key returns the storage key.
func (i *Item[T]) Key() string { return i.key }

// Get returns the stored value or the initial value.
func (i *Item[T]) Get() T {
	var v T
	ok, err := i.store.Get(i.key, &v)
	if err != nil {
		i.store.logger.Warn("falling back to initial value",
			zap.String("key", i.key),
			zap.Error(err))
		return i.initial
	}
	if !ok {
		return i.initial
	}
	return v
}

// Set stores v.
func (i *Item[T]) Set(v T) error {
	return i.store.Set(i.key, v)
}

// Update stores fn applied to the current value.
func (i *Item[T]) Update(fn func(T) T) error {
	return i.Set(fn(i.Get()))
}

// Remove deletes the stored value; Get returns the initial value afterwards.
func (i *Item[T]) Remove() error {
	return i.store.Remove(i.key)
}
