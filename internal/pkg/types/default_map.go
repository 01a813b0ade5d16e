// Package types holds small generic containers shared across the module.
package types

// DefaultMap is a map wrapper that creates values on first access with a
// user supplied constructor, saving the caller an existence check.
//
//	subs := NewDefaultMap[string](func() []string { return nil })
//	subs.Set("0xabc", append(subs.Get("0xabc"), "id-1"))
//
// It is not safe for concurrent use.
type DefaultMap[K comparable, V any] struct {
	data        map[K]V  // underlying key/value pairs
	defaultFunc func() V // builds the value for a missing key
}

// NewDefaultMap creates an empty DefaultMap.
//
// Parameters:
//   - defaultFunc: builds the value stored for a key read by Get before it
//     was set.
//
// Returns:
//   - An empty DefaultMap ready for use.
func NewDefaultMap[K comparable, V any](defaultFunc func() V) DefaultMap[K, V] {
	return DefaultMap[K, V]{
		data:        make(map[K]V),
		defaultFunc: defaultFunc,
	}
}

// Get returns the value for key, creating and storing a default one when the
// key is absent.
//
// Parameters:
//   - key: the key to read.
//
// Returns:
//   - The stored value, or the freshly stored default.
func (d *DefaultMap[K, V]) Get(key K) V {
	val, ok := d.data[key]
	if ok {
		return val
	}

	val = d.defaultFunc()
	d.data[key] = val
	return val
}

// Lookup returns the value for key without creating it.
//
// Parameters:
//   - key: the key to read.
//
// Returns:
//   - The stored value, or the zero value when absent.
//   - Whether the key was present.
func (d *DefaultMap[K, V]) Lookup(key K) (V, bool) {
	val, ok := d.data[key]
	return val, ok
}

// Set assigns val to key.
func (d *DefaultMap[K, V]) Set(key K, val V) {
	d.data[key] = val
}

// Delete removes key. Deleting a missing key is a no-op.
func (d *DefaultMap[K, V]) Delete(key K) {
	delete(d.data, key)
}
