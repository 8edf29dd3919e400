package safemap

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Map is a thread-safe map backed by xsync.
type Map[K comparable, V any] struct {
	internal *xsync.MapOf[K, V]
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		internal: xsync.NewMapOf[K, V](),
	}
}

func (sm *Map[K, V]) Set(key K, value V) {
	sm.internal.Store(key, value)
}

// Get retrieves the value for key. The second return value reports whether
// the key was present.
func (sm *Map[K, V]) Get(key K) (V, bool) {
	return sm.internal.Load(key)
}

// GetAndDel removes key and returns the value it held, if any.
func (sm *Map[K, V]) GetAndDel(key K) (V, bool) {
	return sm.internal.LoadAndDelete(key)
}

func (sm *Map[K, V]) Len() int {
	return sm.internal.Size()
}

// ForEach calls fn for every entry until fn returns false.
func (sm *Map[K, V]) ForEach(fn func(K, V) bool) {
	sm.internal.Range(fn)
}
