// Package cache holds small in-process caches. The worker uses one to
// remember recently handled event ids so redelivered messages are skipped.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

var _ Cache[struct{}] = (*LRUCache[struct{}])(nil)
