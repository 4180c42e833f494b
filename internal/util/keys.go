package util

import "strings"

const lockSegment = "lock:"

// Namespace returns key with prefix applied exactly once.
// A key that already starts with prefix is returned unchanged.
func Namespace(prefix, key string) string {
	if prefix == "" || strings.HasPrefix(key, prefix) {
		return key
	}
	return prefix + key
}

// LockKey returns the physical key of the lock record guarding name.
func LockKey(prefix, name string) string {
	return Namespace(prefix, lockSegment+name)
}

// ComputeLockKey returns the record used to elect the computing caller for a
// cache key. The cache key is namespaced first, then wrapped as a lock name.
func ComputeLockKey(prefix, key string) string {
	return LockKey(prefix, Namespace(prefix, key))
}

// FolderPattern turns a logical folder ("report", "report:", ":report:*") into a
// SCAN match pattern below the namespace, e.g. "app:report:*".
func FolderPattern(prefix, path string) string {
	path = strings.Trim(path, ":")
	path = strings.TrimSuffix(path, ":*")
	p := Namespace(prefix, path)
	if !strings.HasSuffix(p, ":*") {
		p += ":*"
	}
	return p
}
