package sfen

import "sync/atomic"

// HashTable is a lossy duplicate filter: one key per bucket, newest key wins.
// Different keys sharing a bucket evict each other, so a duplicate may be missed.
// Workers share it without locks, each slot is accessed atomically.
type HashTable struct {
	keys []uint64
	mask uint64
}

func NewHashTable(bits int) *HashTable {
	var size = uint64(1) << uint(bits)
	return &HashTable{
		keys: make([]uint64, size),
		mask: size - 1,
	}
}

// Seen reports whether key is the last key stored in its bucket.
// Otherwise the key replaces the bucket content.
func (h *HashTable) Seen(key uint64) bool {
	var slot = &h.keys[key&h.mask]
	if atomic.LoadUint64(slot) == key {
		return true
	}
	atomic.StoreUint64(slot, key)
	return false
}

func (h *HashTable) Clear() {
	for i := range h.keys {
		atomic.StoreUint64(&h.keys[i], 0)
	}
}
