package cache

import (
	hamt "github.com/raviqqe/hamt"
)

// objectKey is a store key used as hamt entry.
type objectKey string

// 32 bit FNV prime
const fnvPrime = 16777619

func (k objectKey) Hash() uint32 {
	return hashKey(string(k))
}

func (k objectKey) Equal(e hamt.Entry) bool {
	other, ok := e.(objectKey)
	return ok && k == other
}

func hashKey(key string) uint32 {
	var hash uint32
	for i := 0; i < len(key); i++ {
		hash = hash*fnvPrime + uint32(key[i])
	}
	return hash
}
