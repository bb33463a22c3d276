package cache

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"
	hamt "github.com/raviqqe/hamt"
)

var log = logging.Logger("cache")

type (
	Node struct {
		Key hamt.Entry
		// Missing records that the object does not exist.
		Missing bool
		Value   []byte
		pre     *Node
		next    *Node
	}

	// LruCache keeps recently used objects up to Capacity bytes. A missing
	// object is cached as well and counts as one byte.
	LruCache struct {
		Capacity int
		Size     int
		head     *Node
		end      *Node

		Map hamt.Map

		lk sync.Mutex
	}
)

func (n *Node) size() int {
	if n.Missing {
		return 1
	}
	return len(n.Value)
}

func (l *LruCache) addNode(node *Node) {
	node.pre = l.end
	node.next = nil
	if l.end != nil {
		l.end.next = node
	}
	l.end = node
	if l.head == nil {
		l.head = node
	}
}

func (l *LruCache) removeNode(node *Node) hamt.Entry {
	if node.pre != nil {
		node.pre.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.pre = node.pre
	} else {
		l.end = node.pre
	}
	node.pre = nil
	node.next = nil
	return node.Key
}

func (l *LruCache) refreshNode(node *Node) {
	if node == l.end {
		return
	}
	l.removeNode(node)
	l.addNode(node)
}

func (l *LruCache) find(key hamt.Entry) *Node {
	value := l.Map.Find(key)
	if value == nil {
		return nil
	}
	node, ok := value.(*Node)
	if !ok {
		return nil
	}
	return node
}

// Get returns the cached object. ok is false on a cache miss, missing is
// true when the object is known not to exist.
func (l *LruCache) Get(key string) (value []byte, missing bool, ok bool) {
	l.lk.Lock()
	defer l.lk.Unlock()

	node := l.find(objectKey(key))
	if node == nil {
		return nil, false, false
	}
	l.refreshNode(node)
	return node.Value, node.Missing, true
}

func (l *LruCache) Put(key string, value []byte) {
	l.put(key, &Node{Value: value})
}

func (l *LruCache) PutMissing(key string) {
	l.put(key, &Node{Missing: true})
}

func (l *LruCache) put(keyStr string, node *Node) {
	l.lk.Lock()
	defer l.lk.Unlock()

	key := hamt.Entry(objectKey(keyStr))
	if old := l.find(key); old != nil {
		l.removeNode(old)
		l.Map = l.Map.Delete(key)
		l.Size -= old.size()
	}

	node.Key = key
	l.Map = l.Map.Insert(key, node)
	l.addNode(node)
	l.Size += node.size()

	for l.Size > l.Capacity && l.head != nil {
		oldest := l.head
		l.Map = l.Map.Delete(l.removeNode(oldest))
		l.Size -= oldest.size()
		log.Debugf("evicted %s (%d bytes)", oldest.Key, oldest.size())
	}
}

func (l *LruCache) Evict(key string) {
	l.lk.Lock()
	defer l.lk.Unlock()

	node := l.find(objectKey(key))
	if node != nil {
		l.Map = l.Map.Delete(l.removeNode(node))
		l.Size -= node.size()
	}
}

// Len returns the number of cached entries.
func (l *LruCache) Len() int {
	l.lk.Lock()
	defer l.lk.Unlock()

	return l.Map.Size()
}

func CreateLruCache(capacity int) *LruCache {
	lruCache := LruCache{Capacity: capacity}
	lruCache.Map = hamt.NewMap()
	return &lruCache
}
