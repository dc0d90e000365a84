package services

import (
	"container/list"
	"sync"
	"time"
)

// MessageDeduplicator is a thread-safe table of recently processed message
// ids. Webhook providers redeliver events, so the first handler to record an
// id wins and later deliveries are dropped. Entries live in arrival order:
// a duplicate hit does not refresh its slot, expiry and capacity eviction
// both take the oldest first.
type MessageDeduplicator struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	items      map[string]*list.Element
	order      *list.List
}

type dedupEntry struct {
	id     string
	seenAt time.Time
}

// NewMessageDeduplicator creates a deduplicator holding at most maxEntries
// ids, each remembered for ttl.
func NewMessageDeduplicator(maxEntries int, ttl time.Duration) *MessageDeduplicator {
	return &MessageDeduplicator{
		maxEntries: maxEntries,
		ttl:        ttl,
		items:      make(map[string]*list.Element, maxEntries),
		order:      list.New(),
	}
}

// Seen records id and reports whether it was already recorded within the
// TTL. Empty ids are never treated as duplicates.
func (d *MessageDeduplicator) Seen(id string) bool {
	if id == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()

	// Drop expired entries from the front. Arrival order means the front
	// is always the oldest, so we can stop at the first live entry.
	for {
		oldest := d.order.Front()
		if oldest == nil {
			break
		}
		ent := oldest.Value.(*dedupEntry)
		if now.Sub(ent.seenAt) <= d.ttl {
			break
		}
		d.order.Remove(oldest)
		delete(d.items, ent.id)
	}

	if _, ok := d.items[id]; ok {
		return true
	}

	d.items[id] = d.order.PushBack(&dedupEntry{id: id, seenAt: now})

	// Enforce capacity
	for d.order.Len() > d.maxEntries {
		oldest := d.order.Front()
		if oldest == nil {
			break
		}
		d.order.Remove(oldest)
		delete(d.items, oldest.Value.(*dedupEntry).id)
	}

	return false
}

// Len returns the number of ids currently remembered.
func (d *MessageDeduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
