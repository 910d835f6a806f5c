package engine

import (
	"container/list"
	"fmt"
)

// DBIdempotencyChecker is the cold-path dedup lookup, backed by Postgres in
// production and nil in local mode.
type DBIdempotencyChecker interface {
	IsDuplicate(opType string, idempotencyKey string) (bool, error)
}

// idempotencyChecker implements two-tier deduplication: an in-memory LRU in
// front of the database lookup. A database error degrades to "not a
// duplicate" so a DB outage cannot stall the operation loop.
//
// Not thread-safe: only accessed from the single-threaded engine loop.
type idempotencyChecker struct {
	lru       *keyLRU
	dbChecker DBIdempotencyChecker

	tier2Errors int64
}

func newIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *idempotencyChecker {
	return &idempotencyChecker{
		lru:       newKeyLRU(capacity),
		dbChecker: dbChecker,
	}
}

func (ic *idempotencyChecker) isDuplicate(opType string, idempotencyKey string) bool {
	compositeKey := fmt.Sprintf("%s:%s", opType, idempotencyKey)

	if ic.lru.contains(compositeKey) {
		return true
	}

	if ic.dbChecker != nil {
		isDup, err := ic.dbChecker.IsDuplicate(opType, idempotencyKey)
		if err != nil {
			ic.tier2Errors++
			return false
		}
		if isDup {
			ic.lru.add(compositeKey)
			return true
		}
	}
	return false
}

func (ic *idempotencyChecker) markProcessed(opType string, idempotencyKey string) {
	ic.lru.add(fmt.Sprintf("%s:%s", opType, idempotencyKey))
}

// warm preloads composite keys recovered from the database on restart.
func (ic *idempotencyChecker) warm(keys []string) {
	for _, key := range keys {
		ic.lru.add(key)
	}
}

// keyLRU is a fixed-capacity LRU of composite idempotency keys.
type keyLRU struct {
	capacity int
	cache    map[string]*list.Element
	order    *list.List
}

func newKeyLRU(capacity int) *keyLRU {
	return &keyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (lru *keyLRU) contains(key string) bool {
	elem, ok := lru.cache[key]
	if ok {
		lru.order.MoveToFront(elem)
	}
	return ok
}

func (lru *keyLRU) add(key string) {
	if elem, ok := lru.cache[key]; ok {
		lru.order.MoveToFront(elem)
		return
	}
	lru.cache[key] = lru.order.PushFront(key)
	if lru.order.Len() > lru.capacity {
		oldest := lru.order.Back()
		lru.order.Remove(oldest)
		delete(lru.cache, oldest.Value.(string))
	}
}
