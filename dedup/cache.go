// Package dedup provides a bounded recent-keys set used to absorb duplicate
// wire events. It carries no domain knowledge.
package dedup

import "container/list"

const DefaultCapacity = 500

// Cache is a capacity-bounded, insertion-ordered set. When the capacity is
// exceeded the least-recently-touched key is evicted. A hit on AddIfNew
// refreshes the key's position instead of inserting a duplicate.
//
// Cache is not safe for concurrent use; the engine mutates it exclusively
// from its single event-processing context.
type Cache struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// AddIfNew records the key and returns true if it was not already present.
// A repeated key returns false and moves to the most-recent position.
func (c *Cache) AddIfNew(key string) bool {
	if el, ok := c.index[key]; ok {
		c.order.MoveToBack(el)
		return false
	}

	c.index[key] = c.order.PushBack(key)
	if c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(string))
	}
	return true
}

// Contains reports presence without refreshing recency.
func (c *Cache) Contains(key string) bool {
	_, ok := c.index[key]
	return ok
}

func (c *Cache) Len() int {
	return c.order.Len()
}
