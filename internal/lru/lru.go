// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lru provides a generic least-recently-used cache for parsed
// markers and filtered candidate lists. A Cache is not safe for concurrent
// use; callers that share one must hold their own lock.
package lru

// Cache holds at most a fixed number of entries, evicting the least recently
// used one when full.
type Cache[K comparable, V any] struct {
	entries    map[K]*entry[K, V]
	head, tail *entry[K, V] // Most and least recently used.
	capacity   int
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	prev, next *entry[K, V]
}

// New returns a Cache holding up to capacity entries.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:  make(map[K]*entry[K, V], capacity+1),
		capacity: capacity,
	}
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int { return len(c.entries) }

// Add stores v under k, replacing any existing value and marking it as the
// most recently used entry.
func (c *Cache[K, V]) Add(k K, v V) {
	if e, ok := c.entries[k]; ok {
		e.value = v
		c.toFront(e)
		return
	}
	if len(c.entries) < c.capacity {
		e := &entry[K, V]{key: k, value: v}
		c.entries[k] = e
		c.pushFront(e)
		return
	}
	// Full: recycle the least recently used entry.
	e := c.tail
	delete(c.entries, e.key)
	e.key, e.value = k, v
	c.entries[k] = e
	c.toFront(e)
}

// Get returns the value stored under k and marks it as recently used.
func (c *Cache[K, V]) Get(k K) (v V, ok bool) {
	e, ok := c.entries[k]
	if !ok {
		return v, false
	}
	c.toFront(e)
	return e.value, true
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.prev, e.next = nil, c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[K, V]) toFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	// Unlink; e is not the head so e.prev is set.
	e.prev.next = e.next
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	c.pushFront(e)
}
