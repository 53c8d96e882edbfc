// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package dispatch

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry struct {
	key     string
	value   any
	created time.Time
}

// resultCache is a per-service, insertion-ordered result cache bounded by
// size with lazy TTL expiry on read, evicting the least recently used entry
// once full. Reads promote the entry to most-recently-used.
type resultCache struct {
	mu      sync.Mutex
	maxSize int
	maxAge  time.Duration
	order   *list.List // front = most recently used
	index   map[string]*list.Element
	now     func() time.Time
}

func newResultCache(maxSize int, maxAge time.Duration) *resultCache {
	return &resultCache{
		maxSize: maxSize,
		maxAge:  maxAge,
		order:   list.New(),
		index:   make(map[string]*list.Element),
		now:     time.Now,
	}
}

// Get returns a cached value, dropping and reporting a miss if it has aged
// past maxAge.
func (c *resultCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.maxAge > 0 && c.now().Sub(entry.created) > c.maxAge {
		c.order.Remove(el)
		delete(c.index, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.value, true
}

// Put inserts or refreshes an entry, evicting the least recently used one if
// the cache is at capacity.
func (c *resultCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		el.Value.(*cacheEntry).value = value
		el.Value.(*cacheEntry).created = c.now()
		c.order.MoveToFront(el)
		return
	}
	if c.maxSize > 0 && len(c.index) >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*cacheEntry).key)
		}
	}
	entry := &cacheEntry{key: key, value: value, created: c.now()}
	c.index[key] = c.order.PushFront(entry)
}

// Len reports the number of live entries, used by the admin info endpoint.
func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Clear drops every entry, used when services are restarted.
func (c *resultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[string]*list.Element)
}
