// Copyright 2024 the studyview authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxCachedFrames caps entry count; the real bound is the byte budget.
const maxCachedFrames = 1 << 16

// cache is an LRU of decoded frames bounded by total bytes rather than
// entry count. Eviction is synchronous inside add and has no side effects
// beyond dropping the cache's reference.
type cache struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, *PixelBuffer]
	budget int64
	bytes  int64
}

func newCache(budget int64) *cache {
	c := &cache{budget: budget}
	// the evict callback runs under c.mu: both Add and RemoveOldest below
	// are called with the lock held
	c.lru, _ = lru.NewWithEvict[string, *PixelBuffer](maxCachedFrames, c.onEvict)
	return c
}

func (c *cache) onEvict(_ string, buf *PixelBuffer) {
	c.bytes -= buf.Size()
	CacheEvictions.Inc()
	CacheBytes.Set(float64(c.bytes))
}

func (c *cache) get(key string) (*PixelBuffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.lru.Get(key)
	if ok {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
	return buf, ok
}

// add caches the buffer, evicting the least recently used frames until it
// fits. A buffer larger than the whole budget is not cached.
func (c *cache) add(key string, buf *PixelBuffer) {
	size := buf.Size()
	if size > c.budget {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.lru.Peek(key); ok {
		// replacing an entry does not run the evict callback
		c.bytes -= old.Size()
	}
	for c.bytes+size > c.budget && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
	// an entry-count eviction triggered by Add adjusts bytes via onEvict
	c.lru.Add(key, buf)
	c.bytes += size
	CacheBytes.Set(float64(c.bytes))
}

func (c *cache) resident() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}
