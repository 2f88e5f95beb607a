/***************************************************************
 *
 * Copyright (C) 2026, ImageVault Project
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package blob_cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/imagevault/imagevault/param"
)

type memoryBlob struct {
	data   []byte
	policy ExpirationPolicy
}

// MemoryTier is the in-process cache of raw blobs.  Each entry carries its
// own expiry; the total byte usage is soft-capped at Cache.MemoryLimit and
// enforced by dropping unreferenced entries (non-priority first) whenever
// a store pushes usage over the limit.
//
// The underlying ttlcache rejects expired entries on read, so correctness
// never depends on the periodic sweep; the sweep only reclaims memory.
type MemoryTier struct {
	data  *ttlcache.Cache[string, memoryBlob]
	limit int64

	// mu serializes every mutation so the byte accounting always matches
	// the resident set.  Expired entries keep their accounting until the
	// sweep reconciles.
	mu    sync.Mutex
	sizes map[string]int64
	usage int64
}

// NewMemoryTier creates the memory tier and launches its periodic
// expiration sweep on the provided errgroup.
func NewMemoryTier(ctx context.Context, egrp *errgroup.Group) *MemoryTier {
	mt := &MemoryTier{
		data:  ttlcache.New[string, memoryBlob](),
		limit: param.Cache_MemoryLimit.GetInt64(),
		sizes: make(map[string]int64),
	}
	egrp.Go(func() error {
		return mt.runSweep(ctx)
	})
	return mt
}

// Store inserts or replaces the entry under key.  Stores under an
// already-expired policy are silently dropped.
func (mt *MemoryTier) Store(key string, data []byte, policy ExpirationPolicy) {
	if policy.IsExpired() {
		log.Debugln("Ignoring memory store of already-expired entry for key", key)
		return
	}
	ttl := time.Until(policy.ExpiresAt(time.Now()))

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if old, ok := mt.sizes[key]; ok {
		mt.usage -= old
	}
	mt.sizes[key] = int64(len(data))
	mt.usage += int64(len(data))
	mt.data.Set(key, memoryBlob{data: data, policy: policy}, ttl)
	mt.enforceLimitLocked()
}

// Retrieve returns the blob under key, or nil if it is absent or expired.
// When extend is true the entry's expiry is recomputed from now using its
// original lifetime.
func (mt *MemoryTier) Retrieve(key string, extend bool) []byte {
	var item *ttlcache.Item[string, memoryBlob]
	if extend {
		item = mt.data.Get(key)
	} else {
		item = mt.data.Get(key, ttlcache.WithDisableTouchOnHit[string, memoryBlob]())
	}
	if item == nil {
		return nil
	}
	return item.Value().data
}

// Remove evicts the entry under key, if present.
func (mt *MemoryTier) Remove(key string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.dropLocked(key)
}

// RemoveAll evicts every entry.
func (mt *MemoryTier) RemoveAll() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.data.DeleteAll()
	mt.sizes = make(map[string]int64)
	mt.usage = 0
}

// RemoveAllExceptPriority clears the tier but keeps priority content
// resident: all priority-namespace entries (and any mirrored
// normal-namespace copy of the same resource) are snapshotted, the tier is
// cleared, and the snapshot is reinserted with its original expiry.  This
// lets priority content survive a memory-pressure clear without a disk
// round trip.
func (mt *MemoryTier) RemoveAllExceptPriority() {
	type snapshotEntry struct {
		key       string
		blob      memoryBlob
		expiresAt time.Time
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	items := mt.data.Items()
	snapshot := make([]snapshotEntry, 0, len(items))
	for key, item := range items {
		keep := IsPriorityKey(key)
		if !keep {
			// A normal-namespace mirror of resident priority content is
			// preserved as well.
			_, keep = items[PriorityKey(key)]
		}
		if keep {
			snapshot = append(snapshot, snapshotEntry{
				key:       key,
				blob:      item.Value(),
				expiresAt: item.ExpiresAt(),
			})
		}
	}

	mt.data.DeleteAll()
	mt.sizes = make(map[string]int64)
	mt.usage = 0

	now := time.Now()
	for _, entry := range snapshot {
		ttl := entry.expiresAt.Sub(now)
		if ttl <= 0 {
			continue
		}
		mt.sizes[entry.key] = int64(len(entry.blob.data))
		mt.usage += int64(len(entry.blob.data))
		mt.data.Set(entry.key, entry.blob, ttl)
	}
}

// Usage returns the current byte accounting of resident entries, including
// any whose expiry has passed but which have not yet been swept.
func (mt *MemoryTier) Usage() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.usage
}

// Len returns the number of resident entries, including any whose expiry
// has passed but which have not yet been swept.
func (mt *MemoryTier) Len() int {
	return mt.data.Len()
}

// dropLocked removes key from the underlying cache and its accounting.
// Callers hold mu.
func (mt *MemoryTier) dropLocked(key string) {
	mt.data.Delete(key)
	if size, ok := mt.sizes[key]; ok {
		mt.usage -= size
		delete(mt.sizes, key)
	}
}

// enforceLimitLocked drops entries until usage is back under the byte
// limit.  Non-priority entries go first, in no particular order; priority
// entries are touched only if the limit cannot otherwise be met.  Callers
// hold mu.
func (mt *MemoryTier) enforceLimitLocked() {
	if mt.limit <= 0 || mt.usage <= mt.limit {
		return
	}

	normal := make([]string, 0)
	priority := make([]string, 0)
	for key := range mt.data.Items() {
		if IsPriorityKey(key) {
			priority = append(priority, key)
		} else {
			normal = append(normal, key)
		}
	}
	for _, key := range append(normal, priority...) {
		mt.dropLocked(key)
		if mt.usage <= mt.limit {
			return
		}
	}
}

// reconcileAccounting rebuilds the size bookkeeping from the resident
// entries.  Expiry-driven deletions bypass the synchronous accounting, so
// the sweep trues the counter up after each pass.
func (mt *MemoryTier) reconcileAccounting() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	sizes := make(map[string]int64)
	var usage int64
	for key, item := range mt.data.Items() {
		size := int64(len(item.Value().data))
		sizes[key] = size
		usage += size
	}
	mt.sizes = sizes
	mt.usage = usage
}

// runSweep periodically evicts expired entries.  Advisory only; Retrieve
// re-checks expiry on every read.
func (mt *MemoryTier) runSweep(ctx context.Context) error {
	interval := param.Cache_SweepInterval.GetDuration()
	if interval <= 0 {
		interval = 120 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			mt.data.DeleteExpired()
			mt.reconcileAccounting()
		}
	}
}
