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

// Package blob_cache implements imagevault's two-tier blob cache: a
// byte-budgeted in-memory tier in front of a durable one-file-per-key
// disk tier, with a priority key namespace that survives memory pressure.
package blob_cache

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/imagevault/imagevault/metrics"
	"github.com/imagevault/imagevault/param"
)

// Cache composes the memory and disk tiers behind the store/retrieve
// contract used by the fetch layer: write-through stores, a four-probe
// read-through, and lazy promotion of hot content into the priority
// namespace.
type Cache struct {
	ctx            context.Context
	egrp           *errgroup.Group
	memory         *MemoryTier
	disk           *DiskTier
	defaultPolicy  ExpirationPolicy
	extendOnAccess bool
}

// NewCache constructs both tiers from the Cache.* parameters and launches
// their background sweeps on egrp.
func NewCache(ctx context.Context, egrp *errgroup.Group) *Cache {
	c := &Cache{
		ctx:            ctx,
		egrp:           egrp,
		memory:         NewMemoryTier(ctx, egrp),
		disk:           NewDiskTier(),
		defaultPolicy:  ExpireAfter(param.Cache_DefaultLifetime.GetDuration()),
		extendOnAccess: param.Cache_ExtendOnAccess.GetBool(),
	}
	egrp.Go(func() error {
		return c.runDiskSweep(ctx)
	})
	return c
}

// Memory exposes the memory tier (used by the fetch layer's preload and
// by tests).
func (c *Cache) Memory() *MemoryTier {
	return c.memory
}

// Disk exposes the disk tier.
func (c *Cache) Disk() *DiskTier {
	return c.disk
}

// Store writes the blob under key with the cache's default lifetime.
func (c *Cache) Store(data []byte, key string) error {
	return c.StoreWithPolicy(data, key, c.defaultPolicy)
}

// StoreWithPolicy writes through both tiers, memory first.  The memory
// write cannot fail the operation; a disk failure is surfaced but leaves
// the memory copy in place (independent failure domains).
//
// Namespace reconciliation keeps at most one resident disk copy per
// logical resource: a priority store deletes the normal-namespace twin
// once the priority file is durable, and a normal store is skipped on
// disk entirely when a priority copy already satisfies future reads (the
// memory copy is still written for locality).
func (c *Cache) StoreWithPolicy(data []byte, key string, policy ExpirationPolicy) error {
	c.memory.Store(key, data, policy)

	if IsPriorityKey(key) {
		if err := c.disk.Store(key, data, policy); err != nil {
			return err
		}
		if err := c.disk.Remove(NormalKey(key)); err != nil {
			log.Warningln("Failed to remove the normal-namespace twin after a priority store:", err)
		}
		return nil
	}

	_, priorityExists, err := c.disk.Retrieve(PriorityKey(key), false, false)
	if err != nil {
		return err
	}
	if priorityExists {
		log.Debugln("Skipping normal-namespace disk write; priority copy exists for key", key)
		return nil
	}
	return c.disk.Store(key, data, policy)
}

// Retrieve probes, in order: memory under key, memory under the twin,
// disk under key, disk under the twin.  Disk hits are promoted into
// memory under the originally requested key.  A priority-namespace
// request served from the normal namespace triggers an asynchronous disk
// migration of the twin into the priority namespace; normal requests
// never demote priority content.
//
// Returns nil with no error only when all four probes miss.
func (c *Cache) Retrieve(key string) ([]byte, error) {
	if data := c.memory.Retrieve(key, c.extendOnAccess); data != nil {
		metrics.CacheHits.WithLabelValues("memory").Inc()
		return data, nil
	}

	twin := TwinKey(key)
	if data := c.memory.Retrieve(twin, c.extendOnAccess); data != nil {
		metrics.CacheHits.WithLabelValues("memory").Inc()
		if IsPriorityKey(key) {
			c.migrateToPriority(twin, data)
		}
		return data, nil
	}

	data, present, err := c.disk.Retrieve(key, true, c.extendOnAccess)
	if err != nil {
		return nil, err
	}
	if present {
		metrics.CacheHits.WithLabelValues("disk").Inc()
		c.memory.Store(key, data, c.defaultPolicy)
		return data, nil
	}

	data, present, err = c.disk.Retrieve(twin, true, c.extendOnAccess)
	if err != nil {
		return nil, err
	}
	if present {
		metrics.CacheHits.WithLabelValues("disk").Inc()
		c.memory.Store(key, data, c.defaultPolicy)
		if IsPriorityKey(key) {
			c.migrateToPriority(twin, data)
		}
		return data, nil
	}

	metrics.CacheMisses.Inc()
	return nil, nil
}

// migrateToPriority moves the disk copy of normalKey into the priority
// namespace in the background.  Hot content is promoted lazily this way
// so writers never need to know about priority up front.
func (c *Cache) migrateToPriority(normalKey string, data []byte) {
	c.egrp.Go(func() error {
		if err := c.disk.Store(PriorityKey(normalKey), data, c.defaultPolicy); err != nil {
			log.Warningln("Failed to migrate cache entry into the priority namespace:", err)
			return nil
		}
		if err := c.disk.Remove(normalKey); err != nil {
			log.Warningln("Failed to remove the normal-namespace copy after migration:", err)
		}
		return nil
	})
}

// ClearAll empties both tiers.  Clearing is best-effort maintenance: disk
// failures are logged, never propagated.
func (c *Cache) ClearAll() {
	c.memory.RemoveAll()
	if err := c.disk.RemoveAll(); err != nil {
		log.Warningln("Failed to clear the disk cache:", err)
	}
}

// ClearMemory empties the memory tier, optionally preserving
// priority-namespace entries (the memory-pressure path).
func (c *Cache) ClearMemory(keepPriority bool) {
	if keepPriority {
		c.memory.RemoveAllExceptPriority()
	} else {
		c.memory.RemoveAll()
	}
}

// WarmPriority loads every priority-namespace entry resident on disk into
// memory.  Called at startup so priority content is served from memory
// immediately.
func (c *Cache) WarmPriority() error {
	keys, err := c.disk.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if !IsPriorityKey(key) {
			continue
		}
		data, present, err := c.disk.Retrieve(key, true, false)
		if err != nil || !present {
			continue
		}
		c.memory.Store(key, data, c.defaultPolicy)
	}
	return nil
}

// runDiskSweep periodically removes expired files from the disk tier.
func (c *Cache) runDiskSweep(ctx context.Context) error {
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
			removed, err := c.disk.SweepExpired(time.Now())
			if err != nil {
				log.Warningln("Disk cache sweep failed:", err)
			} else if len(removed) > 0 {
				log.Debugf("Disk cache sweep removed %d expired entries", len(removed))
			}
		}
	}
}
