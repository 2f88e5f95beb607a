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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/config"
	"github.com/imagevault/imagevault/param"
	"github.com/imagevault/imagevault/test_utils"
)

func setupCache(t *testing.T) *Cache {
	config.ResetConfig()
	viper.Set(param.Cache_DataLocation.GetName(), t.TempDir())
	ctx, cancel, egrp := test_utils.TestContext(context.Background(), t)
	t.Cleanup(func() {
		cancel()
		require.NoError(t, egrp.Wait())
		config.ResetConfig()
	})
	return NewCache(ctx, egrp)
}

func TestCacheWriteThrough(t *testing.T) {
	cache := setupCache(t)

	payload := []byte("image bytes")
	require.NoError(t, cache.Store(payload, "abc"))

	// Present in memory...
	assert.Equal(t, payload, cache.Memory().Retrieve("abc", false))
	// ...and durably on disk.
	data, present, err := cache.Disk().Retrieve("abc", true, false)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, payload, data)
}

func TestCachePriorityReconciliation(t *testing.T) {
	cache := setupCache(t)
	payload := []byte("payload")

	t.Run("PriorityStoreRemovesNormalTwin", func(t *testing.T) {
		require.NoError(t, cache.Store(payload, "abc"))
		require.NoError(t, cache.Store(payload, PriorityPrefix+"abc"))

		_, present, err := cache.Disk().Retrieve("abc", false, false)
		require.NoError(t, err)
		assert.False(t, present, "the normal-namespace disk copy is redundant once priority wins")
		_, present, err = cache.Disk().Retrieve(PriorityPrefix+"abc", false, false)
		require.NoError(t, err)
		assert.True(t, present)
	})

	t.Run("NormalStoreSkipsDiskWhenPriorityExists", func(t *testing.T) {
		require.NoError(t, cache.Store(payload, PriorityPrefix+"def"))
		require.NoError(t, cache.Store(payload, "def"))

		_, present, err := cache.Disk().Retrieve("def", false, false)
		require.NoError(t, err)
		assert.False(t, present, "the priority copy already satisfies future reads")
		// Memory is still written for locality.
		assert.Equal(t, payload, cache.Memory().Retrieve("def", false))
	})
}

func TestCacheReadThrough(t *testing.T) {
	cache := setupCache(t)
	payload := []byte("disk resident")

	t.Run("DiskHitPromotesToMemory", func(t *testing.T) {
		require.NoError(t, cache.Disk().Store("ghi", payload, ExpireInDays(1)))
		require.Nil(t, cache.Memory().Retrieve("ghi", false))

		data, err := cache.Retrieve("ghi")
		require.NoError(t, err)
		assert.Equal(t, payload, data)
		assert.Equal(t, payload, cache.Memory().Retrieve("ghi", false),
			"a disk hit should be promoted into memory")
	})

	t.Run("TwinHitServesPriorityRequest", func(t *testing.T) {
		require.NoError(t, cache.Disk().Store("jkl", payload, ExpireInDays(1)))

		data, err := cache.Retrieve(PriorityPrefix + "jkl")
		require.NoError(t, err)
		assert.Equal(t, payload, data)
		assert.Equal(t, payload, cache.Memory().Retrieve(PriorityPrefix+"jkl", false),
			"promotion happens under the originally requested key")

		// The disk copy migrates into the priority namespace asynchronously.
		assert.Eventually(t, func() bool {
			_, present, err := cache.Disk().Retrieve(PriorityPrefix+"jkl", false, false)
			if err != nil || !present {
				return false
			}
			_, present, err = cache.Disk().Retrieve("jkl", false, false)
			return err == nil && !present
		}, 3*time.Second, 10*time.Millisecond)
	})

	t.Run("NormalRequestNeverDemotesPriority", func(t *testing.T) {
		require.NoError(t, cache.Disk().Store(PriorityPrefix+"mno", payload, ExpireInDays(1)))

		data, err := cache.Retrieve("mno")
		require.NoError(t, err)
		assert.Equal(t, payload, data)

		time.Sleep(100 * time.Millisecond)
		_, present, err := cache.Disk().Retrieve(PriorityPrefix+"mno", false, false)
		require.NoError(t, err)
		assert.True(t, present, "the priority disk copy must stay put")
		_, present, err = cache.Disk().Retrieve("mno", false, false)
		require.NoError(t, err)
		assert.False(t, present, "no normal-namespace copy should appear")
	})

	t.Run("AllProbesMiss", func(t *testing.T) {
		data, err := cache.Retrieve("nonexistent")
		require.NoError(t, err)
		assert.Nil(t, data)
	})
}

// The end-to-end scenario from the cache contract: store, clear, re-store,
// memory-pressure clear, and automatic re-promotion on the next read.
func TestCacheLifecycleScenario(t *testing.T) {
	cache := setupCache(t)
	payload := bytes.Repeat([]byte{0x7}, 100)

	require.NoError(t, cache.StoreWithPolicy(payload, "abc", ExpireInDays(7)))
	data, err := cache.Retrieve("abc")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	cache.ClearAll()
	data, err = cache.Retrieve("abc")
	require.NoError(t, err)
	assert.Nil(t, data, "clearAll must empty both tiers")

	require.NoError(t, cache.StoreWithPolicy(payload, "abc", ExpireInDays(7)))
	cache.ClearMemory(true)

	assert.Nil(t, cache.Memory().Retrieve("abc", false),
		"a non-priority key does not survive the memory clear")

	data, err = cache.Retrieve("abc")
	require.NoError(t, err)
	assert.Equal(t, payload, data, "the disk copy serves the next read")
	assert.Equal(t, payload, cache.Memory().Retrieve("abc", false),
		"and the entry is re-promoted into memory")
}

func TestCacheMemoryPressureSurvival(t *testing.T) {
	cache := setupCache(t)

	require.NoError(t, cache.Store([]byte("precious"), PriorityPrefix+"keep"))
	require.NoError(t, cache.Store([]byte("ordinary"), "drop"))

	cache.ClearMemory(true)

	assert.Equal(t, []byte("precious"), cache.Memory().Retrieve(PriorityPrefix+"keep", false),
		"priority entries are served from memory with no disk read")
	assert.Nil(t, cache.Memory().Retrieve("drop", false))
}

func TestCacheWarmPriority(t *testing.T) {
	cache := setupCache(t)

	require.NoError(t, cache.Disk().Store(PriorityPrefix+"warm", []byte("hot"), ExpireInDays(1)))
	require.NoError(t, cache.Disk().Store("cold", []byte("cold"), ExpireInDays(1)))

	require.NoError(t, cache.WarmPriority())

	assert.Equal(t, []byte("hot"), cache.Memory().Retrieve(PriorityPrefix+"warm", false))
	assert.Nil(t, cache.Memory().Retrieve("cold", false),
		"only priority content is preloaded")
}
