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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpirationPolicy(t *testing.T) {
	now := time.Now()

	t.Run("Expired", func(t *testing.T) {
		assert.True(t, ExpirationPolicy{}.IsExpired(), "zero-value policy should be expired")
		assert.True(t, ExpireAfter(-time.Second).IsExpired())
		assert.False(t, ExpireAfter(time.Hour).IsExpired())
		assert.False(t, NeverExpire().IsExpired())
	})

	t.Run("ExpiresAt", func(t *testing.T) {
		assert.Equal(t, now.Add(time.Hour), ExpireAfter(time.Hour).ExpiresAt(now))
		assert.Equal(t, now.Add(7*24*time.Hour), ExpireInDays(7).ExpiresAt(now))
		assert.True(t, NeverExpire().ExpiresAt(now).After(now.Add(50*365*24*time.Hour)),
			"never-expiring entries should get a far-future instant")
	})

	t.Run("Lifetime", func(t *testing.T) {
		assert.Equal(t, time.Minute, ExpireAfter(time.Minute).Lifetime())
		assert.Zero(t, NeverExpire().Lifetime())
		assert.True(t, NeverExpire().IsNever())
	})
}

func TestCacheKeys(t *testing.T) {
	normal := KeyForResource("https://example.com/image.png", false)
	priority := KeyForResource("https://example.com/image.png", true)

	assert.Len(t, normal, 64, "key should be a hex sha256")
	assert.Equal(t, PriorityPrefix+normal, priority)
	assert.False(t, IsPriorityKey(normal))
	assert.True(t, IsPriorityKey(priority))

	assert.Equal(t, priority, TwinKey(normal))
	assert.Equal(t, normal, TwinKey(priority))
	assert.Equal(t, priority, PriorityKey(priority))
	assert.Equal(t, normal, NormalKey(priority))

	other := KeyForResource("https://example.com/other.png", false)
	assert.NotEqual(t, normal, other)
	assert.Equal(t, normal, KeyForResource("https://example.com/image.png", false),
		"key derivation must be deterministic")
}
