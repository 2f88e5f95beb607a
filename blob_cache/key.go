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
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PriorityPrefix marks cache keys in the priority namespace.  Priority
// content survives memory-pressure clears and is preloaded at startup.
// The prefix is part of the on-disk filename, so changing it invalidates
// existing cache directories.
const PriorityPrefix = "p-"

// KeyForResource derives the cache key for a resource identifier: the hex
// sha256 of the identifier, prefixed with the priority marker when
// requested.  The same logical resource always maps to the same pair of
// twin keys.
func KeyForResource(identifier string, priority bool) string {
	sum := sha256.Sum256([]byte(identifier))
	key := hex.EncodeToString(sum[:])
	if priority {
		return PriorityPrefix + key
	}
	return key
}

// IsPriorityKey reports whether key addresses the priority namespace.
func IsPriorityKey(key string) bool {
	return strings.HasPrefix(key, PriorityPrefix)
}

// PriorityKey returns the priority-namespace form of key.
func PriorityKey(key string) string {
	if IsPriorityKey(key) {
		return key
	}
	return PriorityPrefix + key
}

// NormalKey returns the normal-namespace form of key.
func NormalKey(key string) string {
	return strings.TrimPrefix(key, PriorityPrefix)
}

// TwinKey returns the same logical resource's key in the opposite
// namespace.
func TwinKey(key string) string {
	if IsPriorityKey(key) {
		return NormalKey(key)
	}
	return PriorityKey(key)
}
