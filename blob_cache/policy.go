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
	"time"
)

// neverLifetime is the lifetime used to encode "never expires" on disk.
// The disk format carries expiry in the file's mtime, so "never" has to be
// an actual instant; a century out keeps sweeps and reads uniform.
const neverLifetime = 100 * 365 * 24 * time.Hour

// ExpirationPolicy is a pure duration-based expiry rule.  The zero value
// expires immediately and is rejected by every store operation.
type ExpirationPolicy struct {
	lifetime time.Duration
	never    bool
}

// NeverExpire returns a policy whose entries are kept until explicitly
// evicted.
func NeverExpire() ExpirationPolicy {
	return ExpirationPolicy{never: true}
}

// ExpireAfter returns a policy whose entries live for d from the time they
// are stored (or last extended).
func ExpireAfter(d time.Duration) ExpirationPolicy {
	return ExpirationPolicy{lifetime: d}
}

// ExpireInDays is a convenience wrapper for day-granularity policies.
func ExpireInDays(days int) ExpirationPolicy {
	return ExpirationPolicy{lifetime: time.Duration(days) * 24 * time.Hour}
}

// IsNever reports whether entries under this policy never expire.
func (p ExpirationPolicy) IsNever() bool {
	return p.never
}

// Lifetime returns the policy's duration; zero for never-expiring policies.
func (p ExpirationPolicy) Lifetime() time.Duration {
	if p.never {
		return 0
	}
	return p.lifetime
}

// IsExpired reports whether the policy is already expired at the moment of
// evaluation, i.e. whether storing under it would produce an entry that
// could never be read back.  Tiers reject such stores outright.
func (p ExpirationPolicy) IsExpired() bool {
	return !p.never && p.lifetime <= 0
}

// ExpiresAt computes the absolute expiry instant for an entry stored (or
// extended) at now.
func (p ExpirationPolicy) ExpiresAt(now time.Time) time.Time {
	if p.never {
		return now.Add(neverLifetime)
	}
	return now.Add(p.lifetime)
}
