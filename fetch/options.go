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

package fetch

import (
	"time"

	"github.com/lestrrat-go/option"

	"github.com/imagevault/imagevault/blob_cache"
)

type (
	// FetchOption customizes a single fetch (and the transfer it may
	// start).
	FetchOption = option.Interface

	identFetchOptionPriority struct{}
	identFetchOptionHeader   struct{}
	identFetchOptionCallback struct{}
	identFetchOptionPolicy   struct{}
	identFetchOptionTimeout  struct{}

	headerPair struct {
		name  string
		value string
	}
)

// WithPriority stores the fetched content under the priority namespace,
// making it resistant to memory-pressure eviction.
func WithPriority(priority bool) FetchOption {
	return option.New(identFetchOptionPriority{}, priority)
}

// WithHeader adds a header to the outgoing request.  May be given more
// than once.  This is the pass-through hook for authorization headers;
// the fetch layer itself never interprets them.
func WithHeader(name string, value string) FetchOption {
	return option.New(identFetchOptionHeader{}, headerPair{name: name, value: value})
}

// WithCallback registers a progress callback invoked as chunks arrive and
// once more on completion.
func WithCallback(callback TransferCallbackFunc) FetchOption {
	return option.New(identFetchOptionCallback{}, callback)
}

// WithPolicy overrides the cache's default expiration policy for the
// stored result.
func WithPolicy(policy blob_cache.ExpirationPolicy) FetchOption {
	return option.New(identFetchOptionPolicy{}, policy)
}

// WithTimeout overrides the per-request network timeout
// (Client.RequestTimeout).
func WithTimeout(timeout time.Duration) FetchOption {
	return option.New(identFetchOptionTimeout{}, timeout)
}
