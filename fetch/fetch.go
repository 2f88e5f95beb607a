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

// Package fetch implements the download coordination layer: shared,
// cancellable, reference-counted transfers keyed by resource identifier,
// and the engine tying them to the two-tier cache.
package fetch

import (
	"context"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/imagevault/imagevault/blob_cache"
	"github.com/pkg/errors"
)

// Engine is the top-level fetch entry point.  Given a resource
// identifier it serves decoded bytes from the cache when possible and
// otherwise coordinates a shared network transfer, storing the result
// back through the cache on success.
type Engine struct {
	ctx      context.Context
	egrp     *errgroup.Group
	cache    *blob_cache.Cache
	registry *Registry
}

// NewEngine creates a fetch engine over an existing cache.  Transfers and
// background tasks run under ctx/egrp.
func NewEngine(ctx context.Context, egrp *errgroup.Group, cache *blob_cache.Cache) *Engine {
	return &Engine{
		ctx:      ctx,
		egrp:     egrp,
		cache:    cache,
		registry: NewRegistry(ctx),
	}
}

// Cache returns the engine's underlying two-tier cache.
func (e *Engine) Cache() *blob_cache.Cache {
	return e.cache
}

// Registry returns the engine's transfer registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Fetch returns the bytes for identifier: from the cache when a fresh
// copy exists, otherwise via a (possibly shared) network transfer.
// Cancelling ctx abandons only this caller's interest; a transfer shared
// with other callers keeps running for them.
func (e *Engine) Fetch(ctx context.Context, identifier string, options ...FetchOption) ([]byte, error) {
	priority := false
	policy := blob_cache.ExpirationPolicy{}
	havePolicy := false
	for _, opt := range options {
		switch opt.Ident() {
		case identFetchOptionPriority{}:
			priority = opt.Value().(bool)
		case identFetchOptionPolicy{}:
			policy = opt.Value().(blob_cache.ExpirationPolicy)
			havePolicy = true
		}
	}

	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	key := blob_cache.KeyForResource(identifier, priority)

	data, err := e.cache.Retrieve(key)
	if err != nil {
		// A degraded cache never blocks a fetch.
		log.Warningln("Cache retrieval failed; falling through to the network:", err)
	}
	if data != nil {
		return data, nil
	}

	token, err := e.Start(identifier, options...)
	if err != nil {
		return nil, err
	}

	data, err = e.Await(ctx, token)
	if err != nil {
		if releaseErr := e.registry.Release(token); releaseErr != nil {
			log.Warningln("Failed to release waiter token:", releaseErr)
		}
		return nil, err
	}
	if releaseErr := e.registry.Release(token); releaseErr != nil {
		log.Warningln("Failed to release waiter token:", releaseErr)
	}

	var storeErr error
	if havePolicy {
		storeErr = e.cache.StoreWithPolicy(data, key, policy)
	} else {
		storeErr = e.cache.Store(data, key)
	}
	if storeErr != nil {
		// The bytes are good; a cache store failure only costs the next
		// caller a re-download.
		log.Warningln("Failed to store fetched content in the cache:", storeErr)
	}
	return data, nil
}

// Start validates the identifier and acquires a waiter token, starting a
// new transfer only if none is in flight for identifier.  The caller must
// eventually pass the token to Await, Cancel, or the registry's Release.
func (e *Engine) Start(identifier string, options ...FetchOption) (*WaiterToken, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	return e.registry.Acquire(identifier, func() *Transfer {
		return NewTransfer(identifier, options...)
	})
}

// Await blocks until the token's transfer finishes, or until ctx is
// cancelled (which returns ErrRequestCancelled without affecting other
// waiters).
func (e *Engine) Await(ctx context.Context, token *WaiterToken) ([]byte, error) {
	if token == nil || token.transfer == nil {
		return nil, errors.Wrap(ErrInvalidToken, "nil token")
	}
	return token.transfer.AwaitResult(ctx)
}

// Cancel releases the caller's interest in the token's transfer.
func (e *Engine) Cancel(token *WaiterToken) error {
	return e.registry.Release(token)
}

// Shutdown force-cancels every in-flight transfer.
func (e *Engine) Shutdown() {
	e.registry.ForceCancelAll()
}

// validateIdentifier rejects identifiers that could never be fetched,
// before any transfer state is created.
func validateIdentifier(identifier string) error {
	if identifier == "" {
		return errors.Wrap(ErrInvalidIdentifier, "empty identifier")
	}
	parsed, err := url.Parse(identifier)
	if err != nil {
		return errors.Wrap(ErrInvalidIdentifier, err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.Wrapf(ErrInvalidIdentifier, "unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.Wrap(ErrInvalidIdentifier, "missing host")
	}
	return nil
}
