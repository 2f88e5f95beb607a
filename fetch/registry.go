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
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imagevault/imagevault/metrics"
)

// WaiterToken is one caller's reference-counted handle into a shared
// Transfer.  Releasing a token only removes that caller's interest; the
// transfer is aborted when the last token is released.
type WaiterToken struct {
	id         uuid.UUID
	identifier string
	transfer   *Transfer
}

// Transfer returns the shared transfer this token references.
func (tok *WaiterToken) Transfer() *Transfer {
	return tok.transfer
}

// Identifier returns the resource identifier the token was acquired for.
func (tok *WaiterToken) Identifier() string {
	return tok.identifier
}

type registryEntry struct {
	transfer *Transfer
	tokens   map[uuid.UUID]struct{}
}

// Registry tracks in-flight transfers by resource identifier.  At most
// one live transfer exists per identifier; concurrent requests for the
// same identifier share it.  A transfer that completes or fails naturally
// removes itself immediately, so a later request for the same identifier
// starts fresh instead of replaying a stale result.
type Registry struct {
	ctx context.Context

	mu       sync.Mutex
	inflight map[string]*registryEntry
}

// NewRegistry creates a transfer registry whose transfers run under ctx.
func NewRegistry(ctx context.Context) *Registry {
	return &Registry{
		ctx:      ctx,
		inflight: make(map[string]*registryEntry),
	}
}

// Acquire returns a token against the live transfer for identifier,
// creating and starting one via start if none exists.  No new network
// operation is started when a live transfer is already in flight.
func (r *Registry) Acquire(identifier string, start func() *Transfer) (*WaiterToken, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	entry := r.inflight[identifier]
	if entry == nil {
		transfer := start()
		transfer.setFinisher(func() {
			r.removeOnCompletion(identifier, transfer)
		})
		entry = &registryEntry{
			transfer: transfer,
			tokens:   make(map[uuid.UUID]struct{}),
		}
		r.inflight[identifier] = entry
		metrics.TransfersStarted.Inc()
		metrics.TransfersInflight.Inc()
		transfer.Resume(r.ctx)
	} else {
		log.Debugln("Joining in-flight transfer for", identifier)
		metrics.TransfersDeduped.Inc()
	}
	entry.tokens[id] = struct{}{}
	r.mu.Unlock()

	return &WaiterToken{id: id, identifier: identifier, transfer: entry.transfer}, nil
}

// Release drops one token's reference.  When this empties the transfer's
// reference set, the transfer is aborted and removed.  Releasing a token
// whose transfer already finished naturally is a no-op; releasing the
// same token twice while the transfer is live is an error.
func (r *Registry) Release(token *WaiterToken) error {
	if token == nil {
		return errors.Wrap(ErrInvalidToken, "nil token")
	}

	r.mu.Lock()
	entry := r.inflight[token.identifier]
	if entry == nil || entry.transfer != token.transfer {
		// The transfer reached a terminal state and was already removed.
		r.mu.Unlock()
		return nil
	}
	if _, ok := entry.tokens[token.id]; !ok {
		r.mu.Unlock()
		return errors.Wrap(ErrInvalidToken, "token was already released")
	}
	delete(entry.tokens, token.id)
	last := len(entry.tokens) == 0
	if last {
		delete(r.inflight, token.identifier)
		metrics.TransfersInflight.Dec()
	}
	r.mu.Unlock()

	if last {
		token.transfer.abort()
	}
	return nil
}

// ForceCancel aborts the transfer for identifier regardless of how many
// tokens reference it.  Intended for teardown, not per-caller
// cancellation.
func (r *Registry) ForceCancel(identifier string) {
	r.mu.Lock()
	entry := r.inflight[identifier]
	if entry != nil {
		delete(r.inflight, identifier)
		metrics.TransfersInflight.Dec()
	}
	r.mu.Unlock()

	if entry != nil {
		entry.transfer.abort()
	}
}

// ForceCancelAll aborts every in-flight transfer.
func (r *Registry) ForceCancelAll() {
	r.mu.Lock()
	entries := make([]*registryEntry, 0, len(r.inflight))
	for _, entry := range r.inflight {
		entries = append(entries, entry)
	}
	r.inflight = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		metrics.TransfersInflight.Dec()
		entry.transfer.abort()
	}
}

// Inflight returns the number of live transfers.
func (r *Registry) Inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

// removeOnCompletion drops a naturally-finished transfer from the
// registry, if it is still the registered one.
func (r *Registry) removeOnCompletion(identifier string, transfer *Transfer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry := r.inflight[identifier]; entry != nil && entry.transfer == transfer {
		delete(r.inflight, identifier)
		metrics.TransfersInflight.Dec()
	}
}
