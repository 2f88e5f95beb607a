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
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imagevault/imagevault/config"
	"github.com/imagevault/imagevault/metrics"
	"github.com/imagevault/imagevault/param"
)

// TransferState tracks a transfer through its lifecycle.  Completed,
// Failed and Cancelled are terminal; once reached, further completion or
// cancellation signals are no-ops.
type TransferState int

const (
	TransferReady TransferState = iota
	TransferRunning
	TransferCompleted
	TransferFailed
	TransferCancelled
)

func (s TransferState) String() string {
	switch s {
	case TransferReady:
		return "Ready"
	case TransferRunning:
		return "Running"
	case TransferCompleted:
		return "Completed"
	case TransferFailed:
		return "Failed"
	case TransferCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// TransferCallbackFunc receives progress updates as a transfer receives
// chunks.  totalSize is -1 when the upstream does not advertise a length.
type TransferCallbackFunc func(identifier string, downloaded int64, totalSize int64, completed bool)

const chunkSize = 32 * 1024

// Transfer is one in-flight network fetch, shareable by any number of
// waiters.  All waiters observe the same terminal outcome through a
// one-shot completion channel; there is no polling anywhere.
type Transfer struct {
	identifier string
	headers    []headerPair
	callback   TransferCallbackFunc
	timeout    time.Duration

	mu        sync.Mutex
	state     TransferState
	accum     bytes.Buffer
	totalSize int64
	result    []byte
	err       error
	netCancel context.CancelFunc

	// finisher is invoked exactly once when the transfer reaches Completed
	// or Failed naturally (not via abort); the registry uses it to drop
	// the transfer so the next request starts fresh.
	finisher func()

	// done is closed on the first terminal transition.
	done chan struct{}
}

// NewTransfer creates a transfer in the Ready state.  The network
// operation starts on the first Resume call.
func NewTransfer(identifier string, options ...FetchOption) *Transfer {
	t := &Transfer{
		identifier: identifier,
		timeout:    param.Client_RequestTimeout.GetDuration(),
		totalSize:  -1,
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		switch opt.Ident() {
		case identFetchOptionHeader{}:
			t.headers = append(t.headers, opt.Value().(headerPair))
		case identFetchOptionCallback{}:
			t.callback = opt.Value().(TransferCallbackFunc)
		case identFetchOptionTimeout{}:
			t.timeout = opt.Value().(time.Duration)
		}
	}
	if t.timeout <= 0 {
		t.timeout = 15 * time.Second
	}
	return t
}

// Identifier returns the resource identifier this transfer is fetching.
func (t *Transfer) Identifier() string {
	return t.identifier
}

// State returns the transfer's current lifecycle state.
func (t *Transfer) State() TransferState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transfer) setFinisher(finisher func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finisher = finisher
}

// Resume starts the underlying network operation.  Idempotent: only the
// first call transitions Ready to Running.
func (t *Transfer) Resume(ctx context.Context) {
	t.mu.Lock()
	if t.state != TransferReady {
		t.mu.Unlock()
		return
	}
	t.state = TransferRunning
	netCtx, cancel := context.WithTimeout(ctx, t.timeout)
	t.netCancel = cancel
	t.mu.Unlock()

	go t.run(netCtx)
}

func (t *Transfer) run(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.identifier, nil)
	if err != nil {
		t.fail(&NetworkError{Identifier: t.identifier, Err: err})
		return
	}
	for _, header := range t.headers {
		req.Header.Set(header.name, header.value)
	}

	client := &http.Client{Transport: config.GetTransport()}
	resp, err := client.Do(req)
	if err != nil {
		t.fail(&NetworkError{Identifier: t.identifier, Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.fail(&NetworkError{Identifier: t.identifier, StatusCode: resp.StatusCode})
		return
	}

	t.mu.Lock()
	t.totalSize = resp.ContentLength
	t.mu.Unlock()

	buf := make([]byte, chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			t.receiveChunk(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.fail(&NetworkError{Identifier: t.identifier, Err: err})
			return
		}
	}

	t.mu.Lock()
	data := make([]byte, t.accum.Len())
	copy(data, t.accum.Bytes())
	t.mu.Unlock()

	if len(data) == 0 {
		t.fail(errors.Wrapf(ErrEmptyPayload, "download of %s", t.identifier))
		return
	}
	t.complete(data)
}

// receiveChunk appends received bytes to the accumulator.  Chunks arriving
// after a terminal transition (e.g. racing an abort) are dropped.
func (t *Transfer) receiveChunk(chunk []byte) {
	t.mu.Lock()
	if t.state != TransferRunning {
		t.mu.Unlock()
		return
	}
	t.accum.Write(chunk)
	downloaded := int64(t.accum.Len())
	totalSize := t.totalSize
	callback := t.callback
	t.mu.Unlock()

	metrics.TransferredBytes.Add(float64(len(chunk)))
	if callback != nil {
		callback(t.identifier, downloaded, totalSize, false)
	}
}

// terminal performs the one-shot transition into a terminal state and
// releases the network context, so the timeout timer never outlives the
// transfer.  Waiters are woken before the network layer observes the
// cancellation.  Returns false if the transfer was already terminal (the
// signal is then a no-op, whichever of cancel/complete lost the race).
func (t *Transfer) terminal(state TransferState, result []byte, err error) bool {
	t.mu.Lock()
	if t.state == TransferCompleted || t.state == TransferFailed || t.state == TransferCancelled {
		t.mu.Unlock()
		return false
	}
	t.state = state
	t.result = result
	t.err = err
	cancel := t.netCancel
	close(t.done)
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

func (t *Transfer) complete(data []byte) {
	if !t.terminal(TransferCompleted, data, nil) {
		return
	}
	log.Debugf("Transfer of %s completed with %d bytes", t.identifier, len(data))
	t.mu.Lock()
	callback := t.callback
	totalSize := t.totalSize
	finisher := t.finisher
	t.mu.Unlock()
	if callback != nil {
		callback(t.identifier, int64(len(data)), totalSize, true)
	}
	if finisher != nil {
		finisher()
	}
}

func (t *Transfer) fail(err error) {
	if !t.terminal(TransferFailed, nil, err) {
		return
	}
	log.Debugf("Transfer of %s failed: %v", t.identifier, err)
	t.mu.Lock()
	finisher := t.finisher
	t.mu.Unlock()
	if finisher != nil {
		finisher()
	}
}

// abort cancels the transfer on behalf of the registry.  Waiters are
// failed synchronously, before the network layer observes its own
// cancellation, so nobody blocks past the moment the registry decided to
// abort.  Racing a natural completion is fine; the loser is a no-op.
func (t *Transfer) abort() {
	if !t.terminal(TransferCancelled, nil, ErrTransferCancelled) {
		return
	}
	log.Debugln("Transfer of", t.identifier, "cancelled")
}

// AwaitResult blocks until the transfer reaches a terminal state, then
// returns its outcome.  Already-terminal transfers return immediately.
// Every concurrent waiter observes the same outcome.  A cancelled ctx
// only abandons this caller's wait; the shared transfer keeps running for
// everyone else.
func (t *Transfer) AwaitResult(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
	default:
		select {
		case <-t.done:
		case <-ctx.Done():
			return nil, errors.Wrap(ErrRequestCancelled, ctx.Err().Error())
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}
