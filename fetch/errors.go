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
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidIdentifier indicates a resource identifier that fails
	// validation before any transfer is created.
	ErrInvalidIdentifier = errors.New("invalid resource identifier")

	// ErrInvalidToken indicates a waiter token that is nil or was already
	// released.
	ErrInvalidToken = errors.New("invalid transfer token")

	// ErrRequestCancelled indicates the caller cancelled its own interest
	// in a fetch.  Distinct from ErrTransferCancelled so "I asked to stop"
	// is never conflated with "it broke".
	ErrRequestCancelled = errors.New("fetch request cancelled")

	// ErrTransferCancelled indicates the shared transfer itself was
	// aborted (last waiter released, or force-cancelled).
	ErrTransferCancelled = errors.New("transfer cancelled")

	// ErrEmptyPayload indicates the upstream replied successfully but with
	// no content.
	ErrEmptyPayload = errors.New("empty response payload")
)

// NetworkError describes a failed network operation: a transport error, a
// timeout, or a non-2xx upstream response.
type NetworkError struct {
	Identifier string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download of %s failed with status code %d", e.Identifier, e.StatusCode)
	}
	return fmt.Sprintf("download of %s failed: %v", e.Identifier, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
