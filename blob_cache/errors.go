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
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrStorageNotReady indicates the disk tier's cache directory could not
	// be created; the tier latches this state for the process lifetime.
	ErrStorageNotReady = errors.New("cache storage is not ready")

	// ErrInvalidData indicates a cached file was present but could not be
	// read back.
	ErrInvalidData = errors.New("invalid cached data")

	// ErrFileNotFound indicates a cached file disappeared between the
	// existence check and the read.
	ErrFileNotFound = errors.New("cached file not found")
)

// DirectoryError reports a failure to create or recreate the cache
// directory.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("failed to create cache directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// AttributeError reports a failure to stamp a cached file's timestamps.
// The disk tier stores expiry in the modification time, so a file whose
// attributes cannot be written is rolled back rather than left with a
// bogus expiry.
type AttributeError struct {
	Path string
	Err  error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("failed to set expiry attributes on %s: %v", e.Path, e.Err)
}

func (e *AttributeError) Unwrap() error {
	return e.Err
}
