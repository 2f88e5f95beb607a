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
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imagevault/imagevault/param"
)

// DiskTier is the durable blob store: one flat directory per cache name,
// one file per key, file contents are the raw cached bytes.  The file's
// modification time is the expiry instant and the access time the write
// instant, so deleting a file also deletes its expiry record and the
// format survives process restarts with no separate index.
//
// A single DiskTier instance owns its directory; concurrent instances
// over the same directory are unsupported.
type DiskTier struct {
	basePath     string
	extendPolicy ExpirationPolicy

	prepOnce sync.Once
	prepErr  error

	// The "maybe cached" index: keys known to exist on disk.  Built once
	// from a directory listing at preparation time.  Absence from the index
	// is a hint that lets Retrieve skip a stat; if the index failed to
	// build, every lookup degrades to a real filesystem check.
	mu         sync.Mutex
	index      map[string]struct{}
	indexValid bool
}

// NewDiskTier creates a disk tier rooted at
// Cache.DataLocation/Cache.Name.  Directory preparation is deferred to
// the first operation; a preparation failure latches the tier "not ready"
// for the process lifetime.
func NewDiskTier() *DiskTier {
	return &DiskTier{
		basePath:     filepath.Join(param.Cache_DataLocation.GetString(), param.Cache_Name.GetString()),
		extendPolicy: ExpireAfter(param.Cache_DefaultLifetime.GetDuration()),
		index:        make(map[string]struct{}),
	}
}

// BasePath returns the directory this tier stores its files under.
func (dt *DiskTier) BasePath() string {
	return dt.basePath
}

func (dt *DiskTier) prepare() {
	if err := os.MkdirAll(dt.basePath, 0700); err != nil {
		dt.prepErr = &DirectoryError{Path: dt.basePath, Err: err}
		log.Errorln("Disk cache is permanently unavailable:", dt.prepErr)
		return
	}
	entries, err := os.ReadDir(dt.basePath)
	if err != nil {
		// The tier still works; lookups just cannot short-circuit.
		log.Warningln("Failed to build the disk cache key index:", err)
		return
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	for _, entry := range entries {
		if !entry.IsDir() {
			dt.index[entry.Name()] = struct{}{}
		}
	}
	dt.indexValid = true
}

func (dt *DiskTier) ensureReady() error {
	dt.prepOnce.Do(dt.prepare)
	if dt.prepErr != nil {
		return errors.Wrap(ErrStorageNotReady, dt.prepErr.Error())
	}
	return nil
}

// maybeCached reports whether key might exist on disk.  A false result is
// authoritative only while the index is valid.
func (dt *DiskTier) maybeCached(key string) bool {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	if !dt.indexValid {
		return true
	}
	_, ok := dt.index[key]
	return ok
}

func (dt *DiskTier) indexAdd(key string) {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.index[key] = struct{}{}
}

func (dt *DiskTier) indexDrop(key string) {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	delete(dt.index, key)
}

// Store writes the blob under key with the given policy.  An
// already-expired policy is a silent no-op.  If the expiry timestamp
// cannot be stamped onto the file, the write is rolled back and an
// AttributeError returned, so no file ever exists without its expiry
// record.
func (dt *DiskTier) Store(key string, data []byte, policy ExpirationPolicy) error {
	if policy.IsExpired() {
		log.Debugln("Ignoring disk store of already-expired entry for key", key)
		return nil
	}
	if err := dt.ensureReady(); err != nil {
		return err
	}

	localPath := filepath.Join(dt.basePath, key)
	if err := os.WriteFile(localPath, data, 0600); err != nil {
		return errors.Wrapf(err, "failed to write cached file for key %s", key)
	}
	now := time.Now()
	if err := os.Chtimes(localPath, now, policy.ExpiresAt(now)); err != nil {
		if rmErr := os.Remove(localPath); rmErr != nil {
			log.Warningln("Failed to roll back cached file after attribute error:", rmErr)
		}
		dt.indexDrop(key)
		return &AttributeError{Path: localPath, Err: err}
	}
	dt.indexAdd(key)
	return nil
}

// Retrieve looks up key.  The second return value reports presence; when
// actuallyLoad is false a present entry is reported without reading the
// file.  An entry whose mtime-encoded expiry has passed is deleted and
// reported absent.  When extend is true the expiry is rewritten to the
// tier's default lifetime from now.
func (dt *DiskTier) Retrieve(key string, actuallyLoad bool, extend bool) ([]byte, bool, error) {
	if err := dt.ensureReady(); err != nil {
		return nil, false, err
	}
	if !dt.maybeCached(key) {
		return nil, false, nil
	}

	localPath := filepath.Join(dt.basePath, key)
	finfo, err := os.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			dt.indexDrop(key)
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "failed to stat cached file for key %s", key)
	}

	now := time.Now()
	if !finfo.ModTime().After(now) {
		// Expired; reads never depend on the sweep having run.
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			log.Warningln("Failed to remove expired cached file:", err)
		}
		dt.indexDrop(key)
		return nil, false, nil
	}

	if !actuallyLoad {
		return nil, true, nil
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			dt.indexDrop(key)
			return nil, false, errors.Wrapf(ErrFileNotFound, "key %s", key)
		}
		return nil, false, errors.Wrapf(ErrInvalidData, "failed to read cached file for key %s: %v", key, err)
	}
	if extend {
		if err := os.Chtimes(localPath, now, dt.extendPolicy.ExpiresAt(now)); err != nil {
			// The read succeeded; a failed extension only shortens the
			// entry's remaining lifetime.
			log.Warningln("Failed to extend expiry of cached file:", err)
		}
	}
	return data, true, nil
}

// Remove deletes the entry under key.  Removing an absent key is not an
// error.
func (dt *DiskTier) Remove(key string) error {
	if err := dt.ensureReady(); err != nil {
		return err
	}
	dt.indexDrop(key)
	if err := os.Remove(filepath.Join(dt.basePath, key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove cached file for key %s", key)
	}
	return nil
}

// RemoveAll deletes the entire cache directory and recreates it empty.
func (dt *DiskTier) RemoveAll() error {
	if err := dt.ensureReady(); err != nil {
		return err
	}
	if err := os.RemoveAll(dt.basePath); err != nil {
		return errors.Wrap(err, "failed to remove the cache directory")
	}
	if err := os.MkdirAll(dt.basePath, 0700); err != nil {
		return &DirectoryError{Path: dt.basePath, Err: err}
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.index = make(map[string]struct{})
	dt.indexValid = true
	return nil
}

// Keys enumerates the keys currently resident on disk, expired or not.
func (dt *DiskTier) Keys() ([]string, error) {
	if err := dt.ensureReady(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dt.basePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate the cache directory")
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			keys = append(keys, entry.Name())
		}
	}
	return keys, nil
}

// SweepExpired deletes every file whose mtime-encoded expiry is at or
// before the reference instant, returning the removed keys.
func (dt *DiskTier) SweepExpired(reference time.Time) ([]string, error) {
	if err := dt.ensureReady(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dt.basePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate the cache directory")
	}
	removed := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		finfo, err := entry.Info()
		if err != nil {
			continue
		}
		if finfo.ModTime().After(reference) {
			continue
		}
		if err := os.Remove(filepath.Join(dt.basePath, entry.Name())); err != nil && !os.IsNotExist(err) {
			log.Warningln("Failed to sweep expired cached file:", err)
			continue
		}
		dt.indexDrop(entry.Name())
		removed = append(removed, entry.Name())
	}
	return removed, nil
}
