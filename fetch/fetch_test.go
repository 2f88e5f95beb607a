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
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/blob_cache"
	"github.com/imagevault/imagevault/config"
	"github.com/imagevault/imagevault/param"
	"github.com/imagevault/imagevault/test_utils"
)

func setupEngine(t *testing.T) *Engine {
	config.ResetConfig()
	viper.Set(param.Cache_DataLocation.GetName(), t.TempDir())
	ctx, cancel, egrp := test_utils.TestContext(context.Background(), t)
	t.Cleanup(func() {
		cancel()
		require.NoError(t, egrp.Wait())
		config.ResetConfig()
	})
	return NewEngine(ctx, egrp, blob_cache.NewCache(ctx, egrp))
}

func countingServer(t *testing.T, payload []byte) (*httptest.Server, func() int) {
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, func() int {
		mu.Lock()
		defer mu.Unlock()
		return requests
	}
}

func TestEngineFetchCachesResult(t *testing.T) {
	engine := setupEngine(t)
	payload := []byte("cache me")
	srv, requests := countingServer(t, payload)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := engine.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, 1, requests())

	// The second fetch is served entirely from the cache.
	data, err = engine.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, 1, requests())

	// The result landed on disk under the derived key.
	key := blob_cache.KeyForResource(srv.URL, false)
	stored, present, err := engine.Cache().Disk().Retrieve(key, true, false)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, payload, stored)
}

func TestEngineFetchPriority(t *testing.T) {
	engine := setupEngine(t)
	payload := []byte("precious")
	srv, requests := countingServer(t, payload)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := engine.Fetch(ctx, srv.URL, WithPriority(true))
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	key := blob_cache.KeyForResource(srv.URL, true)
	assert.True(t, blob_cache.IsPriorityKey(key))
	_, present, err := engine.Cache().Disk().Retrieve(key, false, false)
	require.NoError(t, err)
	assert.True(t, present, "priority fetches land in the priority namespace")

	// A later normal fetch of the same resource is a twin hit, not a
	// re-download.
	data, err = engine.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, 1, requests())
}

func TestEngineFetchWithPolicy(t *testing.T) {
	engine := setupEngine(t)
	payload := []byte("short lived")
	srv, _ := countingServer(t, payload)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := engine.Fetch(ctx, srv.URL, WithPolicy(blob_cache.ExpireAfter(time.Hour)))
	require.NoError(t, err)

	// Memory serves it while the policy lasts.
	key := blob_cache.KeyForResource(srv.URL, false)
	assert.Equal(t, payload, engine.Cache().Memory().Retrieve(key, false))
}

func TestEngineInvalidIdentifiers(t *testing.T) {
	engine := setupEngine(t)
	ctx := context.Background()

	for _, identifier := range []string{
		"",
		"not a url at all\x7f",
		"ftp://example.com/file.png",
		"https://",
		"/relative/path.png",
	} {
		_, err := engine.Fetch(ctx, identifier)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "identifier %q", identifier)

		_, err = engine.Start(identifier)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "identifier %q", identifier)
	}
}

func TestEngineFetchCallerCancellation(t *testing.T) {
	engine := setupEngine(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := engine.Fetch(ctx, srv.URL, WithTimeout(10*time.Second))
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrRequestCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not observe the cancelled context")
	}
}

func TestEngineStartAwaitCancel(t *testing.T) {
	engine := setupEngine(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte("split phase"))
	}))
	t.Cleanup(srv.Close)

	token, err := engine.Start(srv.URL, WithTimeout(10*time.Second))
	require.NoError(t, err)
	token2, err := engine.Start(srv.URL, WithTimeout(10*time.Second))
	require.NoError(t, err)
	assert.Same(t, token.Transfer(), token2.Transfer())

	// The first caller walks away; the transfer survives for the second.
	require.NoError(t, engine.Cancel(token))
	assert.Equal(t, TransferRunning, token2.Transfer().State())

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := engine.Await(ctx, token2)
	require.NoError(t, err)
	assert.Equal(t, []byte("split phase"), data)

	_, err = engine.Await(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEngineShutdown(t *testing.T) {
	engine := setupEngine(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	defer close(release)

	token, err := engine.Start(srv.URL, WithTimeout(10*time.Second))
	require.NoError(t, err)

	engine.Shutdown()
	assert.Zero(t, engine.Registry().Inflight())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = engine.Await(ctx, token)
	assert.ErrorIs(t, err, ErrTransferCancelled)
}
