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

package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/config"
	"github.com/imagevault/imagevault/param"
)

func TestRunFetch(t *testing.T) {
	config.ResetConfig()
	viper.Set(param.Cache_DataLocation.GetName(), t.TempDir())
	t.Cleanup(config.ResetConfig)

	payload := []byte("cli payload")
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	output := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, fetchCmd.Flags().Set("output", output))
	require.NoError(t, fetchCmd.Flags().Set("priority", "true"))

	require.NoError(t, runFetch(fetchCmd, []string{srv.URL}))
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// A second invocation builds a fresh engine over the same cache
	// directory; the priority preload plus the disk tier must satisfy it
	// without another upstream request.
	output2 := filepath.Join(t.TempDir(), "out2.bin")
	require.NoError(t, fetchCmd.Flags().Set("output", output2))
	require.NoError(t, fetchCmd.Flags().Set("priority", "false"))

	require.NoError(t, runFetch(fetchCmd, []string{srv.URL}))
	data, err = os.ReadFile(output2)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)
}

func TestRunFetchMalformedHeader(t *testing.T) {
	config.ResetConfig()
	viper.Set(param.Cache_DataLocation.GetName(), t.TempDir())
	t.Cleanup(config.ResetConfig)

	require.NoError(t, fetchCmd.Flags().Set("output", filepath.Join(t.TempDir(), "out.bin")))
	require.NoError(t, fetchCmd.Flags().Set("header", "NoColonHere"))

	err := runFetch(fetchCmd, []string{"https://example.com/image.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed header")
}
