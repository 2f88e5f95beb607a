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

package config

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"

	"github.com/imagevault/imagevault/param"
)

var (
	// The global transport, shared by every download so connection pooling
	// works across transfers.  Only configured once.
	transport     *http.Transport
	onceTransport sync.Once
	transportMu   sync.Mutex
)

// GetTransport returns the shared HTTP transport, constructing it from the
// Transport.* parameters on first use.
func GetTransport() *http.Transport {
	transportMu.Lock()
	defer transportMu.Unlock()
	onceTransport.Do(setupTransport)
	return transport
}

// ResetTransport discards the shared transport so the next GetTransport
// call rebuilds it from the current parameters.  Intended for unit tests.
func ResetTransport() {
	transportMu.Lock()
	defer transportMu.Unlock()
	onceTransport = sync.Once{}
	transport = nil
}

func setupTransport() {
	dialer := net.Dialer{
		Timeout:   param.Transport_DialerTimeout.GetDuration(),
		KeepAlive: param.Transport_DialerKeepAlive.GetDuration(),
	}
	transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          param.Transport_MaxIdleConns.GetInt(),
		IdleConnTimeout:       param.Transport_IdleConnTimeout.GetDuration(),
		TLSHandshakeTimeout:   param.Transport_TLSHandshakeTimeout.GetDuration(),
		ExpectContinueTimeout: param.Transport_ExpectContinueTimeout.GetDuration(),
		ResponseHeaderTimeout: param.Transport_ResponseHeaderTimeout.GetDuration(),
	}
	if param.TLSSkipVerify.GetBool() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
}
