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

// Package metrics holds the prometheus instruments for the fetch and
// cache layers.  Collectors are registered on the default registry;
// exposing them over HTTP is left to the embedding application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagevault_cache_hits_total",
		Help: "Number of cache hits, by tier served from.",
	}, []string{"tier"})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagevault_cache_misses_total",
		Help: "Number of retrievals that missed both cache tiers.",
	})

	TransfersStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagevault_transfers_started_total",
		Help: "Number of network transfers actually started.",
	})

	TransfersDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagevault_transfers_deduplicated_total",
		Help: "Number of fetch requests coalesced onto an in-flight transfer.",
	})

	TransferredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagevault_transferred_bytes_total",
		Help: "Total bytes received over the network.",
	})

	TransfersInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imagevault_transfers_inflight",
		Help: "Number of transfers currently in flight.",
	})
)
