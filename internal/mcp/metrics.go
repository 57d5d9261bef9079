// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// connectAttempts tracks connect attempts by server and outcome
	connectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpd_connect_attempts_total",
			Help: "Total connect attempts by server and outcome (ok, timeout, failure)",
		},
		[]string{"server", "outcome"},
	)

	// toolCalls tracks tool invocations by server, tool and outcome
	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpd_tool_calls_total",
			Help: "Total tool calls by server, tool and outcome (ok, tool_error, connection_failure, validation)",
		},
		[]string{"server", "tool", "outcome"},
	)

	// toolCallDuration tracks end-to-end tool call latency
	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpd_tool_call_duration_seconds",
			Help:    "End-to-end tool call duration by server",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server"},
	)

	// liveConnections tracks the number of registered connections
	liveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcpd_live_connections",
			Help: "Number of currently registered connections",
		},
	)

	// discoveredTools tracks the tool count per server from the last discovery
	discoveredTools = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcpd_discovered_tools",
			Help: "Number of tools discovered per server at last refresh",
		},
		[]string{"server"},
	)
)

// recordConnect increments the connect attempt counter.
func recordConnect(server, outcome string) {
	connectAttempts.WithLabelValues(server, outcome).Inc()
}

// recordToolCall increments the tool call counter and observes its duration.
func recordToolCall(server, tool, outcome string, duration time.Duration) {
	toolCalls.WithLabelValues(server, tool, outcome).Inc()
	toolCallDuration.WithLabelValues(server).Observe(duration.Seconds())
}

// recordDiscovery records the discovered tool count for a server.
func recordDiscovery(server string, count int) {
	discoveredTools.WithLabelValues(server).Set(float64(count))
}

// setLiveConnections records the current connection table size.
func setLiveConnections(n int) {
	liveConnections.Set(float64(n))
}
