// Copyright 2016 Google Inc. All Rights Reserved.
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

// Package metrics holds the process-wide Prometheus collectors shared by
// every storage.Backend and the transaction package, so operators get the
// same commit/auth/backend counters regardless of which Backend a program
// wires up.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CommitsTotal counts committed entries, partitioned by whether the
	// commit was signed.
	CommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eidetica",
		Name:      "commits_total",
		Help:      "Number of entries successfully committed.",
	}, []string{"signed"})

	// CommitDenialsTotal counts commits rejected by auth validation.
	CommitDenialsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eidetica",
		Name:      "commit_denials_total",
		Help:      "Number of commits rejected during auth validation.",
	}, []string{"reason"})

	// BackendOpDuration times Backend calls, partitioned by backend
	// implementation and method, so a Redis-fronted or SQL backend's
	// latency is visible next to the in-memory reference backend's.
	BackendOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eidetica",
		Subsystem: "storage",
		Name:      "backend_op_duration_seconds",
		Help:      "Latency of storage.Backend method calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "op"})

	// BackendOpErrorsTotal counts failed Backend calls.
	BackendOpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eidetica",
		Subsystem: "storage",
		Name:      "backend_op_errors_total",
		Help:      "Number of storage.Backend method calls that returned an error.",
	}, []string{"backend", "op"})
)

func init() {
	prometheus.MustRegister(CommitsTotal, CommitDenialsTotal, BackendOpDuration, BackendOpErrorsTotal)
}
