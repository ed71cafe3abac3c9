// Copyright 2024 the studyview authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import "github.com/prometheus/client_golang/prometheus"

var CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "studyview",
	Subsystem: "frame_cache",
	Name:      "hits",
})

var CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "studyview",
	Subsystem: "frame_cache",
	Name:      "misses",
})

var CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "studyview",
	Subsystem: "frame_cache",
	Name:      "evictions",
})

var CacheBytes = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "studyview",
	Subsystem: "frame_cache",
	Name:      "resident_bytes",
})

var MaterializeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "studyview",
	Subsystem: "frame",
	Name:      "materialize_duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
}, []string{"result"})

// Metrics returns the package's collectors for the host to register.
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{
		CacheHits, CacheMisses, CacheEvictions, CacheBytes, MaterializeDuration,
	}
}
