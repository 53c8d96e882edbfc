// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package monitoring exposes the dispatch engine's per-service pool, queue
// and cache sizes, plus the garbage collector's sweep counters, as
// Prometheus metrics. Values are pulled at scrape time rather than pushed;
// Collect() samples current state rather than maintaining its own ticking
// state.
package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironwave-io/dispatchd/internal/dispatch"
	"github.com/ironwave-io/dispatchd/internal/gc"
)

// Collector implements prometheus.Collector over an Engine and a gc.Collector.
type Collector struct {
	engine *dispatch.Engine
	gc     *gc.Collector

	workers *prometheus.Desc
	pending *prometheus.Desc
	cached  *prometheus.Desc
	running *prometheus.Desc
	sweeps  *prometheus.Desc
	evicted *prometheus.Desc
}

// NewCollector builds a Collector over the given engine and GC daemon.
func NewCollector(engine *dispatch.Engine, collector *gc.Collector) *Collector {
	labels := []string{"service_id", "service_name"}
	return &Collector{
		engine: engine,
		gc:     collector,
		workers: prometheus.NewDesc(
			"dispatchd_service_workers", "Number of worker goroutines/processes hosting a service.", labels, nil),
		pending: prometheus.NewDesc(
			"dispatchd_service_pending_requests", "Number of requests awaiting a result for a service.", labels, nil),
		cached: prometheus.NewDesc(
			"dispatchd_service_cached_results", "Number of cached results held for a service.", labels, nil),
		running: prometheus.NewDesc(
			"dispatchd_service_running", "Whether a service's pool is currently running (1) or not (0).", labels, nil),
		sweeps: prometheus.NewDesc(
			"dispatchd_gc_sweeps_total", "Cumulative number of idle garbage-collection sweeps run.", nil, nil),
		evicted: prometheus.NewDesc(
			"dispatchd_gc_evicted_total", "Cumulative number of stale pending requests evicted by garbage collection.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workers
	ch <- c.pending
	ch <- c.cached
	ch <- c.running
	ch <- c.sweeps
	ch <- c.evicted
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.engine.Snapshot() {
		id := strconv.Itoa(m.ID)
		ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(m.Workers), id, m.Name)
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(m.Pending), id, m.Name)
		ch <- prometheus.MustNewConstMetric(c.cached, prometheus.GaugeValue, float64(m.Cached), id, m.Name)
		ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, boolToFloat(m.Running), id, m.Name)
	}
	ch <- prometheus.MustNewConstMetric(c.sweeps, prometheus.CounterValue, float64(c.gc.SweepCount()))
	ch <- prometheus.MustNewConstMetric(c.evicted, prometheus.CounterValue, float64(c.gc.EvictedCount()))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Registry builds a dedicated prometheus.Registry carrying this collector
// plus the standard process/Go runtime collectors, so /metrics does not
// depend on the global prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewGoCollector())
	return reg
}
