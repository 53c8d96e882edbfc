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

// Package gc implements the garbage collector daemon: it consumes
// completion events off a shared channel and, when the channel goes idle,
// sweeps every registered ledger for stale entries nobody is tracking as
// in-flight anymore.
package gc

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lindb/common/pkg/logger"

	"github.com/ironwave-io/dispatchd/internal/core"
	"github.com/ironwave-io/dispatchd/internal/ledger"
)

// InFlightFunc reports whether a service currently has a worker actively
// processing requestID (exempting it from the idle sweep).
type InFlightFunc func(serviceID int, requestID uint32) bool

// Collector is the GC daemon.
type Collector struct {
	events        chan core.GCEvent
	maxRunTime    time.Duration
	inFlight      InFlightFunc
	log           logger.Logger

	mu      sync.RWMutex
	ledgers map[int]*ledger.Ledger

	sweeps  atomic.Int64
	evicted atomic.Int64

	doneCh chan struct{}
}

// New returns a Collector. maxRunTime is max_service_run_time: both the
// idle-detection period and the staleness threshold for the sweep.
func New(maxRunTime time.Duration, inFlight InFlightFunc) *Collector {
	return &Collector{
		events:     make(chan core.GCEvent, 4096),
		maxRunTime: maxRunTime,
		inFlight:   inFlight,
		log:        logger.GetLogger("GC", "Collector"),
		ledgers:    make(map[int]*ledger.Ledger),
		doneCh:     make(chan struct{}),
	}
}

// Events returns the send side of the completion-event channel; worker
// pools publish to it.
func (c *Collector) Events() chan<- core.GCEvent { return c.events }

// Register associates a service's ledger with the collector so the idle
// sweep can scan it.
func (c *Collector) Register(serviceID int, led *ledger.Ledger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledgers[serviceID] = led
}

// Unregister removes a service's ledger, e.g. once it is permanently
// stopped.
func (c *Collector) Unregister(serviceID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ledgers, serviceID)
}

// Run drives the collector loop until a Stop event is received.
func (c *Collector) Run() {
	defer close(c.doneCh)

	timer := time.NewTimer(c.maxRunTime)
	defer timer.Stop()
	for {
		select {
		case ev := <-c.events:
			if ev.Stop {
				return
			}
			if led, ok := c.ledgerFor(ev.ServiceID); ok {
				led.Delete(ev.RequestID)
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.maxRunTime)
		case <-timer.C:
			c.sweep()
			timer.Reset(c.maxRunTime)
		}
	}
}

// Stop enqueues the shutdown sentinel and waits for the loop to exit.
func (c *Collector) Stop() {
	c.events <- core.GCEvent{Stop: true}
	<-c.doneCh
}

func (c *Collector) ledgerFor(serviceID int) (*ledger.Ledger, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.ledgers[serviceID]
	return l, ok
}

// sweep scans every registered ledger and deletes entries older than
// max_service_run_time that are no longer tracked in-flight by any worker.
// Deletions are logged at WARN, matching the source's noisy-deletion
// behavior.
func (c *Collector) sweep() {
	c.sweeps.Inc()
	c.mu.RLock()
	ledgers := make(map[int]*ledger.Ledger, len(c.ledgers))
	for k, v := range c.ledgers {
		ledgers[k] = v
	}
	c.mu.RUnlock()

	for serviceID, led := range ledgers {
		removed := led.SweepStale(c.maxRunTime, func(id uint32) bool {
			return c.inFlight != nil && c.inFlight(serviceID, id)
		})
		c.evicted.Add(int64(len(removed)))
		for _, id := range removed {
			c.log.Warn("removed stale pending request",
				logger.Int("service_id", serviceID),
				logger.String("request_id", strconv.FormatUint(uint64(id), 10)))
		}
	}
}

// SweepCount returns the cumulative number of idle-sweep passes run.
func (c *Collector) SweepCount() int64 { return c.sweeps.Load() }

// EvictedCount returns the cumulative number of stale pending entries
// removed across every sweep.
func (c *Collector) EvictedCount() int64 { return c.evicted.Load() }
