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

package gc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwave-io/dispatchd/internal/core"
	"github.com/ironwave-io/dispatchd/internal/ledger"
)

func TestCollector_EventDeletesLedgerEntry(t *testing.T) {
	led := ledger.New()
	led.Put(1, "payload")

	c := New(time.Hour, nil)
	c.Register(0, led)
	go c.Run()
	defer c.Stop()

	c.Events() <- core.GCEvent{ServiceID: 0, RequestID: 1}

	require.Eventually(t, func() bool {
		return !led.Has(1)
	}, time.Second, time.Millisecond)
}

func TestCollector_IdleSweepRemovesStaleUntrackedEntries(t *testing.T) {
	led := ledger.New()
	led.Put(2, "stale")

	c := New(5*time.Millisecond, func(serviceID int, requestID uint32) bool { return false })
	c.Register(0, led)
	go c.Run()
	defer c.Stop()

	require.Eventually(t, func() bool {
		return !led.Has(2)
	}, time.Second, time.Millisecond)
}

func TestCollector_IdleSweepSkipsInFlightEntries(t *testing.T) {
	led := ledger.New()
	led.Put(3, "in-flight")

	c := New(5*time.Millisecond, func(serviceID int, requestID uint32) bool { return requestID == 3 })
	c.Register(0, led)
	go c.Run()
	defer c.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, led.Has(3), "in-flight entries must survive the idle sweep")
}

func TestCollector_SweepCountAndEvictedCountAccumulate(t *testing.T) {
	led := ledger.New()
	led.Put(5, "stale")

	c := New(5*time.Millisecond, func(serviceID int, requestID uint32) bool { return false })
	c.Register(0, led)
	go c.Run()
	defer c.Stop()

	require.Eventually(t, func() bool {
		return c.SweepCount() > 0 && c.EvictedCount() > 0
	}, time.Second, time.Millisecond)
	assert.False(t, led.Has(5))
}

func TestCollector_UnregisterStopsSweepingService(t *testing.T) {
	led := ledger.New()
	led.Put(4, "stale")

	c := New(5*time.Millisecond, func(int, uint32) bool { return false })
	c.Register(0, led)
	c.Unregister(0)
	go c.Run()
	defer c.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, led.Has(4), "unregistered ledgers must not be swept")
}
