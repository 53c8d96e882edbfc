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

// Package supervisor implements the single control loop (the source calls
// it the "Terminator") that watches per-worker liveness, restarts stalled
// workers, and disables services that stall too often.
//
// Liveness-cell semantics (resolved here since the source's own
// description is internally ambiguous about which side sets vs. clears the
// flag): a worker clears its alive flag to false the instant it completes a
// full loop iteration (worker.go's loop, at the bottom) — that clearing is
// the heartbeat. The supervisor sets it back to true once it has observed
// the heartbeat, arming the next cycle's check. A worker whose flag is
// still true at the next cycle has not completed an iteration since it was
// armed, i.e. it is a stall candidate.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/lindb/common/pkg/logger"

	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

// ServiceTarget bundles a pool together with the static tuning parameters
// the supervisor needs for it.
type ServiceTarget struct {
	ServiceID   int
	ServiceName string
	Pool        *workerpool.Pool
	TimeoutS    float64 // 0 disables supervision for this service
	MaxTimeouts int     // 0 means unlimited
	DummyReply  func(requestID uint32) any
}

// Terminator is the supervisor's control loop.
type Terminator struct {
	idleCycle time.Duration
	log       logger.Logger

	mu            sync.Mutex
	targets       map[int]*ServiceTarget
	stallCounters map[int]map[*workerpool.Worker]int
	timeoutCounts map[int]int

	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns a Terminator with the given idle-cycle period
// (terminator_idle_cycle).
func New(idleCycle time.Duration) *Terminator {
	return &Terminator{
		idleCycle:     idleCycle,
		log:           logger.GetLogger("Supervisor", "Terminator"),
		targets:       make(map[int]*ServiceTarget),
		stallCounters: make(map[int]map[*workerpool.Worker]int),
		timeoutCounts: make(map[int]int),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Watch registers a service for supervision. Checks against TimeoutS happen
// per-cycle, so a target with TimeoutS == 0 can be registered harmlessly.
func (t *Terminator) Watch(target ServiceTarget) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[target.ServiceID] = &target
	t.stallCounters[target.ServiceID] = make(map[*workerpool.Worker]int)
}

// Unwatch removes a service from supervision, e.g. after it is stopped.
func (t *Terminator) Unwatch(serviceID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.targets, serviceID)
	delete(t.stallCounters, serviceID)
	delete(t.timeoutCounts, serviceID)
}

// Run drives the control loop until ctx is cancelled or Stop is called.
func (t *Terminator) Run(ctx context.Context) {
	defer close(t.doneCh)
	for {
		stalled := t.cycle(ctx)
		sleep := t.idleCycle
		if stalled {
			sleep = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-time.After(sleep):
		}
	}
}

// Stop requests the control loop to exit and waits for it to do so.
func (t *Terminator) Stop() {
	close(t.stopCh)
	<-t.doneCh
}

// cycle runs one supervision pass across every watched service and returns
// whether any worker stalled this cycle.
func (t *Terminator) cycle(ctx context.Context) bool {
	t.mu.Lock()
	targets := make([]*ServiceTarget, 0, len(t.targets))
	for _, target := range t.targets {
		targets = append(targets, target)
	}
	t.mu.Unlock()

	stalledAny := false
	for _, target := range targets {
		if target.TimeoutS <= 0 || !target.Pool.Running() {
			continue
		}
		if t.checkService(ctx, target) {
			stalledAny = true
		}
	}
	return stalledAny
}

func (t *Terminator) checkService(ctx context.Context, target *ServiceTarget) bool {
	stalled := false
	for _, w := range target.Pool.Workers() {
		live := w.Liveness()
		if !live.Alive.Load() {
			// heartbeated since last cycle: reset and re-arm.
			t.resetStall(target.ServiceID, w)
			live.Alive.Store(true)
			continue
		}
		if live.Awaiting.Load() {
			// blocked on input, not a stall.
			t.resetStall(target.ServiceID, w)
			continue
		}
		n := int(live.PayloadLen.Load())
		if n < 1 {
			n = 1
		}
		threshold := int(target.TimeoutS) * n
		if threshold < 1 {
			threshold = 1
		}
		count := t.incrStall(target.ServiceID, w)
		if count < threshold {
			continue
		}
		stalled = true
		t.resetStall(target.ServiceID, w)
		t.onStall(ctx, target, w)
	}
	return stalled
}

func (t *Terminator) resetStall(serviceID int, w *workerpool.Worker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stallCounters[serviceID], w)
}

func (t *Terminator) incrStall(serviceID int, w *workerpool.Worker) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stallCounters[serviceID][w]++
	return t.stallCounters[serviceID][w]
}

func (t *Terminator) onStall(ctx context.Context, target *ServiceTarget, w *workerpool.Worker) {
	t.mu.Lock()
	t.timeoutCounts[target.ServiceID]++
	count := t.timeoutCounts[target.ServiceID]
	t.mu.Unlock()

	if target.MaxTimeouts != 0 && count >= target.MaxTimeouts {
		t.log.Warn("service exceeded max_timeouts, stopping",
			logger.String("service", target.ServiceName))
		target.Pool.Stop(ctx, target.DummyReply)
		t.Unwatch(target.ServiceID)
		return
	}
	t.log.Warn("worker stalled, restarting",
		logger.String("service", target.ServiceName))
	target.Pool.Restart(ctx, w)
}
