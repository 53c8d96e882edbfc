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

// Package workerpool implements the per-service pool of workers described
// by the dispatch system: a fixed number of goroutine- or process-backed
// workers sharing an input and output channel, generalized from the
// teacher's generic task pool (internal/concurrent/pool.go in the LinDB
// codebase this project was bootstrapped from) into a fixed-size,
// request/response-channel, per-service shape.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lindb/common/pkg/logger"

	"github.com/ironwave-io/dispatchd/internal/core"
	"github.com/ironwave-io/dispatchd/internal/ledger"
	"github.com/ironwave-io/dispatchd/internal/svc"
)

var (
	errUnsupportedPayload = errors.New("unsupported payload type")
)

func errMismatchedOutputLength(want, got int) error {
	return fmt.Errorf("run_list returned %d outputs for %d inputs", got, want)
}

// Config parameterizes a service's pool.
type Config struct {
	ServiceID              int
	ServiceName            string
	Threads                int
	Processes              int
	AllowBatch             bool
	ServiceStartTimeout    time.Duration
	ServiceShutdownTimeout time.Duration
	ThProcResponseTime     time.Duration
	// WorkerSubcommand is the hidden cobra subcommand used to re-exec this
	// binary as a process-isolation worker. Empty disables process workers
	// even if Processes > 0 (falls back to threads).
	WorkerSubcommand string
}

// Pool is one service's worker pool plus the bookkeeping the rest of the
// system (supervisor, GC, dispatch engine) needs to interact with it.
type Pool struct {
	cfg     Config
	service svc.Service
	ledger  *ledger.Ledger
	gc      chan<- core.GCEvent

	inputIn  chan<- *core.Item
	inputOut <-chan *core.Item
	outputIn chan<- core.Result
	Output   <-chan core.Result

	running    atomic.Bool
	allowBatch bool

	mu      sync.Mutex
	workers []*Worker
	nextID  int

	log logger.Logger
}

// New constructs a pool for one service. It does not start any workers;
// call Start for that.
func New(cfg Config, service svc.Service, led *ledger.Ledger, gc chan<- core.GCEvent) *Pool {
	in, out := unbounded[*core.Item]()
	oIn, oOut := unbounded[core.Result]()
	p := &Pool{
		cfg:        cfg,
		service:    service,
		ledger:     led,
		gc:         gc,
		inputIn:    in,
		inputOut:   out,
		outputIn:   oIn,
		Output:     oOut,
		allowBatch: cfg.AllowBatch,
		log:        logger.GetLogger("WorkerPool", cfg.ServiceName),
	}
	return p
}

// Start calls the service's Start hook under service_start_timeout and,
// on success, spawns threads+processes workers.
func (p *Pool) Start(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, p.cfg.ServiceStartTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- p.service.Start(startCtx) }()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("service %q start: %w", p.cfg.ServiceName, err)
		}
	case <-startCtx.Done():
		return fmt.Errorf("service %q start: %w", p.cfg.ServiceName, startCtx.Err())
	}

	p.running.Store(true)
	for i := 0; i < p.cfg.Threads; i++ {
		p.spawnWorker(ctx, false)
	}
	for i := 0; i < p.cfg.Processes; i++ {
		p.spawnWorker(ctx, true)
	}
	return nil
}

func (p *Pool) spawnWorker(ctx context.Context, process bool) *Worker {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.mu.Unlock()

	var ex executor
	if process && p.cfg.WorkerSubcommand != "" {
		pe, err := newProcessExecutor(ctx, p.cfg.WorkerSubcommand, p.cfg.ServiceName)
		if err != nil {
			p.log.Error("failed to start process worker, falling back to goroutine",
				logger.Error(err))
			ex = newGoroutineExecutor(p.service)
		} else {
			ex = pe
		}
	} else {
		ex = newGoroutineExecutor(p.service)
	}

	w := newWorker(id, p, ex)
	p.mu.Lock()
	p.workers = append(p.workers, w)
	p.mu.Unlock()
	w.start(ctx)
	return w
}

// Submit enqueues an item, recording it in the pending ledger first so a
// supervisor-driven restart can always recover it.
func (p *Pool) Submit(item *core.Item) {
	p.ledger.Put(item.RequestID, item.Payload)
	p.inputIn <- item
}

func (p *Pool) publishResult(r core.Result) {
	// the unbounded pump always accepts, so this send only waits for the
	// pump goroutine to return to its receive; outputIn is never closed.
	p.outputIn <- r
}

func (p *Pool) notifyGC(requestID uint32) {
	select {
	case p.gc <- core.GCEvent{ServiceID: p.cfg.ServiceID, RequestID: requestID}:
	default:
		p.log.Warn("gc channel full, dropping completion notice")
	}
}

// Running reports whether the service is currently accepting work.
func (p *Pool) Running() bool { return p.running.Load() }

// Workers returns the current worker set for supervisor iteration. Safe to
// call concurrently with Restart/spawnWorker.
func (p *Pool) Workers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Worker, len(p.workers))
	copy(out, p.workers)
	return out
}

// InFlight reports whether any worker in the pool currently has requestID
// checked out, for the GC collector to distinguish a slow-but-alive
// request from one whose worker has already moved on.
func (p *Pool) InFlight(requestID uint32) bool {
	for _, w := range p.Workers() {
		if w.liveness.CurrentID.Load() == requestID {
			return true
		}
	}
	return false
}

// Restart stops w (see Worker.stop: a worker still inside a service call is
// not killed and keeps running until that call returns), recovers its
// in-flight request (if any) from the ledger and re-enqueues it with the
// same id, then spawns a replacement worker in its place.
func (p *Pool) Restart(ctx context.Context, w *Worker) {
	recoveredID := w.liveness.CurrentID.Load()
	w.stop()

	p.mu.Lock()
	for i, existing := range p.workers {
		if existing == w {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if recoveredID != 0 {
		if entry, ok := p.ledger.Get(recoveredID); ok {
			p.log.Warn("recovering stalled request", logger.String("request_id", fmt.Sprint(recoveredID)))
			p.inputIn <- &core.Item{RequestID: recoveredID, Payload: entry.Payload}
		}
	}

	_, isProcess := w.exec.(*processExecutor)
	p.spawnWorker(ctx, isProcess)
}

// Stop invokes the service's Shutdown hook under service_shutdown_timeout,
// marks the service not-running, stops every worker (as in Restart, a worker
// busy inside a service call is not killed), and starts a
// dummy worker that drains the input channel with the canned "disabled"
// response until the pool is discarded.
func (p *Pool) Stop(ctx context.Context, dummyReply func(requestID uint32) any) {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	stopCtx, cancel := context.WithTimeout(ctx, p.cfg.ServiceShutdownTimeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = p.service.Shutdown(stopCtx)
		close(done)
	}()
	select {
	case <-done:
	case <-stopCtx.Done():
		p.log.Warn("shutdown hook timed out, abandoning it", logger.String("service", p.cfg.ServiceName))
	}

	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.mu.Unlock()
	for _, w := range workers {
		w.stop()
	}

	go p.runDummy(dummyReply)
}

// runDummy drains the input channel and replies with the canned disabled
// message while preserving request-id correlation, per the dummy-worker
// mode used once a service has been permanently disabled.
func (p *Pool) runDummy(reply func(requestID uint32) any) {
	for item := range p.inputOut {
		if item == nil {
			continue
		}
		p.ledger.Delete(item.RequestID)
		p.publishResult(core.Result{RequestID: item.RequestID, Output: reply(item.RequestID)})
	}
}

// WorkerCount reports the live worker count, used by the admin info endpoint.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
