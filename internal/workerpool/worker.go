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

package workerpool

import (
	"context"
	"time"

	"github.com/ironwave-io/dispatchd/internal/core"
)

// Worker is one member of a service's pool: one goroutine (or one forked
// process, via its executor) pulling from the shared input channel.
type Worker struct {
	id       int
	pool     *Pool
	liveness *core.Liveness
	exec     executor
	stopCh   chan struct{}
	done     chan struct{}
}

func newWorker(id int, pool *Pool, exec executor) *Worker {
	return &Worker{
		id:       id,
		pool:     pool,
		liveness: core.NewLiveness(),
		exec:     exec,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Liveness exposes this worker's heartbeat cell to the supervisor.
func (w *Worker) Liveness() *core.Liveness { return w.liveness }

// start launches the worker's processing goroutine.
func (w *Worker) start(ctx context.Context) {
	go w.loop(ctx)
}

// stop requests cooperative shutdown and waits up to the pool's
// th_proc_response_time for the worker's loop to exit. A worker busy inside
// a service call only sees the request once that call returns, so stop can
// return while such a worker is still running.
func (w *Worker) stop() {
	close(w.stopCh)
	select {
	case <-w.done:
	case <-time.After(w.pool.cfg.ThProcResponseTime):
	}
}

// loop is the worker's main cycle: mark awaiting, await input, execute,
// publish, repeat. alive_flag is cleared right after a full
// iteration completes (the heartbeat signal the supervisor watches for);
// it is the supervisor's job to set it back to true once it has observed
// the heartbeat (see internal/supervisor).
func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	defer w.exec.Close()
	for {
		w.liveness.Awaiting.Store(true)
		var item *core.Item
		select {
		case <-w.stopCh:
			return
		case v, ok := <-w.pool.inputOut:
			if !ok {
				return
			}
			item = v
		}
		w.liveness.Awaiting.Store(false)

		if item == nil {
			// nil sentinel: re-check whether the service is still running.
			if !w.pool.running.Load() {
				return
			}
			w.liveness.Alive.Store(false)
			continue
		}

		w.liveness.CurrentID.Store(item.RequestID)
		w.liveness.PayloadLen.Store(int32(payloadLen(item.Payload)))

		output := w.execute(ctx, item)

		w.liveness.CurrentID.Store(0)
		w.liveness.PayloadLen.Store(0)

		w.pool.publishResult(core.Result{RequestID: item.RequestID, Output: output})
		w.pool.notifyGC(item.RequestID)

		// heartbeat: a full iteration completed.
		w.liveness.Alive.Store(false)
	}
}

func payloadLen(payload any) int {
	if list, ok := payload.([]string); ok {
		return len(list)
	}
	return 1
}

func (w *Worker) execute(ctx context.Context, item *core.Item) any {
	switch payload := item.Payload.(type) {
	case string:
		out, err := w.exec.RunOne(ctx, payload)
		if err != nil {
			return core.ErrorResult(err)
		}
		return out
	case []string:
		if w.pool.allowBatch {
			outs, err := w.exec.RunList(ctx, payload)
			if err != nil {
				return core.RepeatErrorResult(err, len(payload))
			}
			if len(outs) != len(payload) {
				return core.RepeatErrorResult(
					errMismatchedOutputLength(len(payload), len(outs)), len(payload))
			}
			return outs
		}
		outs := make([]any, len(payload))
		for i, r := range payload {
			out, err := w.exec.RunOne(ctx, r)
			if err != nil {
				outs[i] = core.ErrorResult(err)
			} else {
				outs[i] = out
			}
		}
		return outs
	default:
		return core.ErrorResult(errUnsupportedPayload)
	}
}
