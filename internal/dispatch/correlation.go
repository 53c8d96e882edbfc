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

package dispatch

import (
	"sync"

	"github.com/lindb/common/pkg/logger"

	"github.com/ironwave-io/dispatchd/internal/core"
	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

// correlator demultiplexes a pool's shared output channel by request id,
// replacing the source's tmp-queue collision-retry mechanism: because every
// result already carries its own request id, a single fan-in goroutine can
// route it directly to the one caller waiting for it instead of requiring
// every caller to re-inspect and requeue results addressed to somebody else.
// A result that arrives after its waiter gave up (the caller timed out and
// unregistered) has nowhere to go and is dropped with a WARN log — the same
// outcome the source reaches after TMP_ITER failed retries.
type correlator struct {
	pool *workerpool.Pool
	log  logger.Logger

	mu      sync.Mutex
	waiters map[uint32]chan core.Result

	stopCh chan struct{}
	doneCh chan struct{}
}

func newCorrelator(pool *workerpool.Pool, serviceName string) *correlator {
	c := &correlator{
		pool:    pool,
		log:     logger.GetLogger("Dispatch", "Correlator-"+serviceName),
		waiters: make(map[uint32]chan core.Result),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *correlator) run() {
	defer close(c.doneCh)
	for {
		select {
		case res, ok := <-c.pool.Output:
			if !ok {
				return
			}
			c.deliver(res)
		case <-c.stopCh:
			return
		}
	}
}

func (c *correlator) deliver(res core.Result) {
	c.mu.Lock()
	ch, ok := c.waiters[res.RequestID]
	if ok {
		delete(c.waiters, res.RequestID)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Warn("dropped result with no registered waiter",
			logger.String("request_id", formatID(res.RequestID)))
		return
	}
	ch <- res
}

// register arms a one-shot waiter for requestID. The caller must eventually
// call unregister if it stops waiting without receiving from the channel.
func (c *correlator) register(requestID uint32) <-chan core.Result {
	ch := make(chan core.Result, 1)
	c.mu.Lock()
	c.waiters[requestID] = ch
	c.mu.Unlock()
	return ch
}

// unregister cancels a waiter, e.g. after the caller times out.
func (c *correlator) unregister(requestID uint32) {
	c.mu.Lock()
	delete(c.waiters, requestID)
	c.mu.Unlock()
}

func (c *correlator) stop() {
	close(c.stopCh)
	<-c.doneCh
}

func formatID(id uint32) string {
	const digits = "0123456789"
	if id == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = digits[id%10]
		id /= 10
	}
	return string(buf[i:])
}
