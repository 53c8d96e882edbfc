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

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwave-io/dispatchd/internal/core"
	"github.com/ironwave-io/dispatchd/internal/ledger"
	"github.com/ironwave-io/dispatchd/internal/svc"
	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

type blockingService struct {
	block chan struct{}
}

func (b *blockingService) Descriptor() svc.Descriptor {
	return svc.Descriptor{Name: "slow", Threads: 1, TimeoutS: 1}
}
func (b *blockingService) Start(context.Context) error    { return nil }
func (b *blockingService) Shutdown(context.Context) error { return nil }
func (b *blockingService) Run(ctx context.Context, r string) (any, error) {
	<-b.block
	return map[string]any{"echo": r}, nil
}
func (b *blockingService) RunList(ctx context.Context, rs []string) ([]any, error) {
	return nil, nil
}

func TestTerminator_RestartsStalledWorker(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	led := ledger.New()
	gc := make(chan core.GCEvent, 10)
	pool := workerpool.New(workerpool.Config{
		ServiceID: 0, ServiceName: "slow", Threads: 1,
		ServiceStartTimeout: time.Second, ServiceShutdownTimeout: time.Second,
	}, &blockingService{block: block}, led, gc)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(context.Background(), func(uint32) any { return nil })

	pool.Submit(&core.Item{RequestID: 5, Payload: "x"})
	time.Sleep(10 * time.Millisecond)

	term := New(time.Millisecond)
	term.Watch(ServiceTarget{ServiceID: 0, ServiceName: "slow", Pool: pool, TimeoutS: 1, MaxTimeouts: 0})

	// Drive enough cycles by hand (threshold = timeout_s(1) * payloadLen(1) = 1 stall tick).
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		term.cycle(ctx)
	}

	_, ok := led.Get(5)
	assert.True(t, ok, "restart should recover the in-flight request under the same id")
}

func TestTerminator_DisablesAfterMaxTimeouts(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	led := ledger.New()
	gc := make(chan core.GCEvent, 10)
	pool := workerpool.New(workerpool.Config{
		ServiceID: 1, ServiceName: "slow", Threads: 1,
		ServiceStartTimeout: time.Second, ServiceShutdownTimeout: time.Second,
	}, &blockingService{block: block}, led, gc)
	require.NoError(t, pool.Start(context.Background()))

	pool.Submit(&core.Item{RequestID: 9, Payload: "x"})
	time.Sleep(10 * time.Millisecond)

	term := New(time.Millisecond)
	term.Watch(ServiceTarget{
		ServiceID: 1, ServiceName: "slow", Pool: pool, TimeoutS: 1, MaxTimeouts: 1,
		DummyReply: func(uint32) any { return "disabled" },
	})

	ctx := context.Background()
	for i := 0; i < 3 && pool.Running(); i++ {
		term.cycle(ctx)
	}

	assert.False(t, pool.Running())
}
