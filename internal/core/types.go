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

// Package core holds the small set of plain types shared across the worker
// pool, supervisor, garbage collector and dispatch engine, kept dependency
// free so none of those packages need to import each other.
package core

import (
	"time"

	"go.uber.org/atomic"
)

// Item is a unit of work placed on a service's input channel.
// Payload is either a string (single request) or a []string (list request).
type Item struct {
	RequestID uint32
	Payload   any
}

// Result is a unit of output placed on a service's output channel.
// Output mirrors the shape of the originating Item's Payload.
type Result struct {
	RequestID uint32
	Output    any
}

// GCEvent is a completion notice sent to the garbage collector. Stop is the
// sentinel used to shut the collector down (the source's nil enqueue).
type GCEvent struct {
	ServiceID int
	RequestID uint32
	Stop      bool
}

// Liveness is a single worker's heartbeat cell, read by the supervisor and
// written by the worker loop. All fields are safe for concurrent access
// across the goroutine pair (or process pair) involved.
type Liveness struct {
	Alive      atomic.Bool
	Awaiting   atomic.Bool
	CurrentID  atomic.Uint32
	PayloadLen atomic.Int32
}

// NewLiveness returns a zeroed liveness cell.
func NewLiveness() *Liveness {
	return &Liveness{}
}

// ErrorResult builds the uniform error-result envelope the worker loop
// substitutes for a service exception or abort.
func ErrorResult(err error) map[string]any {
	return map[string]any{"server": "Service raised exception", "exception": err.Error()}
}

// RepeatErrorResult replicates ErrorResult across a list payload of size n,
// used when a batch call's output length does not match its input length.
func RepeatErrorResult(err error, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = ErrorResult(err)
	}
	return out
}

// Clock is a function returning the current time, such as time.Now.
type Clock func() time.Time
