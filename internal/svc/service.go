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

// Package svc defines the plugin contract hosted services must implement,
// and the explicit registration table services are discovered through.
package svc

import "context"

// Descriptor is the immutable-after-registration attribute set of a service.
type Descriptor struct {
	ID          int
	Name        string
	Description string
	Groups      []string
	Threads     int
	Processes   int
	TimeoutS    float64
	MaxTimeouts int
	AllowBatch  bool
}

// Service is the contract a hosted plugin implements. Run is invoked for a
// single request; RunList is invoked instead when the descriptor declares
// AllowBatch and the caller submitted a list payload.
type Service interface {
	// Descriptor returns the service's declared attributes. Called once
	// during registration; the registry freezes the result.
	Descriptor() Descriptor
	// Start is called once before any worker for this service is spawned.
	Start(ctx context.Context) error
	// Shutdown is called once when the service is stopped or the process
	// exits; workers are not guaranteed to have drained by the time it runs.
	Shutdown(ctx context.Context) error
	// Run executes a single request and returns its structured output.
	Run(ctx context.Context, request string) (any, error)
	// RunList executes a batch of requests at once. The returned slice must
	// be the same length as requests or the call is treated as a failure.
	// Only called when Descriptor().AllowBatch is true.
	RunList(ctx context.Context, requests []string) ([]any, error)
}

// Factory constructs a new Service instance.
type Factory func() Service

var factories = map[string]Factory{}

// Register adds a service factory to the process-wide registration table.
// Intended to be called from an init() in the package implementing the
// service, mirroring the source's dynamic class-registration discovery with
// an explicit, compile-time-checked table instead.
func Register(name string, f Factory) {
	factories[name] = f
}

// Factories returns a copy of the registration table.
func Factories() map[string]Factory {
	out := make(map[string]Factory, len(factories))
	for k, v := range factories {
		out[k] = v
	}
	return out
}

// immutableService wraps a Service and pins its Descriptor (with a registry
// assigned ID) so later calls to the underlying Descriptor() cannot change
// what the rest of the system observes.
type immutableService struct {
	svc  Service
	desc Descriptor
}

// Freeze returns a Service whose Descriptor is fixed to desc.
func Freeze(s Service, desc Descriptor) Service {
	return &immutableService{svc: s, desc: desc}
}

func (i *immutableService) Descriptor() Descriptor { return i.desc }

func (i *immutableService) Start(ctx context.Context) error { return i.svc.Start(ctx) }

func (i *immutableService) Shutdown(ctx context.Context) error { return i.svc.Shutdown(ctx) }

func (i *immutableService) Run(ctx context.Context, request string) (any, error) {
	return i.svc.Run(ctx, request)
}

func (i *immutableService) RunList(ctx context.Context, requests []string) ([]any, error) {
	return i.svc.RunList(ctx, requests)
}
