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

// Package echo is the simplest possible hosted service: it returns the
// request unchanged. Useful for exercising the dispatch path without any
// external dependency, mirroring CustomService1 from the source's sample
// services file.
package echo

import (
	"context"

	"github.com/ironwave-io/dispatchd/internal/svc"
)

func init() {
	svc.Register("echo", func() svc.Service { return New() })
}

// Service implements svc.Service by returning its input.
type Service struct{}

// New constructs an echo Service.
func New() *Service { return &Service{} }

// Descriptor returns the echo service's attributes.
func (Service) Descriptor() svc.Descriptor {
	return svc.Descriptor{
		Name:        "echo",
		Description: "Returns the request unchanged.",
		Threads:     2,
		Groups:      []string{"diagnostic"},
		AllowBatch:  true,
	}
}

func (Service) Start(context.Context) error    { return nil }
func (Service) Shutdown(context.Context) error { return nil }

// Run returns request as-is.
func (Service) Run(ctx context.Context, request string) (any, error) {
	return request, nil
}

// RunList returns each request as-is.
func (s Service) RunList(ctx context.Context, requests []string) ([]any, error) {
	out := make([]any, len(requests))
	for i, r := range requests {
		out[i] = r
	}
	return out, nil
}
