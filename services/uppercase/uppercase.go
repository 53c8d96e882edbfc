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

// Package uppercase hosts a small CPU-bound service, the kind the source's
// sample file calls a "simplest services" example but with an actual
// transform instead of an identity return.
package uppercase

import (
	"context"
	"strings"

	"github.com/ironwave-io/dispatchd/internal/svc"
)

func init() {
	svc.Register("uppercase", func() svc.Service { return New() })
}

// Service implements svc.Service by upper-casing the request.
type Service struct{}

// New constructs an uppercase Service.
func New() *Service { return &Service{} }

// Descriptor returns the uppercase service's attributes.
func (Service) Descriptor() svc.Descriptor {
	return svc.Descriptor{
		Name:        "uppercase",
		Description: "Upper-cases the request.",
		Threads:     4,
		Groups:      []string{"text"},
		AllowBatch:  true,
	}
}

func (Service) Start(context.Context) error    { return nil }
func (Service) Shutdown(context.Context) error { return nil }

// Run upper-cases request.
func (Service) Run(ctx context.Context, request string) (any, error) {
	return strings.ToUpper(request), nil
}

// RunList upper-cases every request.
func (s Service) RunList(ctx context.Context, requests []string) ([]any, error) {
	out := make([]any, len(requests))
	for i, r := range requests {
		out[i] = strings.ToUpper(r)
	}
	return out, nil
}
