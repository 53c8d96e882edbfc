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

// Package dnsresolve actively resolves a hostname through the server's
// configured resolver, the Go equivalent of the source's ResolveDomain
// sample service (which used socket.getaddrinfo directly rather than
// calling out to a third-party API, making it the one sample service that
// ports cleanly without needing an API key).
package dnsresolve

import (
	"context"
	"net"

	"github.com/ironwave-io/dispatchd/internal/svc"
)

func init() {
	svc.Register("dnsresolve", func() svc.Service { return New() })
}

// Service implements svc.Service by resolving request as a hostname.
type Service struct {
	resolver *net.Resolver
}

// New constructs a dnsresolve Service using the system resolver.
func New() *Service { return &Service{resolver: net.DefaultResolver} }

// Descriptor returns the dnsresolve service's attributes.
func (Service) Descriptor() svc.Descriptor {
	return svc.Descriptor{
		Name:        "dnsresolve",
		Description: "Actively tries to resolve the request as a hostname via the server's DNS resolver.",
		Threads:     5,
		Groups:      []string{"domain"},
		TimeoutS:    2,
		MaxTimeouts: 2,
		AllowBatch:  true,
	}
}

func (Service) Start(context.Context) error    { return nil }
func (Service) Shutdown(context.Context) error { return nil }

// Run resolves request and returns every address found.
func (s *Service) Run(ctx context.Context, request string) (any, error) {
	addrs, err := s.resolver.LookupHost(ctx, request)
	if err != nil {
		return nil, err
	}
	return map[string]any{request: addrs}, nil
}

// RunList resolves every request in the batch.
func (s *Service) RunList(ctx context.Context, requests []string) ([]any, error) {
	out := make([]any, len(requests))
	for i, r := range requests {
		v, err := s.Run(ctx, r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
