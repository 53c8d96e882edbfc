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

// Package sleepy is a deliberately stallable service for exercising the
// supervisor's timeout/restart path and the dummy-mode fallback once
// max_timeouts is exceeded: the request is the number of seconds to sleep
// before replying.
package sleepy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ironwave-io/dispatchd/internal/svc"
)

func init() {
	svc.Register("sleepy", func() svc.Service { return New() })
}

// Service implements svc.Service by sleeping for request seconds.
type Service struct{}

// New constructs a sleepy Service.
func New() *Service { return &Service{} }

// Descriptor returns the sleepy service's attributes. TimeoutS and
// MaxTimeouts are set so a slow request actually exercises the supervisor
// instead of blocking the pool forever.
func (Service) Descriptor() svc.Descriptor {
	return svc.Descriptor{
		Name:        "sleepy",
		Description: "Sleeps for request seconds before replying; used to exercise stall handling.",
		Threads:     1,
		Groups:      []string{"diagnostic"},
		TimeoutS:    2,
		MaxTimeouts: 3,
	}
}

func (Service) Start(context.Context) error    { return nil }
func (Service) Shutdown(context.Context) error { return nil }

// Run sleeps for the requested number of seconds, honoring cancellation.
func (Service) Run(ctx context.Context, request string) (any, error) {
	seconds, err := strconv.ParseFloat(request, 64)
	if err != nil {
		return nil, fmt.Errorf("sleepy: request must be a number of seconds, got %q", request)
	}
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return fmt.Sprintf("slept %gs", seconds), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RunList is unused; AllowBatch is left false so the dispatcher never calls it.
func (s Service) RunList(ctx context.Context, requests []string) ([]any, error) {
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
