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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwave-io/dispatchd/internal/dispatcherr"
	"github.com/ironwave-io/dispatchd/internal/gc"
	"github.com/ironwave-io/dispatchd/internal/registry"
	"github.com/ironwave-io/dispatchd/internal/supervisor"
	"github.com/ironwave-io/dispatchd/internal/svc"
	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

type upperService struct{}

func (upperService) Descriptor() svc.Descriptor {
	return svc.Descriptor{Name: "upper", Threads: 1, Groups: []string{"text"}}
}
func (upperService) Start(context.Context) error    { return nil }
func (upperService) Shutdown(context.Context) error { return nil }
func (upperService) Run(ctx context.Context, r string) (any, error) {
	out := ""
	for _, c := range r {
		if c >= 'a' && c <= 'z' {
			c -= 32
		}
		out += string(c)
	}
	return out, nil
}
func (s upperService) RunList(ctx context.Context, rs []string) ([]any, error) {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i], _ = s.Run(ctx, r)
	}
	return out, nil
}

type allowAllAuth struct{}

func (allowAllAuth) Exists(string) bool             { return true }
func (allowAllAuth) AuthorizeUser(string, int) bool { return true }
func (allowAllAuth) AuthorizeUserMultiple(_ string, ids []int) map[int]bool {
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
func (allowAllAuth) AuthorizeAdmin(string) bool     { return true }
func (allowAllAuth) AuthorizeSuperuser(string) bool { return true }

func newTestEngine(t *testing.T) (*Engine, func()) {
	t.Helper()
	reg, err := registry.New([]svc.Service{upperService{}}, registry.Config{})
	require.NoError(t, err)

	collector := gc.New(time.Minute, nil)
	go collector.Run()
	term := supervisor.New(time.Hour)

	e := New(reg, allowAllAuth{}, term, collector, Config{
		MaxMessageSize:  1024,
		MaxDatabaseSize: 100,
		MaxResultAge:    time.Minute,
	}, "1.0.0")

	require.NoError(t, e.StartServices(context.Background(), func(id int) workerpool.Config {
		return workerpool.Config{
			ServiceID: id, ServiceName: "upper", Threads: 1,
			ServiceStartTimeout: time.Second, ServiceShutdownTimeout: time.Second,
		}
	}))

	return e, func() {
		e.StopServices(context.Background())
		collector.Stop()
	}
}

func TestEngine_GetService(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	out, derr := e.GetService(context.Background(), "0", "hello", "tok", true)
	require.Nil(t, derr)
	server := out["server"].(map[string]any)
	assert.Equal(t, "OK", server["state"])
	assert.GreaterOrEqual(t, server["response"], float64(0))
	result := out["upper"].(timestampedResult)
	assert.Equal(t, "HELLO", result.Output)
	assert.False(t, result.Timestamp.IsZero())
}

func TestEngine_GetService_CachesResult(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	_, derr := e.GetService(context.Background(), "0", "cache-me", "tok", true)
	require.Nil(t, derr)

	rt, ok := e.runtime(0)
	require.True(t, ok)
	assert.Equal(t, 1, rt.cache.Len())
}

func TestEngine_GetGroup_ByName(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	out, derr := e.GetGroup(context.Background(), "text", "abc", "tok", true)
	require.Nil(t, derr)
	result := out["upper"].(timestampedResult)
	assert.Equal(t, "ABC", result.Output)
}

func TestEngine_GetServiceList_DedupsRequests(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	out, derr := e.GetServiceList(context.Background(), "0", []string{"a", "b", "a"}, "tok", true)
	require.Nil(t, derr)
	resp, ok := out["upper"].([]any)
	require.True(t, ok)
	require.Len(t, resp, 3)
	assert.Equal(t, "A", resp[0].(timestampedResult).Output)
	assert.Equal(t, "B", resp[1].(timestampedResult).Output)
	assert.Equal(t, "A", resp[2].(timestampedResult).Output)
}

func TestEngine_Snapshot(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	_, derr := e.GetService(context.Background(), "0", "abc", "tok", true)
	require.Nil(t, derr)

	snap := e.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "upper", snap[0].Name)
	assert.True(t, snap[0].Running)
	assert.Equal(t, 1, snap[0].Workers)
	assert.Equal(t, 1, snap[0].Cached)
}

func TestEngine_InFlight_FalseForUnknownService(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	assert.False(t, e.InFlight(99, 1))
}

func TestEngine_GetService_InvalidServiceID(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	out, derr := e.GetService(context.Background(), "99", "x", "tok", true)
	require.NotNil(t, derr)
	assert.Equal(t, "ERROR", out["server"].(map[string]any)["state"])
}

func TestEngine_GetService_RejectsEmptyRequest(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	_, derr := e.GetService(context.Background(), "0", "", "tok", true)
	require.NotNil(t, derr)
	assert.Equal(t, dispatcherr.Request, derr.Kind)
}
