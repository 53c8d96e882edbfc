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

package monitoring

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ironwave-io/dispatchd/internal/dispatch"
	"github.com/ironwave-io/dispatchd/internal/gc"
	"github.com/ironwave-io/dispatchd/internal/registry"
	"github.com/ironwave-io/dispatchd/internal/supervisor"
	"github.com/ironwave-io/dispatchd/internal/svc"
	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

type echoService struct{}

func (echoService) Descriptor() svc.Descriptor {
	return svc.Descriptor{Name: "echo", Threads: 1}
}
func (echoService) Start(context.Context) error                    { return nil }
func (echoService) Shutdown(context.Context) error                  { return nil }
func (echoService) Run(ctx context.Context, r string) (any, error) { return r, nil }
func (s echoService) RunList(ctx context.Context, rs []string) ([]any, error) {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r
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

func TestCollector_ExportsServiceAndGCMetrics(t *testing.T) {
	reg, err := registry.New([]svc.Service{echoService{}}, registry.Config{})
	require.NoError(t, err)

	collector := gc.New(time.Minute, nil)
	go collector.Run()
	defer collector.Stop()
	term := supervisor.New(time.Hour)

	engine := dispatch.New(reg, allowAllAuth{}, term, collector, dispatch.Config{
		MaxMessageSize:  1024,
		MaxDatabaseSize: 100,
		MaxResultAge:    time.Minute,
	}, "1.0.0-test")
	require.NoError(t, engine.StartServices(context.Background(), func(id int) workerpool.Config {
		return workerpool.Config{
			ServiceID: id, ServiceName: "echo", Threads: 1,
			ServiceStartTimeout: time.Second, ServiceShutdownTimeout: time.Second,
		}
	}))
	defer engine.StopServices(context.Background())

	_, derr := engine.GetService(context.Background(), "0", "hi", "tok", true)
	require.Nil(t, derr)

	mc := NewCollector(engine, collector)
	reg2 := mc.Registry()

	count, err := testutil.GatherAndCount(reg2,
		"dispatchd_service_workers", "dispatchd_service_cached_results",
		"dispatchd_gc_sweeps_total", "dispatchd_gc_evicted_total")
	require.NoError(t, err)
	require.Equal(t, 4, count)

	expected := `
# HELP dispatchd_service_cached_results Number of cached results held for a service.
# TYPE dispatchd_service_cached_results gauge
dispatchd_service_cached_results{service_id="0",service_name="echo"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg2, strings.NewReader(expected), "dispatchd_service_cached_results"))
}
