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

// Package dispatch implements the request/response correlation engine: the
// single/group/list entry points that submit a request to a service's
// worker pool, wait for (or serve from cache) its result, and assemble the
// {"server": {...}, "<service>": ...} response envelope.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lindb/common/pkg/logger"

	"github.com/ironwave-io/dispatchd/internal/core"
	"github.com/ironwave-io/dispatchd/internal/dispatcherr"
	"github.com/ironwave-io/dispatchd/internal/gc"
	"github.com/ironwave-io/dispatchd/internal/ledger"
	"github.com/ironwave-io/dispatchd/internal/registry"
	"github.com/ironwave-io/dispatchd/internal/supervisor"
	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

// Authorizer is the slice of the Authorization Manager the engine needs.
// Defined here rather than imported so dispatch does not depend on auth's
// token-file-loading concerns.
type Authorizer interface {
	Exists(token string) bool
	AuthorizeUser(token string, serviceID int) bool
	AuthorizeUserMultiple(token string, serviceIDs []int) map[int]bool
	AuthorizeAdmin(token string) bool
	AuthorizeSuperuser(token string) bool
}

// Config carries the tuning knobs the engine needs that are not specific to
// any one service.
type Config struct {
	MaxMessageSize  int
	MaxDatabaseSize int
	MaxResultAge    time.Duration
	KeySensitive    bool
}

// serviceRuntime bundles the per-service state the engine drives: its pool,
// pending ledger, correlator and result cache.
type serviceRuntime struct {
	pool       *workerpool.Pool
	ledger     *ledger.Ledger
	correlator *correlator
	cache      *resultCache
}

// Engine is the dispatch and correlation engine.
type Engine struct {
	reg     *registry.Registry
	auth    Authorizer
	term    *supervisor.Terminator
	collect *gc.Collector
	cfg     Config
	version string

	mu       sync.RWMutex
	services map[int]*serviceRuntime

	running    atomic.Bool
	reqCounter atomic.Uint32
	log        logger.Logger
}

// New constructs an Engine. Services are not started; call StartServices.
func New(reg *registry.Registry, auth Authorizer, term *supervisor.Terminator, collect *gc.Collector, cfg Config, version string) *Engine {
	return &Engine{
		reg:      reg,
		auth:     auth,
		term:     term,
		collect:  collect,
		cfg:      cfg,
		version:  version,
		services: make(map[int]*serviceRuntime),
		log:      logger.GetLogger("Dispatch", "Engine"),
	}
}

func (e *Engine) nextRequestID() uint32 {
	id := e.reqCounter.Inc()
	if id == 0 {
		id = e.reqCounter.Inc()
	}
	return id
}

// StartServices spawns a pool, ledger, cache and correlator for every
// registered service and arms supervision and GC for it. It is a no-op if
// already running.
func (e *Engine) StartServices(ctx context.Context, poolCfg func(id int) workerpool.Config) error {
	if !e.running.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ref := range e.reg.ListServices() {
		desc, _ := e.reg.Descriptor(ref.ID)
		svcImpl, _ := e.reg.Service(ref.ID)
		led := ledger.New()

		pool := workerpool.New(poolCfg(ref.ID), svcImpl, led, e.collect.Events())
		if err := pool.Start(ctx); err != nil {
			e.running.Store(false)
			return fmt.Errorf("dispatch: starting service %q: %w", desc.Name, err)
		}

		rt := &serviceRuntime{
			pool:       pool,
			ledger:     led,
			correlator: newCorrelator(pool, desc.Name),
			cache:      newResultCache(e.cfg.MaxDatabaseSize, e.cfg.MaxResultAge),
		}
		e.services[ref.ID] = rt
		e.collect.Register(ref.ID, led)

		if desc.TimeoutS > 0 {
			e.term.Watch(supervisor.ServiceTarget{
				ServiceID:   ref.ID,
				ServiceName: desc.Name,
				Pool:        pool,
				TimeoutS:    desc.TimeoutS,
				MaxTimeouts: desc.MaxTimeouts,
				DummyReply:  func(uint32) any { return dispatcherr.MsgServiceDisabled },
			})
		}
	}
	return nil
}

// StopServices shuts every service pool down, unwatches it from the
// supervisor, and leaves caches intact (they are cleared only on a full
// restart). Returns false if services were already stopped.
func (e *Engine) StopServices(ctx context.Context) bool {
	if !e.running.CompareAndSwap(true, false) {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for id, rt := range e.services {
		e.term.Unwatch(id)
		rt.pool.Stop(ctx, func(uint32) any { return dispatcherr.MsgServiceDisabled })
	}
	return true
}

// RestartServices stops then starts services again, clearing caches.
func (e *Engine) RestartServices(ctx context.Context, poolCfg func(id int) workerpool.Config) error {
	e.StopServices(ctx)
	e.mu.Lock()
	for id, rt := range e.services {
		rt.cache.Clear()
		rt.correlator.stop()
		e.collect.Unregister(id)
	}
	e.services = make(map[int]*serviceRuntime)
	e.mu.Unlock()
	return e.StartServices(ctx, poolCfg)
}

// Running reports whether services are currently dispatching requests.
func (e *Engine) Running() bool { return e.running.Load() }

func (e *Engine) runtime(serviceID int) (*serviceRuntime, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rt, ok := e.services[serviceID]
	return rt, ok
}

// InFlight reports whether requestID is currently checked out by a worker
// of serviceID, the shape gc.InFlightFunc needs.
func (e *Engine) InFlight(serviceID int, requestID uint32) bool {
	rt, ok := e.runtime(serviceID)
	if !ok {
		return false
	}
	return rt.pool.InFlight(requestID)
}

func validateRequest(request string, maxSize int) bool {
	if request == "" {
		return false
	}
	if maxSize > 0 && len(request) > maxSize {
		return false
	}
	return true
}

func parseServiceID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return id, true
}

// dispatchOne submits a single request to a service, serving from cache
// when possible, and returns its raw output.
func (e *Engine) dispatchOne(ctx context.Context, serviceID int, request string, caching bool) (any, *dispatcherr.Error) {
	rt, ok := e.runtime(serviceID)
	if !ok || !rt.pool.Running() {
		return nil, dispatcherr.New(dispatcherr.ServiceDisabledKind, "service is not running")
	}
	if caching {
		if v, ok := rt.cache.Get(request); ok {
			return v, nil
		}
	}
	reqID := e.nextRequestID()
	waitCh := rt.correlator.register(reqID)
	rt.pool.Submit(&core.Item{RequestID: reqID, Payload: request})

	out, derr := e.awaitResult(ctx, rt, reqID, waitCh)
	if derr != nil {
		rt.correlator.unregister(reqID)
		return nil, derr
	}
	wrapped := timestampedResult{Timestamp: time.Now(), Output: out}
	if caching {
		rt.cache.Put(request, wrapped)
	}
	return wrapped, nil
}

// awaitResult blocks for a service's response, periodically checking that
// the request is still pending in the ledger (so a request the garbage
// collector swept as abandoned fails fast rather than hanging forever).
// The check interval starts at 25ms and doubles up to a 500ms ceiling.
func (e *Engine) awaitResult(ctx context.Context, rt *serviceRuntime, reqID uint32, waitCh <-chan core.Result) (any, *dispatcherr.Error) {
	const (
		startInterval = 25 * time.Millisecond
		maxInterval   = 500 * time.Millisecond
	)
	interval := startInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case res := <-waitCh:
			return res.Output, nil
		case <-ctx.Done():
			return nil, dispatcherr.Wrap(dispatcherr.Correlation, dispatcherr.MsgIncompleteResult, ctx.Err())
		case <-timer.C:
			if !rt.ledger.Has(reqID) {
				return nil, dispatcherr.CorrelationErr()
			}
			interval *= 2
			if interval > maxInterval {
				interval = maxInterval
			}
			timer.Reset(interval)
		}
	}
}

// timestampedResult is what a service key maps to in the response envelope
// (§6): the output plus the instant it was produced. It is what the cache
// stores too, so a cache hit replays the original timestamp rather than a
// fresh one.
type timestampedResult struct {
	Timestamp time.Time `json:"timestamp"`
	Output    any       `json:"output"`
}

// responseSeconds is server.response: elapsed time since dispatch began,
// rounded to 3 decimals.
func responseSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

func serverBlock(state, message string, extra map[string]any) map[string]any {
	block := map[string]any{"state": state}
	if message != "" {
		block["message"] = message
	}
	for k, v := range extra {
		block[k] = v
	}
	return block
}

// GetService is the single-service, single-request API endpoint.
func (e *Engine) GetService(ctx context.Context, serviceIDStr, request, token string, caching bool) (map[string]any, *dispatcherr.Error) {
	if !e.running.Load() {
		return map[string]any{"server": serverBlock("ERROR", "Server is not running", map[string]any{"input": request, "service": serviceIDStr})},
			dispatcherr.New(dispatcherr.ServiceDisabledKind, "Server is not running")
	}
	if !validateRequest(request, e.cfg.MaxMessageSize) {
		return map[string]any{"server": serverBlock("ERROR", dispatcherr.MsgRequestValidationFailed, map[string]any{"input": request, "service": serviceIDStr})},
			dispatcherr.RequestErr(nil)
	}
	serviceID, ok := parseServiceID(serviceIDStr)
	if !ok {
		return map[string]any{"server": serverBlock("ERROR", "service_id must be integer", map[string]any{"input": request, "service": serviceIDStr})},
			dispatcherr.New(dispatcherr.Request, "service_id must be integer")
	}
	desc, ok := e.reg.Descriptor(serviceID)
	if !ok {
		return map[string]any{"server": serverBlock("ERROR", "Invalid service_id", map[string]any{"input": request, "service": serviceIDStr})},
			dispatcherr.New(dispatcherr.Request, "Invalid service_id")
	}
	if !e.auth.AuthorizeUser(token, serviceID) {
		return map[string]any{"server": serverBlock("ERROR", dispatcherr.MsgInsufficientPermissions, map[string]any{"input": request, "service_id": serviceID})},
			dispatcherr.AuthErr()
	}

	start := time.Now()
	out, derr := e.dispatchOne(ctx, serviceID, request, caching)
	if derr != nil {
		return map[string]any{"server": serverBlock("ERROR", derr.Message, map[string]any{
			"input": request, "service_id": serviceID, "response": responseSeconds(time.Since(start)),
		})}, derr
	}
	envelope := map[string]any{
		"server": serverBlock("OK", "", map[string]any{
			"input": request, "service_id": desc.ID, "service_name": desc.Name,
			"response": responseSeconds(time.Since(start)),
		}),
	}
	envelope[desc.Name] = out
	return envelope, nil
}

// GetGroup is the group-fanout, single-request API endpoint. Pure-digit
// group names are treated as a service id and redirected to GetService.
func (e *Engine) GetGroup(ctx context.Context, groupName, request, token string, caching bool) (map[string]any, *dispatcherr.Error) {
	if _, ok := parseServiceID(groupName); ok {
		return e.GetService(ctx, groupName, request, token, caching)
	}
	if !e.running.Load() {
		return map[string]any{"server": serverBlock("ERROR", "Server is not running", map[string]any{"input": request, "group": groupName})},
			dispatcherr.New(dispatcherr.ServiceDisabledKind, "Server is not running")
	}
	if !validateRequest(request, e.cfg.MaxMessageSize) {
		return map[string]any{"server": serverBlock("ERROR", dispatcherr.MsgRequestValidationFailed, map[string]any{"input": request, "group": groupName})},
			dispatcherr.RequestErr(nil)
	}
	refs, err := e.reg.ResolveGroup(groupName, e.cfg.KeySensitive)
	if err != nil {
		msg := fmt.Sprintf("Group name '%s' is not implemented or is invalid", groupName)
		return map[string]any{"server": serverBlock("ERROR", msg, map[string]any{"input": request, "group": groupName})},
			dispatcherr.New(dispatcherr.Request, msg)
	}

	ids := make([]int, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	authorized := e.auth.AuthorizeUserMultiple(token, ids)
	filtered := refs[:0:0]
	for _, r := range refs {
		if authorized[r.ID] {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return map[string]any{"server": serverBlock("ERROR", dispatcherr.MsgInsufficientPermissions, map[string]any{"input": request, "group": groupName})},
			dispatcherr.AuthErr()
	}

	serviceIDs := make([]int, len(filtered))
	serviceNames := make([]string, len(filtered))
	for i, r := range filtered {
		serviceIDs[i] = r.ID
		serviceNames[i] = r.Name
	}
	envelope := map[string]any{
		"server": serverBlock("OK", "", map[string]any{
			"input": request, "group": groupName,
			"service_ids": serviceIDs, "service_names": serviceNames,
		}),
	}

	start := time.Now()
	type outcome struct {
		name string
		out  any
		err  *dispatcherr.Error
	}
	results := make([]outcome, len(filtered))
	var wg sync.WaitGroup
	for i, ref := range filtered {
		wg.Add(1)
		go func(i int, ref registry.ServiceRef) {
			defer wg.Done()
			out, derr := e.dispatchOne(ctx, ref.ID, request, caching)
			results[i] = outcome{name: ref.Name, out: out, err: derr}
		}(i, ref)
	}
	wg.Wait()

	var firstErr *dispatcherr.Error
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			envelope["server"].(map[string]any)["state"] = "ERROR"
			envelope["server"].(map[string]any)["message"] = r.err.Message
			continue
		}
		envelope[r.name] = r.out
	}
	envelope["server"].(map[string]any)["response"] = responseSeconds(time.Since(start))
	return envelope, firstErr
}

// dispatchList submits the unique, not-yet-cached subset of requests as a
// single batch to a service and maps results back onto every (possibly
// duplicated) input request in order.
func (e *Engine) dispatchList(ctx context.Context, serviceID int, requests []string, caching bool) ([]any, *dispatcherr.Error) {
	rt, ok := e.runtime(serviceID)
	if !ok || !rt.pool.Running() {
		return nil, dispatcherr.New(dispatcherr.ServiceDisabledKind, "service is not running")
	}

	unique := make([]string, 0, len(requests))
	dupIndex := make([]int, len(requests))
	seen := make(map[string]int, len(requests))
	for i, r := range requests {
		if idx, ok := seen[r]; ok {
			dupIndex[i] = idx
			continue
		}
		idx := len(unique)
		unique = append(unique, r)
		seen[r] = idx
		dupIndex[i] = idx
	}

	results := make([]any, len(unique))
	var toRunIdx []int
	for i, r := range unique {
		if caching {
			if v, ok := rt.cache.Get(r); ok {
				results[i] = v
				continue
			}
		}
		toRunIdx = append(toRunIdx, i)
	}

	if len(toRunIdx) > 0 {
		toRun := make([]string, len(toRunIdx))
		for j, idx := range toRunIdx {
			toRun[j] = unique[idx]
		}
		reqID := e.nextRequestID()
		waitCh := rt.correlator.register(reqID)
		rt.pool.Submit(&core.Item{RequestID: reqID, Payload: toRun})

		out, derr := e.awaitResult(ctx, rt, reqID, waitCh)
		if derr != nil {
			rt.correlator.unregister(reqID)
			return nil, derr
		}
		outs, ok := out.([]any)
		if !ok || len(outs) != len(toRun) {
			return nil, dispatcherr.New(dispatcherr.ServiceRuntime, "run_list returned a mismatched number of outputs")
		}
		for j, idx := range toRunIdx {
			wrapped := timestampedResult{Timestamp: time.Now(), Output: outs[j]}
			results[idx] = wrapped
			if caching {
				rt.cache.Put(unique[idx], wrapped)
			}
		}
	}

	response := make([]any, len(requests))
	for i := range requests {
		response[i] = results[dupIndex[i]]
	}
	return response, nil
}

// GetServiceList is the single-service, batched-request API endpoint.
func (e *Engine) GetServiceList(ctx context.Context, serviceIDStr string, requests []string, token string, caching bool) (map[string]any, *dispatcherr.Error) {
	if !e.running.Load() {
		return map[string]any{"server": serverBlock("ERROR", "Server is not running", map[string]any{"input": requests, "service": serviceIDStr})},
			dispatcherr.New(dispatcherr.ServiceDisabledKind, "Server is not running")
	}
	serviceID, ok := parseServiceID(serviceIDStr)
	if !ok {
		return map[string]any{"server": serverBlock("ERROR", "service_id must be integer", map[string]any{"input": requests, "service": serviceIDStr})},
			dispatcherr.New(dispatcherr.Request, "service_id must be integer")
	}
	desc, ok := e.reg.Descriptor(serviceID)
	if !ok {
		return map[string]any{"server": serverBlock("ERROR", "Invalid service_id", map[string]any{"input": requests, "service": serviceIDStr})},
			dispatcherr.New(dispatcherr.Request, "Invalid service_id")
	}
	if !e.auth.AuthorizeUser(token, serviceID) {
		return map[string]any{"server": serverBlock("ERROR", dispatcherr.MsgInsufficientPermissions, map[string]any{"input": requests, "service_id": serviceID})},
			dispatcherr.AuthErr()
	}
	for _, r := range requests {
		if !validateRequest(r, e.cfg.MaxMessageSize) {
			return map[string]any{"server": serverBlock("ERROR", dispatcherr.MsgRequestValidationFailed, map[string]any{"input": requests, "service_id": serviceID})},
				dispatcherr.RequestErr(nil)
		}
	}

	start := time.Now()
	response, derr := e.dispatchList(ctx, serviceID, requests, caching)
	if derr != nil {
		return map[string]any{"server": serverBlock("ERROR", derr.Message, map[string]any{
			"input": requests, "service_id": serviceID, "response": responseSeconds(time.Since(start)),
		})}, derr
	}
	envelope := map[string]any{
		"server": serverBlock("OK", "", map[string]any{
			"input": requests, "service_id": desc.ID, "service_name": desc.Name,
			"response": responseSeconds(time.Since(start)),
		}),
	}
	envelope[desc.Name] = response
	return envelope, nil
}

// GetGroupList is the group-fanout, batched-request API endpoint.
func (e *Engine) GetGroupList(ctx context.Context, groupName string, requests []string, token string, caching bool) (map[string]any, *dispatcherr.Error) {
	if _, ok := parseServiceID(groupName); ok {
		return e.GetServiceList(ctx, groupName, requests, token, caching)
	}
	if !e.running.Load() {
		return map[string]any{"server": serverBlock("ERROR", "Server is not running", map[string]any{"input": requests, "group": groupName})},
			dispatcherr.New(dispatcherr.ServiceDisabledKind, "Server is not running")
	}
	refs, err := e.reg.ResolveGroup(groupName, e.cfg.KeySensitive)
	if err != nil {
		msg := fmt.Sprintf("Group name '%s' is not implemented or is invalid", groupName)
		return map[string]any{"server": serverBlock("ERROR", msg, map[string]any{"input": requests, "group": groupName})},
			dispatcherr.New(dispatcherr.Request, msg)
	}
	ids := make([]int, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	authorized := e.auth.AuthorizeUserMultiple(token, ids)
	filtered := refs[:0:0]
	for _, r := range refs {
		if authorized[r.ID] {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return map[string]any{"server": serverBlock("ERROR", dispatcherr.MsgInsufficientPermissions, map[string]any{"input": requests, "group": groupName})},
			dispatcherr.AuthErr()
	}
	for _, r := range requests {
		if !validateRequest(r, e.cfg.MaxMessageSize) {
			return map[string]any{"server": serverBlock("ERROR", dispatcherr.MsgRequestValidationFailed, map[string]any{"input": requests, "group": groupName})},
				dispatcherr.RequestErr(nil)
		}
	}

	serviceIDs := make([]int, len(filtered))
	serviceNames := make([]string, len(filtered))
	for i, r := range filtered {
		serviceIDs[i] = r.ID
		serviceNames[i] = r.Name
	}
	envelope := map[string]any{
		"server": serverBlock("OK", "", map[string]any{
			"input": requests, "group": groupName,
			"service_ids": serviceIDs, "service_names": serviceNames,
		}),
	}

	start := time.Now()
	type outcome struct {
		name string
		out  []any
		err  *dispatcherr.Error
	}
	results := make([]outcome, len(filtered))
	var wg sync.WaitGroup
	for i, ref := range filtered {
		wg.Add(1)
		go func(i int, ref registry.ServiceRef) {
			defer wg.Done()
			out, derr := e.dispatchList(ctx, ref.ID, requests, caching)
			results[i] = outcome{name: ref.Name, out: out, err: derr}
		}(i, ref)
	}
	wg.Wait()

	var firstErr *dispatcherr.Error
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			envelope["server"].(map[string]any)["state"] = "ERROR"
			envelope["server"].(map[string]any)["message"] = r.err.Message
			continue
		}
		envelope[r.name] = r.out
	}
	envelope["server"].(map[string]any)["response"] = responseSeconds(time.Since(start))
	return envelope, firstErr
}

// ReloadTokens swaps in a freshly loaded Authorizer, e.g. after the token
// file changed on disk. The caller is responsible for doing the actual load
// and validation; this just performs the atomic swap.
func (e *Engine) ReloadTokens(auth Authorizer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auth = auth
}

// ServicesInfo returns every registered (id, name) pair.
func (e *Engine) ServicesInfo() []registry.ServiceRef { return e.reg.ListServices() }

// ServicesInfoDetailed returns every registered service's full detail
// (id, name, description, groups).
func (e *Engine) ServicesInfoDetailed() []registry.ServiceDetail { return e.reg.ListServicesDetailed() }

// GroupsInfo returns every group mapped to its member services.
func (e *Engine) GroupsInfo() map[string][]registry.ServiceRef { return e.reg.Groups() }

// VersionInfo returns the running application version.
func (e *Engine) VersionInfo() map[string]string { return map[string]string{"version": e.version} }

// ServiceMetrics is a point-in-time view of one running service, shaped for
// a metrics collector rather than the admin HTTP response.
type ServiceMetrics struct {
	ID      int
	Name    string
	Running bool
	Workers int
	Pending int
	Cached  int
}

// Snapshot returns a ServiceMetrics for every registered service.
func (e *Engine) Snapshot() []ServiceMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	refs := e.reg.ListServices()
	out := make([]ServiceMetrics, len(refs))
	for i, r := range refs {
		m := ServiceMetrics{ID: r.ID, Name: r.Name}
		if rt, ok := e.services[r.ID]; ok {
			m.Running = rt.pool.Running()
			m.Workers = rt.pool.WorkerCount()
			m.Pending = rt.ledger.Len()
			m.Cached = rt.cache.Len()
		}
		out[i] = m
	}
	return out
}

// ServerInfo returns static, running and cache/ledger size info for every
// registered service, for the admin server-info endpoint.
func (e *Engine) ServerInfo() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	details := e.reg.ListServicesDetailed()
	info := make([]map[string]any, len(details))
	running := make([]map[string]any, len(details))
	for i, d := range details {
		info[i] = map[string]any{
			"id": d.ID, "name": d.Name, "description": d.Description, "groups": d.Groups,
		}
		rt, ok := e.services[d.ID]
		running[i] = map[string]any{
			"id": d.ID,
			"running": ok && rt.pool.Running(),
		}
		if ok {
			running[i]["workers"] = rt.pool.WorkerCount()
			running[i]["pending"] = rt.ledger.Len()
			running[i]["cached"] = rt.cache.Len()
		}
	}
	return map[string]any{"info": info, "running": running}
}
