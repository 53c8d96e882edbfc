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

// Package httpapi wires the dispatch engine and authorization manager
// onto a gin HTTP server, exposing the /api/v1 surface: service/group
// discovery, admin lifecycle and token management, and single/list
// request dispatch.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lindb/common/pkg/logger"

	"github.com/ironwave-io/dispatchd/internal/auth"
	"github.com/ironwave-io/dispatchd/internal/dispatch"
	"github.com/ironwave-io/dispatchd/internal/monitoring"
	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

// APIVersion1Path is the prefix every route is registered under.
const APIVersion1Path = "/api/v1"

// TokenManager is the slice of auth.Manager the HTTP API depends on,
// declared locally so this package does not otherwise couple to auth's
// file-loading concerns.
type TokenManager interface {
	dispatch.Authorizer
	GetUserAuthorized(token string, serviceIDs []int) []int
	GetDictTokens() auth.Tokens
	AddAdmin(token string) error
	RemoveAdmin(token string)
	AddSuperuser(token string) error
	RemoveSuperuser(token string)
	AddGroup(name string, serviceIDs []int) error
	RemoveGroup(name string) error
	AddUser(token string, refs auth.UserServiceRef) error
	RemoveUser(token string)
	Reload() error
	Save(now time.Time) error
}

// TokenTransport controls which carriers the server accepts a token from.
type TokenTransport struct {
	Header    bool
	Parameter bool
	Cookie    bool
}

// Options configures a Server.
type Options struct {
	Transport              TokenTransport
	DisableConfigEndpoints bool
	EnablePprof            bool
	EnableCORS             bool
	PoolConfig             func(serviceID int) workerpool.Config
	Now                    func() time.Time
	// Metrics, if set, is served at GET /metrics outside the /api/v1 group
	// and outside token authentication, matching Prometheus's usual scrape
	// contract.
	Metrics *monitoring.Collector
}

// Server holds the dependencies every handler needs.
type Server struct {
	engine  *dispatch.Engine
	tokens  TokenManager
	opts    Options
	log     logger.Logger
}

// New builds a Server. Call Router to obtain the gin.Engine to serve.
func New(engine *dispatch.Engine, tokens TokenManager, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		engine: engine,
		tokens: tokens,
		opts:   opts,
		log:    logger.GetLogger("HTTPAPI", "Server"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.opts.EnableCORS {
		r.Use(cors.Default())
	}
	if s.opts.EnablePprof {
		pprof.Register(r)
	}
	if s.opts.Metrics != nil {
		handler := promhttp.HandlerFor(s.opts.Metrics.Registry(), promhttp.HandlerOpts{})
		r.GET("/metrics", gin.WrapH(handler))
	}

	v1 := r.Group(APIVersion1Path)
	v1.Use(s.tokenExtractor())

	info := v1.Group("/server/info")
	info.GET("/services/", s.handleServicesInfo)
	info.GET("/services2/", s.handleServicesInfoDetailed)
	info.GET("/groups/", s.handleGroupsInfo)
	info.GET("/tokens/", s.requireAdmin(s.handleTokensInfo))
	info.GET("/server/", s.requireAdmin(s.handleServerInfo))
	info.GET("/version/", s.requireKnownToken(s.handleVersionInfo))

	lifecycle := v1.Group("/server")
	lifecycle.GET("/start/", s.requireAdmin(s.handleStart))
	lifecycle.GET("/stop/", s.requireAdmin(s.handleStop))
	lifecycle.GET("/restart/", s.requireAdmin(s.handleRestart))
	lifecycle.GET("/reload_tokens/", s.requireAdmin(s.handleReloadTokens))
	lifecycle.PUT("/tokens/", s.requireAdmin(s.requireConfigEndpointsEnabled(s.handlePutTokens)))
	lifecycle.DELETE("/tokens/", s.requireAdmin(s.requireConfigEndpointsEnabled(s.handleDeleteTokens)))

	// The dispatch endpoints take an arbitrary {id_or_group}/{request} path
	// shape that gin's radix-tree router cannot register as a sibling of
	// the literal /server/... routes above without conflicting on the
	// first path segment. NoRoute runs only once nothing else matched, so
	// it is used as the dispatch catch-all instead, with method dispatch
	// done inside the handler (grounded on the same "thin handler, engine
	// does the work" shape as the routes above).
	tokenExtractor := s.tokenExtractor()
	r.NoRoute(func(c *gin.Context) {
		tokenExtractor(c)
		if c.IsAborted() {
			return
		}
		s.handleDispatch(c)
	})

	return r
}

// StartBackground starts the dispatch engine's services with the pool
// configuration from Options.PoolConfig.
func (s *Server) StartBackground(ctx context.Context) error {
	return s.engine.StartServices(ctx, s.opts.PoolConfig)
}
