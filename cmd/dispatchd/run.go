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

package main

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/lindb/common/pkg/logger"

	"github.com/ironwave-io/dispatchd/config"
	"github.com/ironwave-io/dispatchd/internal/auth"
	"github.com/ironwave-io/dispatchd/internal/dispatch"
	"github.com/ironwave-io/dispatchd/internal/gc"
	"github.com/ironwave-io/dispatchd/internal/httpapi"
	"github.com/ironwave-io/dispatchd/internal/monitoring"
	"github.com/ironwave-io/dispatchd/internal/registry"
	"github.com/ironwave-io/dispatchd/internal/supervisor"
	"github.com/ironwave-io/dispatchd/internal/svc"
	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

// version is stamped by a release build's -ldflags; left as "dev" otherwise.
var version = "dev"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "load the configured services and serve the dispatch API",
	RunE:  runServer,
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.Logging, "dispatchd.log"); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.GetLogger("CMD", "Run")

	if cfg.HTTPWorkers > 0 {
		runtime.GOMAXPROCS(cfg.HTTPWorkers)
	}

	services, err := resolveServices(cfg.Services)
	if err != nil {
		return err
	}

	reg, err := registry.New(services, registry.Config{
		DisableAllGroups:  cfg.DisableAllGroups,
		DisableNameGroups: cfg.DisableNameGroups,
		KeySensitive:      cfg.KeySensitivity,
	})
	if err != nil {
		return fmt.Errorf("building registry: %w", err)
	}

	// An empty token_regex disables format checking; auth would substitute
	// its own default pattern for an empty one, so pass a match-all instead.
	tokenPattern := cfg.TokenRegex
	if tokenPattern == "" {
		tokenPattern = ".*"
	}
	tokenMgr, err := auth.LoadFile(cfg.TokensPath, auth.Options{
		DisableBackups: !cfg.TokensBackups,
		TokenPattern:   tokenPattern,
		BypassUser:     cfg.BypassUserAuth,
		BypassAdmin:    cfg.BypassAdminAuth,
		Registry:       reg,
	})
	if err != nil {
		return fmt.Errorf("loading tokens: %w", err)
	}

	// engine is assigned once dispatch.New returns; the GC collector is
	// built first but its InFlight callback only needs to resolve once a
	// request is actually in flight, which cannot happen before then.
	var engine *dispatch.Engine
	collector := gc.New(time.Duration(cfg.MaxServiceRunTime), func(serviceID int, requestID uint32) bool {
		if engine == nil {
			return false
		}
		return engine.InFlight(serviceID, requestID)
	})

	term := supervisor.New(time.Duration(cfg.TerminatorIdleCycle))

	engine = dispatch.New(reg, tokenMgr, term, collector, dispatch.Config{
		MaxMessageSize:  cfg.MaxMessageSize,
		MaxDatabaseSize: cfg.MaxDatabaseSize,
		MaxResultAge:    time.Duration(cfg.MaxResultAge),
		KeySensitive:    cfg.KeySensitivity,
	}, version)

	metrics := monitoring.NewCollector(engine, collector)

	poolCfg := func(id int) workerpool.Config {
		desc, _ := reg.Descriptor(id)
		return workerpool.Config{
			ServiceID:              id,
			ServiceName:            desc.Name,
			Threads:                desc.Threads,
			Processes:              desc.Processes,
			AllowBatch:             desc.AllowBatch,
			ServiceStartTimeout:    time.Duration(cfg.ServiceStartTimeout),
			ServiceShutdownTimeout: time.Duration(cfg.ServiceShutdownTimeout),
			ThProcResponseTime:     time.Duration(cfg.ThProcResponseTime),
			WorkerSubcommand:       workerSubcommandName,
		}
	}

	ctx := newCtxWithSignals()

	go collector.Run()
	go term.Run(ctx)
	if err := engine.StartServices(ctx, poolCfg); err != nil {
		return fmt.Errorf("starting services: %w", err)
	}

	server := httpapi.New(engine, tokenMgr, httpapi.Options{
		Transport: httpapi.TokenTransport{
			Header:    cfg.AllowHeaderToken,
			Parameter: cfg.AllowParameterToken,
			Cookie:    cfg.AllowCookieToken,
		},
		DisableConfigEndpoints: cfg.DisableConfigEndpoints,
		PoolConfig:             poolCfg,
		Metrics:                metrics,
	})
	router := server.Router()

	port := cfg.Port
	if cfg.UseSSL {
		port = cfg.SSLPort
	}
	addr := fmt.Sprintf("%s:%d", cfg.ListenAddr, port)
	httpSrv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", addr))
		var err error
		if cfg.UseSSL {
			err = httpSrv.ListenAndServeTLS(cfg.SSLCert, cfg.SSLKey)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server exited", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	engine.StopServices(shutdownCtx)
	term.Stop()
	collector.Stop()
	return nil
}

// resolveServices builds one Service instance per configured name, matched
// against every blank-imported plugin package's init() registration. An
// empty list activates every registered service.
func resolveServices(names []string) ([]svc.Service, error) {
	factories := svc.Factories()
	if len(names) == 0 {
		out := make([]svc.Service, 0, len(factories))
		for _, factory := range factories {
			out = append(out, factory())
		}
		return out, nil
	}
	out := make([]svc.Service, 0, len(names))
	for _, name := range names {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("run: unknown service %q", name)
		}
		out = append(out, factory())
	}
	return out, nil
}

