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

package workerpool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/ironwave-io/dispatchd/internal/svc"
)

// executor is the isolation-domain abstraction named in the design notes: a
// worker's loop is identical whether the underlying service call happens
// in-process (a goroutine, for thread-declared workers) or out-of-process
// (a forked child, for process-declared workers). Only RunOne/RunList/Close
// differ between the two.
type executor interface {
	RunOne(ctx context.Context, request string) (any, error)
	RunList(ctx context.Context, requests []string) ([]any, error)
	Close() error
}

// goroutineExecutor calls the hosted service directly in the worker's own
// goroutine. This is the "threads" isolation domain.
type goroutineExecutor struct {
	svc svc.Service
}

func newGoroutineExecutor(s svc.Service) *goroutineExecutor {
	return &goroutineExecutor{svc: s}
}

func (g *goroutineExecutor) RunOne(ctx context.Context, request string) (any, error) {
	return g.svc.Run(ctx, request)
}

func (g *goroutineExecutor) RunList(ctx context.Context, requests []string) ([]any, error) {
	return g.svc.RunList(ctx, requests)
}

func (g *goroutineExecutor) Close() error { return nil }

// processExecutor runs the service inside a forked child process (this same
// binary, re-invoked with the hidden worker subcommand) and exchanges
// newline-delimited JSON requests/responses over the child's stdin/stdout.
// This is the "processes" isolation domain, used for services that declare
// themselves not thread-safe.
type processExecutor struct {
	cmd    *exec.Cmd
	stdin  *bufio.Writer
	stdout *bufio.Reader
}

type procRequest struct {
	List []string `json:"list,omitempty"`
	One  string   `json:"one,omitempty"`
	Kind string   `json:"kind"`
}

type procResponse struct {
	One     any    `json:"one,omitempty"`
	List    []any  `json:"list,omitempty"`
	ErrText string `json:"err,omitempty"`
}

// newProcessExecutor spawns the subprocess worker for serviceName. workerArg
// is the hidden cobra subcommand the re-executed binary dispatches on.
func newProcessExecutor(ctx context.Context, workerArg, serviceName string) (*processExecutor, error) {
	cmd := exec.CommandContext(ctx, os.Args[0], workerArg, serviceName)
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processExecutor{
		cmd:    cmd,
		stdin:  bufio.NewWriter(stdinPipe),
		stdout: bufio.NewReader(stdoutPipe),
	}, nil
}

func (p *processExecutor) roundTrip(req procRequest) (procResponse, error) {
	var resp procResponse
	enc := json.NewEncoder(p.stdin)
	if err := enc.Encode(req); err != nil {
		return resp, err
	}
	if err := p.stdin.Flush(); err != nil {
		return resp, err
	}
	line, err := p.stdout.ReadBytes('\n')
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return resp, err
	}
	if resp.ErrText != "" {
		return resp, fmt.Errorf("%s", resp.ErrText)
	}
	return resp, nil
}

func (p *processExecutor) RunOne(_ context.Context, request string) (any, error) {
	resp, err := p.roundTrip(procRequest{Kind: "one", One: request})
	if err != nil {
		return nil, err
	}
	return resp.One, nil
}

func (p *processExecutor) RunList(_ context.Context, requests []string) ([]any, error) {
	resp, err := p.roundTrip(procRequest{Kind: "list", List: requests})
	if err != nil {
		return nil, err
	}
	return resp.List, nil
}

func (p *processExecutor) Close() error {
	_ = p.cmd.Process.Kill()
	return p.cmd.Wait()
}
