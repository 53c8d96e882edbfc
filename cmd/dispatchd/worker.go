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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironwave-io/dispatchd/internal/svc"
)

// workerSubcommandName is the hidden subcommand internal/workerpool re-execs
// this same binary with for a "processes" isolation-domain worker. It must
// match the Kind/One/List/ErrText wire shape processExecutor speaks.
const workerSubcommandName = "__worker"

var workerCmd = &cobra.Command{
	Use:    workerSubcommandName + " <service>",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runWorker,
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

// runWorker is the child-process side of the re-exec protocol: it hosts one
// service, reads newline-delimited procRequest JSON from stdin, and writes
// procResponse JSON back to stdout, one line per request.
func runWorker(_ *cobra.Command, args []string) error {
	factory, ok := svc.Factories()[args[0]]
	if !ok {
		return fmt.Errorf("__worker: unknown service %q", args[0])
	}
	service := factory()

	ctx := context.Background()
	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("__worker: starting service: %w", err)
	}
	defer service.Shutdown(ctx)

	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for {
		line, err := in.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		var req procRequest
		if err := json.Unmarshal(line, &req); err != nil {
			return fmt.Errorf("__worker: decoding request: %w", err)
		}

		resp := handleWorkerRequest(ctx, service, req)
		if err := json.NewEncoder(out).Encode(resp); err != nil {
			return fmt.Errorf("__worker: encoding response: %w", err)
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
}

func handleWorkerRequest(ctx context.Context, service svc.Service, req procRequest) procResponse {
	switch req.Kind {
	case "one":
		result, err := service.Run(ctx, req.One)
		if err != nil {
			return procResponse{ErrText: err.Error()}
		}
		return procResponse{One: result}
	case "list":
		results, err := service.RunList(ctx, req.List)
		if err != nil {
			return procResponse{ErrText: err.Error()}
		}
		return procResponse{List: results}
	default:
		return procResponse{ErrText: fmt.Sprintf("__worker: unknown request kind %q", req.Kind)}
	}
}
