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

// Package client is a thin resty-backed HTTP client for the dispatchd API,
// used by the operator-facing status/token CLI subcommands. It is not the
// request-dispatch client a tenant would embed in their own service.
package client

import (
	"fmt"
	"sort"

	resty "github.com/go-resty/resty/v2"
)

// DefaultAddr is used when a CLI subcommand is not told which server to
// reach.
const DefaultAddr = "http://127.0.0.1:80"

// apiV1Path must match internal/httpapi.APIVersion1Path.
const apiV1Path = "/api/v1"

// Client is a minimal dispatchd API client: enough for an operator to read
// server/service state and mutate the token store from the command line.
type Client struct {
	addr  string
	token string
	rc    *resty.Client
}

// New builds a Client for the server at addr, authenticating with token.
func New(addr, token string) *Client {
	return &Client{addr: addr, token: token, rc: resty.New()}
}

func (c *Client) request() *resty.Request {
	r := c.rc.R()
	if c.token != "" {
		r.SetHeader("token", c.token)
	}
	return r
}

func (c *Client) url(path string) string {
	return c.addr + apiV1Path + path
}

// ServiceRow is one service's combined static and runtime info, as returned
// by GET /server/info/server/.
type ServiceRow struct {
	ID      int
	Name    string
	Groups  []string
	Running bool
	Workers int
	Pending int
	Cached  int
}

// ServerInfoResult is the decoded body of GET /server/info/server/.
type ServerInfoResult struct {
	Info []struct {
		ID          int      `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Groups      []string `json:"groups"`
	} `json:"info"`
	Running []struct {
		ID      int  `json:"id"`
		Running bool `json:"running"`
		Workers int  `json:"workers"`
		Pending int  `json:"pending"`
		Cached  int  `json:"cached"`
	} `json:"running"`
}

// Rows merges the Info and Running slices into one row per service, sorted
// by id.
func (r ServerInfoResult) Rows() []ServiceRow {
	running := make(map[int]ServiceRow, len(r.Running))
	for _, run := range r.Running {
		running[run.ID] = ServiceRow{
			Running: run.Running,
			Workers: run.Workers,
			Pending: run.Pending,
			Cached:  run.Cached,
		}
	}
	out := make([]ServiceRow, len(r.Info))
	for i, info := range r.Info {
		row := running[info.ID]
		row.ID = info.ID
		row.Name = info.Name
		row.Groups = info.Groups
		out[i] = row
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ServerInfo fetches GET /server/info/server/.
func (c *Client) ServerInfo() (ServerInfoResult, error) {
	var result ServerInfoResult
	resp, err := c.request().SetResult(&result).Get(c.url("/server/info/server/"))
	if err != nil {
		return result, err
	}
	if resp.IsError() {
		return result, fmt.Errorf("server returned %s: %s", resp.Status(), resp.String())
	}
	return result, nil
}

// TokenMutation is the shared request body for PUT/DELETE /server/tokens/.
type TokenMutation struct {
	Admins     []string         `json:"admins,omitempty"`
	Superusers []string         `json:"superusers,omitempty"`
	Groups     map[string][]int `json:"groups,omitempty"`
	Users      map[string][]any `json:"users,omitempty"`
}

type mutationResponse struct {
	Server struct {
		State   string `json:"state"`
		Message string `json:"message"`
	} `json:"server"`
}

// PutTokens sends PUT /server/tokens/, adding or updating the given tokens.
func (c *Client) PutTokens(m TokenMutation) error {
	return c.mutateTokens("PUT", m)
}

// DeleteTokens sends DELETE /server/tokens/, removing the given tokens.
func (c *Client) DeleteTokens(m TokenMutation) error {
	return c.mutateTokens("DELETE", m)
}

func (c *Client) mutateTokens(method string, m TokenMutation) error {
	var result mutationResponse
	req := c.request().SetBody(m).SetResult(&result)
	resp, err := req.Execute(method, c.url("/server/tokens/"))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("server returned %s: %s", resp.Status(), resp.String())
	}
	if result.Server.State != "OK" {
		return fmt.Errorf("server rejected token mutation: %s", result.Server.Message)
	}
	return nil
}

// TokensInfo fetches GET /server/info/tokens/: the full token store, as a
// raw map since its shape already round-trips through JSON tags the server
// owns.
func (c *Client) TokensInfo() (map[string]any, error) {
	var result map[string]any
	resp, err := c.request().SetResult(&result).Get(c.url("/server/info/tokens/"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("server returned %s: %s", resp.Status(), resp.String())
	}
	return result, nil
}
