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

package httpapi

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ironwave-io/dispatchd/internal/auth"
	"github.com/ironwave-io/dispatchd/internal/dispatcherr"
	httppkg "github.com/ironwave-io/dispatchd/pkg/http"
)

func writeError(c *gin.Context, envelope any, err error) {
	httppkg.Error(c, envelope, err)
}

// handleServicesInfo serves GET /server/info/services/: {id: name} for
// every service the caller's token can use.
func (s *Server) handleServicesInfo(c *gin.Context) {
	token := tokenFromContext(c)
	refs := s.engine.ServicesInfo()
	ids := make([]int, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	authorized := s.tokens.AuthorizeUserMultiple(token, ids)

	out := map[string]string{}
	for _, r := range refs {
		if authorized[r.ID] {
			out[strconv.Itoa(r.ID)] = r.Name
		}
	}
	httppkg.OK(c, out)
}

// handleServicesInfoDetailed serves GET /server/info/services2/:
// {id: [name, description, groups]}.
func (s *Server) handleServicesInfoDetailed(c *gin.Context) {
	token := tokenFromContext(c)
	refs := s.engine.ServicesInfo()
	ids := make([]int, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	authorized := s.tokens.AuthorizeUserMultiple(token, ids)

	out := map[string]any{}
	for _, d := range s.engine.ServicesInfoDetailed() {
		if authorized[d.ID] {
			out[strconv.Itoa(d.ID)] = []any{d.Name, d.Description, d.Groups}
		}
	}
	httppkg.OK(c, out)
}

// handleGroupsInfo serves GET /server/info/groups/: {group: [(id, name)]}
// restricted to services the caller's token may use.
func (s *Server) handleGroupsInfo(c *gin.Context) {
	token := tokenFromContext(c)
	groups := s.engine.GroupsInfo()

	out := map[string]any{}
	for name, refs := range groups {
		ids := make([]int, len(refs))
		for i, r := range refs {
			ids[i] = r.ID
		}
		authorized := s.tokens.AuthorizeUserMultiple(token, ids)
		var visible [][]any
		for _, r := range refs {
			if authorized[r.ID] {
				visible = append(visible, []any{r.ID, r.Name})
			}
		}
		if len(visible) > 0 {
			out[name] = visible
		}
	}
	httppkg.OK(c, out)
}

// handleTokensInfo serves GET /server/info/tokens/: the full token store.
func (s *Server) handleTokensInfo(c *gin.Context) {
	httppkg.OK(c, s.tokens.GetDictTokens())
}

// handleServerInfo serves GET /server/info/server/: pool/ledger/cache
// sizes per service.
func (s *Server) handleServerInfo(c *gin.Context) {
	httppkg.OK(c, s.engine.ServerInfo())
}

// handleVersionInfo serves GET /server/info/version/.
func (s *Server) handleVersionInfo(c *gin.Context) {
	httppkg.OK(c, s.engine.VersionInfo())
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.engine.StartServices(c.Request.Context(), s.opts.PoolConfig); err != nil {
		writeError(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": err.Error()}}, err)
		return
	}
	httppkg.OK(c, map[string]any{"server": map[string]any{"state": "OK"}})
}

func (s *Server) handleStop(c *gin.Context) {
	s.engine.StopServices(c.Request.Context())
	httppkg.OK(c, map[string]any{"server": map[string]any{"state": "OK"}})
}

func (s *Server) handleRestart(c *gin.Context) {
	if err := s.engine.RestartServices(c.Request.Context(), s.opts.PoolConfig); err != nil {
		writeError(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": err.Error()}}, err)
		return
	}
	httppkg.OK(c, map[string]any{"server": map[string]any{"state": "OK"}})
}

func (s *Server) handleReloadTokens(c *gin.Context) {
	if err := s.tokens.Reload(); err != nil {
		writeError(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": err.Error()}}, err)
		return
	}
	httppkg.OK(c, map[string]any{"server": map[string]any{"state": "OK", "message": dispatcherr.MsgChangesLostOnReload}})
}

// tokenMutationRequest is the shared body shape for PUT/DELETE
// /server/tokens/.
type tokenMutationRequest struct {
	Admins     []string                     `json:"admins"`
	Superusers []string                     `json:"superusers"`
	Groups     map[string]auth.IntList      `json:"groups"`
	Users      map[string]auth.UserServiceRef `json:"users"`
}

func (s *Server) handlePutTokens(c *gin.Context) {
	var req tokenMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		derr := dispatcherr.RequestErr(err)
		writeError(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": derr.Message}}, derr)
		return
	}
	for _, tok := range req.Admins {
		if err := s.tokens.AddAdmin(tok); err != nil {
			s.mutationError(c, err)
			return
		}
	}
	for _, tok := range req.Superusers {
		if err := s.tokens.AddSuperuser(tok); err != nil {
			s.mutationError(c, err)
			return
		}
	}
	for name, ids := range req.Groups {
		if err := s.tokens.AddGroup(name, ids); err != nil {
			s.mutationError(c, err)
			return
		}
	}
	for tok, refs := range req.Users {
		if err := s.tokens.AddUser(tok, refs); err != nil {
			s.mutationError(c, err)
			return
		}
	}
	if err := s.tokens.Save(s.opts.Now()); err != nil {
		s.mutationError(c, err)
		return
	}
	httppkg.OK(c, map[string]any{"server": map[string]any{"state": "OK"}})
}

func (s *Server) handleDeleteTokens(c *gin.Context) {
	var req tokenMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		derr := dispatcherr.RequestErr(err)
		writeError(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": derr.Message}}, derr)
		return
	}
	for _, tok := range req.Admins {
		s.tokens.RemoveAdmin(tok)
	}
	for _, tok := range req.Superusers {
		s.tokens.RemoveSuperuser(tok)
	}
	for name := range req.Groups {
		if err := s.tokens.RemoveGroup(name); err != nil {
			s.mutationError(c, err)
			return
		}
	}
	for tok := range req.Users {
		s.tokens.RemoveUser(tok)
	}
	if err := s.tokens.Save(s.opts.Now()); err != nil {
		s.mutationError(c, err)
		return
	}
	httppkg.OK(c, map[string]any{"server": map[string]any{"state": "OK"}})
}

func (s *Server) mutationError(c *gin.Context, err error) {
	derr := dispatcherr.Wrap(dispatcherr.Validation, "Token mutation failed", err)
	writeError(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": derr.Message}}, derr)
}

// handleDispatch serves the catch-all /{id_or_group}/{request...} surface
// reached via NoRoute: GET dispatches a single request, POST dispatches a
// JSON array body as a batch. The path is parsed by hand here because
// nothing matched gin's route tree, so c.Param is unavailable.
func (s *Server) handleDispatch(c *gin.Context) {
	path := strings.TrimPrefix(c.Request.URL.Path, APIVersion1Path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		httppkg.NotFound(c)
		return
	}

	idOrGroup, request, _ := strings.Cut(path, "/")

	switch c.Request.Method {
	case "GET":
		s.handleDispatchSingle(c, idOrGroup, request)
	case "POST":
		s.handleDispatchList(c, idOrGroup)
	default:
		httppkg.NotFound(c)
	}
}

// handleDispatchSingle serves GET /{id_or_group}/{request...}: a single
// request dispatched to a service or a group.
func (s *Server) handleDispatchSingle(c *gin.Context, idOrGroup, request string) {
	token := tokenFromContext(c)
	caching := c.Query("cache") != "false"

	envelope, derr := s.engine.GetGroup(c.Request.Context(), idOrGroup, request, token, caching)
	respondEnvelope(c, envelope, derr)
}

// handleDispatchList serves POST /{id_or_group}/ with a JSON array body:
// a batch of requests dispatched to a service or a group.
func (s *Server) handleDispatchList(c *gin.Context, idOrGroup string) {
	token := tokenFromContext(c)
	caching := c.Query("cache") != "false"

	var requests []string
	if err := c.ShouldBindJSON(&requests); err != nil {
		derr := dispatcherr.RequestErr(err)
		respondEnvelope(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": derr.Message}}, derr)
		return
	}

	envelope, derr := s.engine.GetGroupList(c.Request.Context(), idOrGroup, requests, token, caching)
	respondEnvelope(c, envelope, derr)
}

func respondEnvelope(c *gin.Context, envelope map[string]any, derr error) {
	if derr == nil {
		httppkg.OK(c, envelope)
		return
	}
	writeError(c, envelope, derr)
}
