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
	"github.com/gin-gonic/gin"

	"github.com/ironwave-io/dispatchd/internal/dispatcherr"
)

const tokenContextKey = "dispatchd.token"

// tokenExtractor reads the request token from whichever carriers are
// enabled (header, query parameter, cookie, in that order), treating the
// literal string "null" as absent the same way the source's token
// dependency does, and stores it in gin's context for handlers to read.
func (s *Server) tokenExtractor() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if s.opts.Transport.Header {
			token = normalizeToken(c.GetHeader("token"))
		}
		if token == "" && s.opts.Transport.Parameter {
			token = normalizeToken(c.Query("token"))
		}
		if token == "" && s.opts.Transport.Cookie {
			if v, err := c.Cookie("token"); err == nil {
				token = normalizeToken(v)
			}
		}
		c.Set(tokenContextKey, token)
		c.Next()
	}
}

func normalizeToken(v string) string {
	if v == "null" {
		return ""
	}
	return v
}

func tokenFromContext(c *gin.Context) string {
	v, _ := c.Get(tokenContextKey)
	token, _ := v.(string)
	return token
}

// requireAdmin rejects the request before handler runs unless the token
// has admin standing.
func (s *Server) requireAdmin(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.tokens.AuthorizeAdmin(tokenFromContext(c)) {
			writeAuthError(c)
			return
		}
		handler(c)
	}
}

// requireKnownToken rejects the request unless the token is registered at
// all (admin, superuser, or user).
func (s *Server) requireKnownToken(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.tokens.Exists(tokenFromContext(c)) {
			writeAuthError(c)
			return
		}
		handler(c)
	}
}

// requireConfigEndpointsEnabled rejects mutation endpoints when the
// operator has disabled live configuration via the API.
func (s *Server) requireConfigEndpointsEnabled(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.DisableConfigEndpoints {
			err := dispatcherr.New(dispatcherr.Validation, dispatcherr.MsgConfigEndpointsDisabled)
			writeError(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": err.Message}}, err)
			return
		}
		handler(c)
	}
}

func writeAuthError(c *gin.Context) {
	err := dispatcherr.AuthErr()
	writeError(c, map[string]any{"server": map[string]any{"state": "ERROR", "message": err.Message}}, err)
	c.Abort()
}
