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

// Package http holds small gin response helpers shared by every API
// package, so handlers translate a result or an error the same way
// everywhere.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ironwave-io/dispatchd/internal/dispatcherr"
)

// OK writes data as a 200 JSON response.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NotFound writes an empty 404.
func NotFound(c *gin.Context) {
	c.Status(http.StatusNotFound)
}

// Error writes envelope as the JSON response body, picking the status code
// from err's dispatcherr.Kind when it carries one and falling back to 500.
func Error(c *gin.Context, envelope any, err error) {
	c.JSON(statusFor(err), envelope)
}

func statusFor(err error) int {
	var derr *dispatcherr.Error
	if !asDispatchErr(err, &derr) {
		return http.StatusInternalServerError
	}
	switch derr.Kind {
	case dispatcherr.Auth:
		return http.StatusUnauthorized
	case dispatcherr.Request, dispatcherr.Validation:
		return http.StatusBadRequest
	case dispatcherr.ServiceDisabledKind:
		return http.StatusServiceUnavailable
	case dispatcherr.ServiceStall, dispatcherr.Correlation:
		return http.StatusGatewayTimeout
	case dispatcherr.ServiceRuntime:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func asDispatchErr(err error, target **dispatcherr.Error) bool {
	d, ok := err.(*dispatcherr.Error)
	if !ok {
		return false
	}
	*target = d
	return true
}
