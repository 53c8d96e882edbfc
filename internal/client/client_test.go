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

package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ServerInfo_MergesInfoAndRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiV1Path+"/server/info/server/", r.URL.Path)
		assert.Equal(t, "sekrit", r.Header.Get("token"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"info": []map[string]any{
				{"id": 0, "name": "echo", "description": "", "groups": []string{"diagnostic"}},
			},
			"running": []map[string]any{
				{"id": 0, "running": true, "workers": 2, "pending": 1, "cached": 3},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit")
	info, err := c.ServerInfo()
	require.NoError(t, err)

	rows := info.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "echo", rows[0].Name)
	assert.True(t, rows[0].Running)
	assert.Equal(t, 2, rows[0].Workers)
	assert.Equal(t, 3, rows[0].Cached)
}

func TestClient_PutTokens_ReturnsErrorOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"server": map[string]any{"state": "ERROR", "message": "bad token"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit")
	err := c.PutTokens(TokenMutation{Admins: []string{"deadbeefdeadbeefdeadbeefdeadbeef"}})
	assert.ErrorContains(t, err, "bad token")
}

func TestClient_PutTokens_Succeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"server": map[string]any{"state": "OK"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit")
	err := c.PutTokens(TokenMutation{Admins: []string{"deadbeefdeadbeefdeadbeefdeadbeef"}})
	assert.NoError(t, err)
}
