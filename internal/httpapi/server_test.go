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
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwave-io/dispatchd/internal/auth"
	"github.com/ironwave-io/dispatchd/internal/dispatch"
	"github.com/ironwave-io/dispatchd/internal/gc"
	"github.com/ironwave-io/dispatchd/internal/registry"
	"github.com/ironwave-io/dispatchd/internal/supervisor"
	"github.com/ironwave-io/dispatchd/internal/svc"
	"github.com/ironwave-io/dispatchd/internal/workerpool"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type upperService struct{}

func (upperService) Descriptor() svc.Descriptor {
	return svc.Descriptor{Name: "upper", Threads: 1, Groups: []string{"text"}}
}
func (upperService) Start(context.Context) error    { return nil }
func (upperService) Shutdown(context.Context) error { return nil }
func (upperService) Run(ctx context.Context, r string) (any, error) {
	return strings.ToUpper(r), nil
}
func (s upperService) RunList(ctx context.Context, rs []string) ([]any, error) {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i], _ = s.Run(ctx, r)
	}
	return out, nil
}

const adminToken = "admintokenadmintoken"
const userToken = "usertokenusertoken12"

// fakeTokens is a minimal TokenManager double: userToken may use every
// service, adminToken carries admin standing, and token mutations simply
// record what they were asked to do.
type fakeTokens struct {
	putCalls    int
	savedAt     time.Time
	lastAdmins  []string
	lastGroups  map[string]auth.IntList
}

func (f *fakeTokens) Exists(token string) bool { return token == adminToken || token == userToken }
func (f *fakeTokens) AuthorizeUser(token string, serviceID int) bool {
	return token == userToken || token == adminToken
}
func (f *fakeTokens) AuthorizeUserMultiple(token string, serviceIDs []int) map[int]bool {
	out := make(map[int]bool, len(serviceIDs))
	for _, id := range serviceIDs {
		out[id] = token == userToken || token == adminToken
	}
	return out
}
func (f *fakeTokens) AuthorizeAdmin(token string) bool     { return token == adminToken }
func (f *fakeTokens) AuthorizeSuperuser(token string) bool { return token == adminToken }
func (f *fakeTokens) GetUserAuthorized(token string, serviceIDs []int) []int {
	if token != userToken && token != adminToken {
		return nil
	}
	return serviceIDs
}
func (f *fakeTokens) GetDictTokens() auth.Tokens {
	return auth.Tokens{Admins: []string{adminToken}}
}
func (f *fakeTokens) AddAdmin(token string) error { f.lastAdmins = append(f.lastAdmins, token); return nil }
func (f *fakeTokens) RemoveAdmin(token string)    {}
func (f *fakeTokens) AddSuperuser(token string) error { return nil }
func (f *fakeTokens) RemoveSuperuser(token string)    {}
func (f *fakeTokens) AddGroup(name string, serviceIDs []int) error {
	if f.lastGroups == nil {
		f.lastGroups = map[string]auth.IntList{}
	}
	f.lastGroups[name] = serviceIDs
	return nil
}
func (f *fakeTokens) RemoveGroup(name string) error              { return nil }
func (f *fakeTokens) AddUser(token string, refs auth.UserServiceRef) error { return nil }
func (f *fakeTokens) RemoveUser(token string)                    {}
func (f *fakeTokens) Reload() error                               { return nil }
func (f *fakeTokens) Save(now time.Time) error                    { f.putCalls++; f.savedAt = now; return nil }

func newTestServer(t *testing.T) (*Server, *fakeTokens, func()) {
	t.Helper()
	reg, err := registry.New([]svc.Service{upperService{}}, registry.Config{})
	require.NoError(t, err)

	collector := gc.New(time.Minute, nil)
	go collector.Run()
	term := supervisor.New(time.Hour)

	tokens := &fakeTokens{}
	engine := dispatch.New(reg, tokens, term, collector, dispatch.Config{
		MaxMessageSize:  1024,
		MaxDatabaseSize: 100,
		MaxResultAge:    time.Minute,
	}, "1.0.0-test")

	poolCfg := func(id int) workerpool.Config {
		return workerpool.Config{
			ServiceID: id, ServiceName: "upper", Threads: 1,
			ServiceStartTimeout: time.Second, ServiceShutdownTimeout: time.Second,
		}
	}
	require.NoError(t, engine.StartServices(context.Background(), poolCfg))

	srv := New(engine, tokens, Options{
		Transport:  TokenTransport{Header: true},
		PoolConfig: poolCfg,
	})
	return srv, tokens, func() {
		engine.StopServices(context.Background())
		collector.Stop()
	}
}

func TestRouter_ServicesInfo_FiltersByAuthorization(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, APIVersion1Path+"/server/info/services/", nil)
	req.Header.Set("token", userToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "upper")
}

func TestRouter_ServerInfo_RequiresAdmin(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, APIVersion1Path+"/server/info/server/", nil)
	req.Header.Set("token", userToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, APIVersion1Path+"/server/info/server/", nil)
	req.Header.Set("token", adminToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_DispatchSingle_ByServiceID(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, APIVersion1Path+"/0/hello", nil)
	req.Header.Set("token", userToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HELLO")
}

func TestRouter_DispatchSingle_ByGroupName(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, APIVersion1Path+"/text/hello", nil)
	req.Header.Set("token", userToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HELLO")
}

func TestRouter_DispatchList_Post(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()
	router := srv.Router()

	body := strings.NewReader(`["a","b"]`)
	req := httptest.NewRequest(http.MethodPost, APIVersion1Path+"/0/", body)
	req.Header.Set("token", userToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"A\"")
}

func TestRouter_DispatchSingle_UnauthorizedWithoutToken(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, APIVersion1Path+"/0/hello", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_PutTokens_RequiresAdminAndSaves(t *testing.T) {
	srv, tokens, cleanup := newTestServer(t)
	defer cleanup()
	router := srv.Router()

	body := strings.NewReader(`{"admins":["newadmintoken000000"],"groups":{"g1":[0]}}`)
	req := httptest.NewRequest(http.MethodPut, APIVersion1Path+"/server/tokens/", body)
	req.Header.Set("token", adminToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, tokens.putCalls)
	assert.Contains(t, tokens.lastAdmins, "newadmintoken000000")
}
