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

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwave-io/dispatchd/internal/svc"
)

type stubService struct {
	desc svc.Descriptor
}

func (s *stubService) Descriptor() svc.Descriptor               { return s.desc }
func (s *stubService) Start(context.Context) error               { return nil }
func (s *stubService) Shutdown(context.Context) error            { return nil }
func (s *stubService) Run(context.Context, string) (any, error)  { return nil, nil }
func (s *stubService) RunList(context.Context, []string) ([]any, error) {
	return nil, nil
}

func newStub(id int, name string, groups ...string) svc.Service {
	return &stubService{desc: svc.Descriptor{
		ID: id, Name: name, Threads: 1, Groups: groups,
	}}
}

func TestNew_AssignsDenseIDsAndInjectsGroups(t *testing.T) {
	services := []svc.Service{
		newStub(-1, "alpha", "custom"),
		newStub(-1, "beta"),
	}
	reg, err := New(services, Config{})
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	da, ok := reg.Descriptor(0)
	require.True(t, ok)
	assert.Equal(t, "alpha", da.Name)

	groups := reg.Groups()
	assert.Contains(t, groups, "all")
	assert.Len(t, groups["all"], 2)
	assert.Contains(t, groups, "alpha")
	assert.Contains(t, groups, "custom")
}

func TestNew_RejectsReservedName(t *testing.T) {
	_, err := New([]svc.Service{newStub(-1, "server")}, Config{})
	assert.Error(t, err)
}

func TestNew_RejectsDuplicateExplicitID(t *testing.T) {
	_, err := New([]svc.Service{newStub(0, "a"), newStub(0, "b")}, Config{})
	assert.Error(t, err)
}

func TestNew_RejectsNonDensePacking(t *testing.T) {
	_, err := New([]svc.Service{newStub(0, "a"), newStub(5, "b")}, Config{})
	assert.Error(t, err)
}

func TestNew_RejectsDigitGroupName(t *testing.T) {
	_, err := New([]svc.Service{newStub(-1, "a", "123")}, Config{})
	assert.Error(t, err)
}

func TestNew_NameGroupDisabled(t *testing.T) {
	reg, err := New([]svc.Service{newStub(-1, "alpha")}, Config{DisableNameGroups: true, DisableAllGroups: true})
	require.NoError(t, err)
	groups := reg.Groups()
	assert.NotContains(t, groups, "alpha")
	assert.NotContains(t, groups, "all")
}

func TestResolveGroup_CaseFolding(t *testing.T) {
	reg, err := New([]svc.Service{newStub(-1, "Alpha")}, Config{KeySensitive: false})
	require.NoError(t, err)
	refs, err := reg.ResolveGroup("ALPHA", false)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Alpha", refs[0].Name)
}

func TestResolveGroup_RejectsPureDigitName(t *testing.T) {
	reg, err := New([]svc.Service{newStub(-1, "alpha")}, Config{})
	require.NoError(t, err)
	_, err = reg.ResolveGroup("42", false)
	assert.Error(t, err)
}
