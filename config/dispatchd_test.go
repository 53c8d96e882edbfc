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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault_PassesValidation(t *testing.T) {
	cfg := NewDefault()
	assert.NoError(t, cfg.Validate())
}

func TestDispatchd_Validate_RejectsBadPort(t *testing.T) {
	cfg := NewDefault()
	cfg.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestDispatchd_Validate_RejectsShortServiceRunTime(t *testing.T) {
	cfg := NewDefault()
	cfg.MaxServiceRunTime = 0
	assert.Error(t, cfg.Validate())
}

func TestDispatchd_Validate_RejectsAllTokenTransportsDisabled(t *testing.T) {
	cfg := NewDefault()
	cfg.AllowHeaderToken = false
	cfg.AllowParameterToken = false
	cfg.AllowCookieToken = false
	assert.Error(t, cfg.Validate())
}

func TestDispatchd_Validate_AllowsAllTransportsDisabledWithBypass(t *testing.T) {
	cfg := NewDefault()
	cfg.AllowHeaderToken = false
	cfg.AllowParameterToken = false
	cfg.AllowCookieToken = false
	cfg.BypassUserAuth = true
	assert.NoError(t, cfg.Validate())
}

func TestLoad_JSON_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9000, "max_database_size": 500}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 500, cfg.MaxDatabaseSize)
	assert.Equal(t, NewDefault().SSLPort, cfg.SSLPort)
}

func TestLoad_JSON_RejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not_a_real_key": 1}`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_INI_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("port = 9001\nuse_ssl = true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.True(t, cfg.UseSSL)
}

func TestLoad_INI_RejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("bogus = 1\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewDefault().Port, cfg.Port)
}
