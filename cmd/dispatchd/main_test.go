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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwave-io/dispatchd/config"
)

func TestCheckExistenceOf_MissingFileIsFine(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, checkExistenceOf(filepath.Join(dir, "missing.json")))
}

func TestCheckExistenceOf_ExistingFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	assert.Error(t, checkExistenceOf(path))
}

func TestRunInitConfig_WritesLoadableDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatchd.json")

	orig := cfgPath
	cfgPath = path
	defer func() { cfgPath = orig }()

	require.NoError(t, runInitConfig(nil, nil))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.NewDefault().Port, loaded.Port)
}

func TestRunInitConfig_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatchd.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	orig := cfgPath
	cfgPath = path
	defer func() { cfgPath = orig }()

	assert.Error(t, runInitConfig(nil, nil))
}

func TestRunInitTokens_WritesEmptyStore(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	require.NoError(t, runInitTokens(nil, nil))

	data, err := os.ReadFile(defaultTokensFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"admins"`)
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(orig) }
}
