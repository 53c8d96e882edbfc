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

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/ironwave-io/dispatchd/internal/auth"
)

var initTokensCmd = &cobra.Command{
	Use:   "init-tokens",
	Short: "create a new empty token file",
	RunE:  runInitTokens,
}

func runInitTokens(_ *cobra.Command, _ []string) error {
	path := defaultTokensFile
	if err := checkExistenceOf(path); err != nil {
		return err
	}

	// Users is left nil: decodeTokens treats a missing/null "users" object
	// as empty when the file is next loaded.
	tokens := auth.Tokens{
		Groups:     map[string]auth.IntList{},
		Superusers: []string{},
		Admins:     []string{},
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
