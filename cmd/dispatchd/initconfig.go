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

	"github.com/ironwave-io/dispatchd/config"
)

var initConfigDoc bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "create a new default config file",
	RunE:  runInitConfig,
}

func init() {
	initConfigCmd.Flags().BoolVar(&initConfigDoc, "doc", false,
		"print a commented reference instead of writing a loadable config file")
}

func runInitConfig(_ *cobra.Command, _ []string) error {
	path := cfgPath
	if path == "" {
		path = defaultConfigFile
	}

	cfg := config.NewDefault()
	if initConfigDoc {
		os.Stdout.WriteString(cfg.TOML())
		return nil
	}

	if err := checkExistenceOf(path); err != nil {
		return err
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
