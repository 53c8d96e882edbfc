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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	currentDir        = "./"
	defaultConfigFile = currentDir + "dispatchd.json"
	defaultTokensFile = currentDir + "tokens.json"
)

// cfgPath is shared by every subcommand that reads or writes the config
// file, set via the persistent --config flag.
var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "dispatchd",
	Short: "Multi-tenant request dispatch server",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		fmt.Sprintf("config file path, default is %s", defaultConfigFile))

	rootCmd.AddCommand(
		runCmd,
		initConfigCmd,
		initTokensCmd,
		workerCmd,
		statusCmd,
		tokenCmd,
	)
}

// checkExistenceOf refuses to overwrite an existing file before writing a
// fresh default.
func checkExistenceOf(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

// newCtxWithSignals returns a context canceled on SIGINT/SIGTERM, so a
// running server shuts its services down cleanly instead of being killed
// mid-request.
func newCtxWithSignals() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx
}
