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
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ironwave-io/dispatchd/internal/client"
)

var (
	statusAddr  string
	statusToken string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the running services of a dispatchd server",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", client.DefaultAddr, "server address")
	statusCmd.Flags().StringVar(&statusToken, "token", "", "token to authenticate with")
}

func runStatus(_ *cobra.Command, _ []string) error {
	cli := client.New(statusAddr, statusToken)

	info, err := cli.ServerInfo()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.AppendHeader(table.Row{"ID", "Name", "Groups", "Running", "Workers", "Pending", "Cached"})
	for _, row := range info.Rows() {
		w.AppendRow(table.Row{row.ID, row.Name, row.Groups, row.Running, row.Workers, row.Pending, row.Cached})
	}
	w.Render()
	return nil
}
