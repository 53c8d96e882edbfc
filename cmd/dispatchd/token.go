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
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironwave-io/dispatchd/internal/client"
)

var (
	tokenAddr       string
	tokenAuthToken  string
	tokenAdmin      string
	tokenSuperuser  string
	tokenGroupName  string
	tokenGroupIDs   []int
	tokenUser       string
	tokenUserGroups []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "inspect or mutate the token store of a running dispatchd server",
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "print the full token store",
	RunE:  runTokenList,
}

var tokenAddCmd = &cobra.Command{
	Use:   "add",
	Short: "add or update an admin, superuser, group, or user token",
	RunE:  runTokenAdd,
}

var tokenRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "remove an admin, superuser, group, or user token",
	RunE:  runTokenRemove,
}

func init() {
	for _, cmd := range []*cobra.Command{tokenListCmd, tokenAddCmd, tokenRemoveCmd} {
		cmd.Flags().StringVar(&tokenAddr, "addr", client.DefaultAddr, "server address")
		cmd.Flags().StringVar(&tokenAuthToken, "token", "", "admin token to authenticate with")
	}
	for _, cmd := range []*cobra.Command{tokenAddCmd, tokenRemoveCmd} {
		cmd.Flags().StringVar(&tokenAdmin, "admin", "", "admin token to add/remove")
		cmd.Flags().StringVar(&tokenSuperuser, "superuser", "", "superuser token to add/remove")
		cmd.Flags().StringVar(&tokenGroupName, "group", "", "group name to add/remove")
		cmd.Flags().IntSliceVar(&tokenGroupIDs, "group-services", nil, "service ids for --group (add only)")
		cmd.Flags().StringVar(&tokenUser, "user", "", "user token to add/remove")
		cmd.Flags().StringSliceVar(&tokenUserGroups, "user-services", nil, "service ids or group names for --user (add only)")
	}
	tokenCmd.AddCommand(tokenListCmd, tokenAddCmd, tokenRemoveCmd)
}

func runTokenList(_ *cobra.Command, _ []string) error {
	cli := client.New(tokenAddr, tokenAuthToken)
	tokens, err := cli.TokensInfo()
	if err != nil {
		return fmt.Errorf("token list: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tokens)
}

func runTokenAdd(_ *cobra.Command, _ []string) error {
	return mutateToken(true)
}

func runTokenRemove(_ *cobra.Command, _ []string) error {
	return mutateToken(false)
}

func mutateToken(add bool) error {
	m := client.TokenMutation{}
	if tokenAdmin != "" {
		m.Admins = []string{tokenAdmin}
	}
	if tokenSuperuser != "" {
		m.Superusers = []string{tokenSuperuser}
	}
	if tokenGroupName != "" {
		m.Groups = map[string][]int{tokenGroupName: tokenGroupIDs}
	}
	if tokenUser != "" {
		refs := make([]any, len(tokenUserGroups))
		for i, ref := range tokenUserGroups {
			if id, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
				refs[i] = id
			} else {
				refs[i] = ref
			}
		}
		m.Users = map[string][]any{tokenUser: refs}
	}

	cli := client.New(tokenAddr, tokenAuthToken)
	var err error
	if add {
		err = cli.PutTokens(m)
	} else {
		err = cli.DeleteTokens(m)
	}
	if err != nil {
		return fmt.Errorf("token mutation: %w", err)
	}
	fmt.Println("OK")
	return nil
}
