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

// Command dispatchd hosts a multi-tenant dispatch server: it loads a set of
// plugin services, starts a worker pool per service, and exposes them over
// an authorization-gated HTTP API.
package main

import (
	"fmt"
	"os"

	// Blank-imported so each sample service's init() registers its factory.
	_ "github.com/ironwave-io/dispatchd/services/dnsresolve"
	_ "github.com/ironwave-io/dispatchd/services/echo"
	_ "github.com/ironwave-io/dispatchd/services/sleepy"
	_ "github.com/ironwave-io/dispatchd/services/uppercase"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
