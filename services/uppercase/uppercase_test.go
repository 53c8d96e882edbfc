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

package uppercase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Run(t *testing.T) {
	s := New()
	out, err := s.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
}

func TestService_RunList(t *testing.T) {
	s := New()
	out, err := s.RunList(context.Background(), []string{"ab", "cd"})
	require.NoError(t, err)
	assert.Equal(t, []any{"AB", "CD"}, out)
}
