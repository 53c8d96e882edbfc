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

package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_PutGetDelete(t *testing.T) {
	l := New()
	l.Put(1, "abc")
	e, ok := l.Get(1)
	require.True(t, ok)
	assert.Equal(t, "abc", e.Payload)
	assert.True(t, l.Has(1))
	l.Delete(1)
	assert.False(t, l.Has(1))
	assert.Equal(t, 0, l.Len())
}

func TestLedger_SweepStale(t *testing.T) {
	l := New()
	l.Put(1, "old")
	l.m[1] = Entry{Payload: "old", Created: time.Now().Add(-time.Hour)}
	l.Put(2, "fresh")

	removed := l.SweepStale(time.Minute, func(uint32) bool { return false })
	assert.Equal(t, []uint32{1}, removed)
	assert.True(t, l.Has(2))
	assert.False(t, l.Has(1))
}

func TestLedger_SweepStale_SkipsInFlight(t *testing.T) {
	l := New()
	l.m[1] = Entry{Payload: "old", Created: time.Now().Add(-time.Hour)}
	removed := l.SweepStale(time.Minute, func(id uint32) bool { return id == 1 })
	assert.Empty(t, removed)
	assert.True(t, l.Has(1))
}
