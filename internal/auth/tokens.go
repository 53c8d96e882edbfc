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

package auth

import (
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Tokens is the on-disk/in-memory shape of a token store: group and user
// memberships plus flat superuser/admin token lists.
type Tokens struct {
	Groups     map[string]intList        `json:"groups"`
	Users      map[string]userServiceRef `json:"users"`
	Superusers []string                  `json:"superusers"`
	Admins     []string                  `json:"admins"`
}

func emptyTokens() Tokens {
	return Tokens{
		Groups: map[string]intList{},
		Users:  map[string]userServiceRef{},
	}
}

// intList decodes either a bare int or a JSON array mixing ints and
// digit-strings, dropping null/empty entries, mirroring the source's
// permissive group-services format.
type intList []int

// IntList is the exported name for intList, for callers outside this
// package building a group's service list from a decoded request body.
type IntList = intList

func (l *intList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	var single float64
	if err := jsoniter.Unmarshal(data, &single); err == nil {
		*l = intList{int(single)}
		return nil
	}
	var raw []any
	if err := jsoniter.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("auth: invalid group service list: %w", err)
	}
	out := make(intList, 0, len(raw))
	for _, v := range raw {
		n, ok, err := coerceInt(v)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, n)
		}
	}
	*l = out
	return nil
}

// userServiceRef decodes either a bare value or a JSON array mixing service
// ids (ints or digit-strings) and group names (non-digit strings).
type userServiceRef []any

// UserServiceRef is the exported name for userServiceRef, for callers
// outside this package (the HTTP API's token-mutation handlers) that need
// to construct one from a decoded request body.
type UserServiceRef = userServiceRef

func (l *userServiceRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	var raw []any
	if err := jsoniter.Unmarshal(data, &raw); err != nil {
		var single any
		if err2 := jsoniter.Unmarshal(data, &single); err2 != nil {
			return fmt.Errorf("auth: invalid user service list: %w", err)
		}
		raw = []any{single}
	}
	out := make(userServiceRef, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case float64:
			out = append(out, int(t))
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			if n, err := strconv.Atoi(s); err == nil {
				out = append(out, n)
			} else {
				out = append(out, s)
			}
		case nil:
			continue
		default:
			return fmt.Errorf("auth: invalid user service reference %v", v)
		}
	}
	*l = out
	return nil
}

func coerceInt(v any) (int, bool, error) {
	switch t := v.(type) {
	case float64:
		return int(t), true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false, fmt.Errorf("auth: invalid service id %q", t)
		}
		return n, true, nil
	case nil:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("auth: invalid service id %v", v)
	}
}
