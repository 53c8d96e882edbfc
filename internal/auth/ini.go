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
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseINI reads the bespoke token INI dialect: four sections (GROUPS,
// USERS, SUPERUSERS, ADMINS), "key = value" or bare "key" lines (allow-no-
// value, as admin/superuser tokens have no value), ';' or '#' comments. No
// pack dependency handles this shape (whitespace-separated value lists,
// pure-digit-string-as-int coercion) so it is hand-parsed against the
// stdlib, same justification class as the unbounded-channel pump in
// internal/workerpool.
func parseINI(data string) (Tokens, error) {
	tokens := emptyTokens()
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return Tokens{}, fmt.Errorf("auth: malformed section header on line %d", lineNo)
			}
			section = strings.ToUpper(strings.TrimSpace(line[1 : len(line)-1]))
			if section != "GROUPS" && section != "USERS" && section != "SUPERUSERS" && section != "ADMINS" {
				return Tokens{}, fmt.Errorf("auth: invalid section %q on line %d", section, lineNo)
			}
			continue
		}
		if section == "" {
			return Tokens{}, fmt.Errorf("auth: value outside of any section on line %d", lineNo)
		}
		key, value, hasValue := splitINILine(line)
		switch section {
		case "GROUPS":
			tokens.Groups[key] = guessIntList(value)
		case "USERS":
			tokens.Users[key] = guessUserList(value)
		case "SUPERUSERS":
			_ = hasValue
			tokens.Superusers = append(tokens.Superusers, key)
		case "ADMINS":
			tokens.Admins = append(tokens.Admins, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return Tokens{}, fmt.Errorf("auth: reading tokens: %w", err)
	}
	return tokens, nil
}

func splitINILine(line string) (key, value string, hasValue bool) {
	if idx := strings.IndexByte(line, '='); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
	}
	return strings.TrimSpace(line), "", false
}

// guessIntList splits a whitespace-separated value into ints, mirroring the
// source's guess_type applied element-wise over a group's service list.
func guessIntList(value string) intList {
	fields := strings.Fields(value)
	out := make(intList, 0, len(fields))
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// guessUserList splits a whitespace-separated value into service ids
// (digit strings) or group names (everything else).
func guessUserList(value string) userServiceRef {
	fields := strings.Fields(value)
	out := make(userServiceRef, 0, len(fields))
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			out = append(out, n)
		} else {
			out = append(out, f)
		}
	}
	return out
}

// renderINI is the inverse of parseINI, used by Manager.Save.
func renderINI(t Tokens) string {
	var b strings.Builder
	b.WriteString("[GROUPS]\n")
	for _, name := range sortedKeys(t.Groups) {
		ids := t.Groups[name]
		if len(ids) == 0 {
			fmt.Fprintf(&b, "%s\n", name)
			continue
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(id)
		}
		fmt.Fprintf(&b, "%s = %s\n", name, strings.Join(parts, " "))
	}
	b.WriteString("\n[USERS]\n")
	for _, name := range sortedUserKeys(t.Users) {
		refs := t.Users[name]
		if len(refs) == 0 {
			fmt.Fprintf(&b, "%s\n", name)
			continue
		}
		parts := make([]string, len(refs))
		for i, r := range refs {
			parts[i] = fmt.Sprint(r)
		}
		fmt.Fprintf(&b, "%s = %s\n", name, strings.Join(parts, " "))
	}
	b.WriteString("\n[SUPERUSERS]\n")
	for _, s := range t.Superusers {
		fmt.Fprintf(&b, "%s\n", s)
	}
	b.WriteString("\n[ADMINS]\n")
	for _, a := range t.Admins {
		fmt.Fprintf(&b, "%s\n", a)
	}
	return b.String()
}

func sortedKeys(m map[string]intList) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedUserKeys(m map[string]userServiceRef) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
