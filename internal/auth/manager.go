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

// Package auth resolves request tokens against a store of admin, superuser,
// group, and per-user service grants. The store can be loaded from a JSON
// or INI file, mutated at runtime, and saved back with a timestamped
// backup of the previous revision.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironwave-io/dispatchd/internal/registry"
)

// DefaultTokenPattern matches the source's default token shape: 32 hex
// characters.
const DefaultTokenPattern = `^[0-9a-fA-F]{32}$`

// Manager is the in-process token store. All reads and mutations are
// synchronized; AuthorizeUser and friends are safe for concurrent use from
// every request goroutine.
type Manager struct {
	mu sync.RWMutex

	tokenRegex *regexp.Regexp

	admins     map[string]struct{}
	superusers map[string]struct{}
	groups     map[string][]int
	users      map[string][]int
	usersRaw   map[string]userServiceRef // preserves group-name references for round-trip save

	path            string
	backupDir       string
	disableBackups  bool
	bypassUser      bool
	bypassAdmin     bool
	reg             *registry.Registry
}

// Options configures a Manager.
type Options struct {
	// Path is the token file to load from and save to. Empty means an
	// in-memory-only store.
	Path string
	// BackupDir holds timestamped copies of the token file made before
	// each Save. Defaults to "tokens_backups" next to Path.
	BackupDir string
	// DisableBackups skips writing a timestamped copy before each Save,
	// matching the source's tokens_backups config flag.
	DisableBackups bool
	// TokenPattern overrides DefaultTokenPattern.
	TokenPattern string
	// BypassUser and BypassAdmin disable token-format/membership checks
	// entirely for their respective Authorize* methods, matching the
	// source's bypass_user_auth/bypass_admin_auth config flags.
	BypassUser  bool
	BypassAdmin bool
	// Registry resolves group-name service references against known
	// service ids when validating group/user entries. May be nil, in
	// which case group membership is trusted as given.
	Registry *registry.Registry
}

// New builds a Manager from an in-memory Tokens document, validating and
// resolving it the same way a file load would.
func New(tokens Tokens, opts Options) (*Manager, error) {
	pattern := opts.TokenPattern
	if pattern == "" {
		pattern = DefaultTokenPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token pattern: %w", err)
	}

	m := &Manager{
		tokenRegex:     re,
		path:           opts.Path,
		backupDir:      opts.BackupDir,
		disableBackups: opts.DisableBackups,
		bypassUser:     opts.BypassUser,
		bypassAdmin:    opts.BypassAdmin,
		reg:            opts.Registry,
	}
	if m.backupDir == "" && m.path != "" {
		m.backupDir = filepath.Join(filepath.Dir(m.path), "tokens_backups")
	}
	if err := m.load(tokens); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile reads a JSON or INI token file (dispatched by extension) and
// builds a Manager from it.
func LoadFile(path string, opts Options) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: reading token file: %w", err)
	}
	tokens, err := decodeTokens(path, data)
	if err != nil {
		return nil, err
	}
	opts.Path = path
	return New(tokens, opts)
}

func decodeTokens(path string, data []byte) (Tokens, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		stripped := stripCommentLines(string(data))
		tokens := emptyTokens()
		if err := jsoniter.Unmarshal([]byte(stripped), &tokens); err != nil {
			return Tokens{}, fmt.Errorf("auth: parsing json tokens: %w", err)
		}
		if tokens.Groups == nil {
			tokens.Groups = map[string]intList{}
		}
		if tokens.Users == nil {
			tokens.Users = map[string]userServiceRef{}
		}
		return tokens, nil
	case ".ini":
		return parseINI(string(data))
	default:
		return Tokens{}, fmt.Errorf("auth: unsupported token file extension %q", filepath.Ext(path))
	}
}

// stripCommentLines drops lines whose first non-whitespace rune is '#',
// mirroring the source's tolerance for a shebang-style comment in JSON
// token files.
func stripCommentLines(data string) string {
	lines := strings.Split(data, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// load validates tokens and resolves group-name user references into flat
// int service-id sets, matching AuthManager.__init__'s checks.
func (m *Manager) load(tokens Tokens) error {
	for _, tok := range tokens.Admins {
		if !m.tokenRegex.MatchString(tok) {
			return fmt.Errorf("auth: admin token %q does not match required format", tok)
		}
	}
	for _, tok := range tokens.Superusers {
		if !m.tokenRegex.MatchString(tok) {
			return fmt.Errorf("auth: superuser token %q does not match required format", tok)
		}
	}

	groups := make(map[string][]int, len(tokens.Groups))
	for name, ids := range tokens.Groups {
		if isDigitsOnly(name) {
			return fmt.Errorf("auth: group name %q must not be purely numeric", name)
		}
		groups[name] = append([]int(nil), ids...)
	}

	users := make(map[string][]int, len(tokens.Users))
	for tok, refs := range tokens.Users {
		if !m.tokenRegex.MatchString(tok) {
			return fmt.Errorf("auth: user token %q does not match required format", tok)
		}
		resolved, err := resolveUserRefs(refs, groups)
		if err != nil {
			return fmt.Errorf("auth: user %q: %w", tok, err)
		}
		users[tok] = resolved
	}

	admins := make(map[string]struct{}, len(tokens.Admins))
	for _, a := range tokens.Admins {
		admins[a] = struct{}{}
	}
	superusers := make(map[string]struct{}, len(tokens.Superusers))
	for _, s := range tokens.Superusers {
		superusers[s] = struct{}{}
	}

	m.mu.Lock()
	m.admins = admins
	m.superusers = superusers
	m.groups = groups
	m.users = users
	m.usersRaw = tokens.Users
	m.mu.Unlock()
	return nil
}

// resolveUserRefs expands a mixed list of int service-ids and group-name
// strings into a deduplicated, sorted set of int service ids.
func resolveUserRefs(refs userServiceRef, groups map[string][]int) ([]int, error) {
	seen := map[int]struct{}{}
	for _, ref := range refs {
		switch v := ref.(type) {
		case int:
			seen[v] = struct{}{}
		case string:
			ids, ok := groups[v]
			if !ok {
				return nil, fmt.Errorf("references unknown group %q", v)
			}
			for _, id := range ids {
				seen[id] = struct{}{}
			}
		default:
			return nil, fmt.Errorf("invalid service reference %v", ref)
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

func isDigitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ValidateTokenFormat reports whether token matches the configured token
// pattern.
func (m *Manager) ValidateTokenFormat(token string) bool {
	return m.tokenRegex.MatchString(token)
}

// Exists reports whether token is known as an admin, superuser, or user
// token.
func (m *Manager) Exists(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.admins[token]; ok {
		return true
	}
	if _, ok := m.superusers[token]; ok {
		return true
	}
	_, ok := m.users[token]
	return ok
}

// AuthorizeUser reports whether token may invoke serviceID: bypassed
// entirely, or granted via admin/superuser standing or an explicit user
// grant.
func (m *Manager) AuthorizeUser(token string, serviceID int) bool {
	if m.bypassUser {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.admins[token]; ok {
		return true
	}
	if _, ok := m.superusers[token]; ok {
		return true
	}
	for _, id := range m.users[token] {
		if id == serviceID {
			return true
		}
	}
	return false
}

// AuthorizeUserMultiple reports, for each requested serviceID, whether
// token may invoke it.
func (m *Manager) AuthorizeUserMultiple(token string, serviceIDs []int) map[int]bool {
	out := make(map[int]bool, len(serviceIDs))
	if m.bypassUser {
		for _, id := range serviceIDs {
			out[id] = true
		}
		return out
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, isAdmin := m.admins[token]
	_, isSuperuser := m.superusers[token]
	if isAdmin || isSuperuser {
		for _, id := range serviceIDs {
			out[id] = true
		}
		return out
	}
	granted := make(map[int]struct{}, len(m.users[token]))
	for _, id := range m.users[token] {
		granted[id] = struct{}{}
	}
	for _, id := range serviceIDs {
		_, out[id] = granted[id]
	}
	return out
}

// GetUserAuthorized filters serviceIDs down to the subset token may
// invoke.
func (m *Manager) GetUserAuthorized(token string, serviceIDs []int) []int {
	grants := m.AuthorizeUserMultiple(token, serviceIDs)
	out := make([]int, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if grants[id] {
			out = append(out, id)
		}
	}
	return out
}

// AuthorizeAdmin reports whether token has admin standing.
func (m *Manager) AuthorizeAdmin(token string) bool {
	if m.bypassAdmin {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.admins[token]
	return ok
}

// AuthorizeSuperuser reports whether token has superuser standing.
func (m *Manager) AuthorizeSuperuser(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.superusers[token]
	return ok
}

// GetDictTokens returns a deep snapshot of the current store in the
// Tokens shape, suitable for JSON serialization or diffing.
func (m *Manager) GetDictTokens() Tokens {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := emptyTokens()
	for name, ids := range m.groups {
		out.Groups[name] = append(intList(nil), ids...)
	}
	for tok, refs := range m.usersRaw {
		out.Users[tok] = append(userServiceRef(nil), refs...)
	}
	out.Superusers = append([]string(nil), m.sortedSuperusers()...)
	out.Admins = append([]string(nil), m.sortedAdmins()...)
	return out
}

func (m *Manager) sortedSuperusers() []string {
	out := make([]string, 0, len(m.superusers))
	for s := range m.superusers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) sortedAdmins() []string {
	out := make([]string, 0, len(m.admins))
	for a := range m.admins {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Reload re-reads the token file from disk and atomically swaps the
// in-memory store, used by the configuration reload endpoint.
func (m *Manager) Reload() error {
	if m.path == "" {
		return fmt.Errorf("auth: manager has no backing file to reload")
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("auth: reloading token file: %w", err)
	}
	tokens, err := decodeTokens(m.path, data)
	if err != nil {
		return err
	}
	return m.load(tokens)
}

// Save serializes the current store back to its backing file (JSON or
// INI, by extension) after copying the existing file into BackupDir with
// a timestamped name. A monotonic counter suffix disambiguates same-second
// backups instead of the source's sleep-and-retry loop, so a second save
// within the same second gets a fresh name without waiting for the clock.
func (m *Manager) Save(now time.Time) error {
	if m.path == "" {
		return fmt.Errorf("auth: manager has no backing file to save to")
	}
	if err := m.backup(now); err != nil {
		return err
	}

	tokens := m.GetDictTokens()
	var out []byte
	var err error
	switch strings.ToLower(filepath.Ext(m.path)) {
	case ".json":
		out, err = jsoniter.MarshalIndent(tokens, "", "  ")
	case ".ini":
		out = []byte(renderINI(tokens))
	default:
		return fmt.Errorf("auth: unsupported token file extension %q", filepath.Ext(m.path))
	}
	if err != nil {
		return fmt.Errorf("auth: encoding tokens: %w", err)
	}
	if err := os.WriteFile(m.path, out, 0o600); err != nil {
		return fmt.Errorf("auth: writing token file: %w", err)
	}
	return nil
}

func (m *Manager) backup(now time.Time) error {
	if m.disableBackups {
		return nil
	}
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(m.backupDir, 0o700); err != nil {
		return fmt.Errorf("auth: creating backup directory: %w", err)
	}
	base := filepath.Base(m.path)
	stamp := now.Format("2006-01-02_15-04-05")
	dest := filepath.Join(m.backupDir, fmt.Sprintf("%s_%s", stamp, base))
	for i := 1; fileExists(dest); i++ {
		dest = filepath.Join(m.backupDir, fmt.Sprintf("%s-%d_%s", stamp, i, base))
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("auth: reading token file for backup: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return fmt.Errorf("auth: writing token backup: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDiff re-reads the backing file and reports admin/superuser
// tokens and group/user entries added or removed relative to the current
// in-memory store, without applying them.
func (m *Manager) GetConfigDiff() (Diff, error) {
	if m.path == "" {
		return Diff{}, fmt.Errorf("auth: manager has no backing file to diff against")
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Diff{}, fmt.Errorf("auth: reading token file: %w", err)
	}
	fresh, err := decodeTokens(m.path, data)
	if err != nil {
		return Diff{}, err
	}

	current := m.GetDictTokens()
	diff := Diff{
		AddedAdmins:     stringSetDiff(fresh.Admins, current.Admins),
		RemovedAdmins:   stringSetDiff(current.Admins, fresh.Admins),
		AddedSuperusers: stringSetDiff(fresh.Superusers, current.Superusers),
		RemovedSuperu:   stringSetDiff(current.Superusers, fresh.Superusers),
		AddedGroups:     mapKeyDiff(fresh.Groups, current.Groups),
		RemovedGroups:   mapKeyDiff(current.Groups, fresh.Groups),
		AddedUsers:      userMapKeyDiff(fresh.Users, current.Users),
		RemovedUsers:    userMapKeyDiff(current.Users, fresh.Users),
	}
	return diff, nil
}

// Diff reports added/removed top-level entries between two token
// snapshots.
type Diff struct {
	AddedAdmins     []string
	RemovedAdmins   []string
	AddedSuperusers []string
	RemovedSuperu   []string
	AddedGroups     []string
	RemovedGroups   []string
	AddedUsers      []string
	RemovedUsers    []string
}

func stringSetDiff(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	out := []string{}
	for _, s := range a {
		if _, ok := inB[s]; !ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func mapKeyDiff(a, b map[string]intList) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func userMapKeyDiff(a, b map[string]userServiceRef) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// AddAdmin registers a new admin token, validating its format first.
func (m *Manager) AddAdmin(token string) error {
	if !m.tokenRegex.MatchString(token) {
		return fmt.Errorf("auth: admin token %q does not match required format", token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[token] = struct{}{}
	return nil
}

// RemoveAdmin removes an admin token. It is not an error to remove an
// unknown token.
func (m *Manager) RemoveAdmin(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.admins, token)
}

// AddSuperuser registers a new superuser token.
func (m *Manager) AddSuperuser(token string) error {
	if !m.tokenRegex.MatchString(token) {
		return fmt.Errorf("auth: superuser token %q does not match required format", token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.superusers[token] = struct{}{}
	return nil
}

// RemoveSuperuser removes a superuser token.
func (m *Manager) RemoveSuperuser(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.superusers, token)
}

// AddGroup registers a new group and its member service ids.
func (m *Manager) AddGroup(name string, serviceIDs []int) error {
	if isDigitsOnly(name) {
		return fmt.Errorf("auth: group name %q must not be purely numeric", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[name] = append([]int(nil), serviceIDs...)
	return nil
}

// RemoveGroup deletes a group, refusing if any user still references it.
func (m *Manager) RemoveGroup(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, refs := range m.usersRaw {
		for _, ref := range refs {
			if s, ok := ref.(string); ok && s == name {
				return fmt.Errorf("auth: group %q is referenced by user %q", name, tok)
			}
		}
	}
	delete(m.groups, name)
	return nil
}

// AddUser registers a new user token with mixed service-id/group-name
// references, resolving the latter against the current group set.
func (m *Manager) AddUser(token string, refs userServiceRef) error {
	if !m.tokenRegex.MatchString(token) {
		return fmt.Errorf("auth: user token %q does not match required format", token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	resolved, err := resolveUserRefs(refs, m.groups)
	if err != nil {
		return fmt.Errorf("auth: user %q: %w", token, err)
	}
	m.users[token] = resolved
	m.usersRaw[token] = refs
	return nil
}

// RemoveUser removes a user token.
func (m *Manager) RemoveUser(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, token)
	delete(m.usersRaw, token)
}

// knownServiceIDs reports the ids the bound registry exposes, used by
// callers that want to validate a group/user grant against live services
// before calling AddGroup/AddUser.
func (m *Manager) knownServiceIDs() map[int]struct{} {
	out := map[int]struct{}{}
	if m.reg == nil {
		return out
	}
	for _, s := range m.reg.ListServices() {
		out[s.ID] = struct{}{}
	}
	return out
}
