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

// Package registry validates and indexes the set of hosted services,
// assigning stable numeric ids and exposing read-only descriptors and
// group membership.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ironwave-io/dispatchd/internal/svc"
)

var (
	nameRe     = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9_.\-]*[A-Za-z0-9])?$`)
	pureDigits = regexp.MustCompile(`^[0-9]+$`)
)

var reservedNames = map[string]bool{
	"server": true,
	"auto":   true,
}

// Config controls group-injection and name-comparison policy.
type Config struct {
	// DisableAllGroups suppresses the implicit "all" group.
	DisableAllGroups bool
	// DisableNameGroups suppresses the implicit per-service name group.
	DisableNameGroups bool
	// KeySensitive, when true, makes service/group name comparisons
	// case-sensitive. False (the default) folds case.
	KeySensitive bool
}

// ServiceRef is a lightweight (id, name) pair returned by listing operations.
type ServiceRef struct {
	ID   int
	Name string
}

// ServiceDetail extends ServiceRef with description and group membership.
type ServiceDetail struct {
	ID          int
	Name        string
	Description string
	Groups      []string
}

// Registry is the immutable, validated view over a set of services.
type Registry struct {
	services      []svc.Service // index == id
	nameIndex     map[string]int
	groups        map[string][]int
	groupOrder    []string
	caseSensitive bool
}

// New validates descs, assigns missing ids, builds groups, and freezes each
// service's descriptor. Returns an error describing the first validation
// failure encountered — such a failure is fatal at startup.
func New(services []svc.Service, cfg Config) (*Registry, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("registry: no services declared")
	}

	descs := make([]svc.Descriptor, len(services))
	for i, s := range services {
		descs[i] = s.Descriptor()
	}

	fold := func(s string) string {
		if cfg.KeySensitive {
			return s
		}
		return strings.ToLower(s)
	}

	seenName := map[string]bool{}
	for _, d := range descs {
		if err := validateName(d.Name); err != nil {
			return nil, err
		}
		key := fold(d.Name)
		if seenName[key] {
			return nil, fmt.Errorf("registry: duplicate service name %q", d.Name)
		}
		seenName[key] = true
		if d.Threads < 0 || d.Processes < 0 {
			return nil, fmt.Errorf("registry: service %q: threads/processes cannot be negative", d.Name)
		}
		if d.Threads+d.Processes < 1 {
			return nil, fmt.Errorf("registry: service %q: threads+processes must be >= 1", d.Name)
		}
		if d.TimeoutS < 0 {
			return nil, fmt.Errorf("registry: service %q: timeout_s cannot be negative", d.Name)
		}
		if d.MaxTimeouts < 0 {
			return nil, fmt.Errorf("registry: service %q: max_timeouts cannot be negative", d.Name)
		}
		for _, g := range d.Groups {
			if pureDigits.MatchString(g) {
				return nil, fmt.Errorf("registry: service %q: group name %q cannot be a pure digit string", d.Name, g)
			}
		}
	}

	assigned, err := assignIDs(descs)
	if err != nil {
		return nil, err
	}

	if !cfg.DisableNameGroups {
		// every service name must be group-unique: no declared group may
		// collide with any service name.
		for _, d := range assigned {
			nameKey := fold(d.Name)
			for _, other := range assigned {
				for _, g := range other.Groups {
					if fold(g) == nameKey && fold(other.Name) != nameKey {
						return nil, fmt.Errorf(
							"registry: group %q collides with service name %q; disable name groups or rename", g, d.Name)
					}
				}
			}
		}
	}

	byID := make([]svc.Service, len(assigned))
	nameIndex := make(map[string]int, len(assigned))
	for i, s := range services {
		d := assigned[i]
		frozen := svc.Freeze(s, d)
		byID[d.ID] = frozen
		nameIndex[fold(d.Name)] = d.ID
	}

	groups := map[string][]int{}
	var groupOrder []string
	addToGroup := func(name string, id int) {
		key := fold(name)
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, name)
		}
		for _, existing := range groups[key] {
			if existing == id {
				return
			}
		}
		groups[key] = append(groups[key], id)
	}

	for _, d := range assigned {
		for _, g := range d.Groups {
			addToGroup(g, d.ID)
		}
	}
	if !cfg.DisableAllGroups {
		for _, d := range assigned {
			addToGroup("all", d.ID)
		}
	}
	if !cfg.DisableNameGroups {
		for _, d := range assigned {
			addToGroup(d.Name, d.ID)
		}
	}

	return &Registry{
		services:      byID,
		nameIndex:     nameIndex,
		groups:        groups,
		groupOrder:    groupOrder,
		caseSensitive: cfg.KeySensitive,
	}, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("registry: service name cannot be empty")
	}
	if reservedNames[strings.ToLower(name)] {
		return fmt.Errorf("registry: service name %q is reserved", name)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("registry: service name %q contains invalid characters or ends in punctuation", name)
	}
	return nil
}

// assignIDs fills missing (negative) ids with the lowest unused non-negative
// integer, then verifies the final set is dense-packed starting at 0. The
// result keeps the input order, so result[i] still describes services[i].
func assignIDs(descs []svc.Descriptor) ([]svc.Descriptor, error) {
	used := map[int]bool{}
	for _, d := range descs {
		if d.ID >= 0 {
			if used[d.ID] {
				return nil, fmt.Errorf("registry: duplicate service id %d", d.ID)
			}
			used[d.ID] = true
		}
	}
	next := 0
	for i := range descs {
		if descs[i].ID < 0 {
			for used[next] {
				next++
			}
			descs[i].ID = next
			used[next] = true
		}
	}
	sorted := append([]svc.Descriptor(nil), descs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i, d := range sorted {
		if d.ID != i {
			return nil, fmt.Errorf("registry: service ids are not dense-packed starting at 0 (missing id %d)", i)
		}
	}
	return descs, nil
}

// ListServices returns the (id, name) pairs of every registered service,
// ordered by id.
func (r *Registry) ListServices() []ServiceRef {
	out := make([]ServiceRef, len(r.services))
	for i, s := range r.services {
		out[i] = ServiceRef{ID: s.Descriptor().ID, Name: s.Descriptor().Name}
	}
	return out
}

// ListServicesDetailed returns id, name, description and groups for every
// registered service, ordered by id.
func (r *Registry) ListServicesDetailed() []ServiceDetail {
	out := make([]ServiceDetail, len(r.services))
	for i, s := range r.services {
		d := s.Descriptor()
		out[i] = ServiceDetail{ID: d.ID, Name: d.Name, Description: d.Description, Groups: d.Groups}
	}
	return out
}

// Groups returns every group name mapped to its member (id, name) pairs, in
// group-declaration order.
func (r *Registry) Groups() map[string][]ServiceRef {
	out := make(map[string][]ServiceRef, len(r.groupOrder))
	for _, name := range r.groupOrder {
		key := name
		if !r.caseSensitive {
			key = strings.ToLower(key)
		}
		ids := r.groups[key]
		refs := make([]ServiceRef, len(ids))
		for i, id := range ids {
			refs[i] = ServiceRef{ID: id, Name: r.services[id].Descriptor().Name}
		}
		out[name] = refs
	}
	return out
}

// Descriptor returns the frozen descriptor for a service id.
func (r *Registry) Descriptor(id int) (svc.Descriptor, bool) {
	if id < 0 || id >= len(r.services) {
		return svc.Descriptor{}, false
	}
	return r.services[id].Descriptor(), true
}

// Service returns the hosted, frozen-descriptor Service for an id.
func (r *Registry) Service(id int) (svc.Service, bool) {
	if id < 0 || id >= len(r.services) {
		return nil, false
	}
	return r.services[id], true
}

// Len returns the number of registered services.
func (r *Registry) Len() int { return len(r.services) }

// ResolveByName returns a service id by exact (policy-folded) name match.
func (r *Registry) ResolveByName(name string) (int, bool) {
	key := name
	if !r.caseSensitive {
		key = strings.ToLower(key)
	}
	id, ok := r.nameIndex[key]
	return id, ok
}

// ResolveGroup resolves a group (or bare service) name to its member
// services. caseSensitive overrides the registry's configured policy for
// this lookup only.
func (r *Registry) ResolveGroup(name string, caseSensitive bool) ([]ServiceRef, error) {
	if pureDigits.MatchString(name) {
		return nil, fmt.Errorf("registry: %q is a service id, not a group", name)
	}
	key := name
	if !caseSensitive {
		key = strings.ToLower(key)
	}
	ids, ok := r.groups[key]
	if !ok {
		return nil, fmt.Errorf("registry: unknown group %q", name)
	}
	refs := make([]ServiceRef, len(ids))
	for i, id := range ids {
		refs[i] = ServiceRef{ID: id, Name: r.services[id].Descriptor().Name}
	}
	return refs, nil
}
