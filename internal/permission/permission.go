// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package permission answers capability checks for admin-flavored CLI
// commands. The full ACL subsystem lives elsewhere; this package only
// consumes grants.
package permission

import (
	"fmt"
	"os"
	"slices"

	"go.yaml.in/yaml/v3"
)

// Checker decides whether a user holds all required permissions on one
// entity.
type Checker interface {
	Check(user, entityKind, entityID string, required []string) bool
}

// AllowAll passes every check; used when no grants file is configured
// (single-operator mode).
type AllowAll struct{}

func (AllowAll) Check(string, string, string, []string) bool { return true }

// Grant is one user's permissions on one entity. EntityID "*" covers
// every entity of the kind.
type Grant struct {
	User        string   `yaml:"user"`
	EntityKind  string   `yaml:"entity_kind"`
	EntityID    string   `yaml:"entity_id"`
	Permissions []string `yaml:"permissions"`
}

// Grants is a static permission table loaded from YAML.
type Grants struct {
	grants []Grant
}

// Load reads a grants file. An empty path means single-operator mode and
// returns AllowAll.
func Load(path string) (Checker, error) {
	if path == "" {
		return AllowAll{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grants file %s: %w", path, err)
	}
	var grants []Grant
	if err := yaml.Unmarshal(data, &grants); err != nil {
		return nil, fmt.Errorf("parsing grants file %s: %w", path, err)
	}
	return &Grants{grants: grants}, nil
}

// Check reports whether user holds every required permission on the
// entity, aggregating across matching grants.
func (g *Grants) Check(user, entityKind, entityID string, required []string) bool {
	var held []string
	for _, grant := range g.grants {
		if grant.User != user || grant.EntityKind != entityKind {
			continue
		}
		if grant.EntityID != "*" && grant.EntityID != entityID {
			continue
		}
		held = append(held, grant.Permissions...)
	}
	for _, want := range required {
		if !slices.Contains(held, want) {
			return false
		}
	}
	return true
}
