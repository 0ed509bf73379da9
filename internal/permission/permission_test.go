// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grantsYAML = `
- user: alice
  entity_kind: provider
  entity_id: crossref
  permissions: [read, harvest]
- user: alice
  entity_kind: provider
  entity_id: "*"
  permissions: [read]
- user: bob
  entity_kind: provider
  entity_id: crossref
  permissions: [read]
`

func loadGrants(t *testing.T) Checker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(grantsYAML), 0o644))
	checker, err := Load(path)
	require.NoError(t, err)
	return checker
}

func TestGrantsCheck(t *testing.T) {
	checker := loadGrants(t)

	tests := []struct {
		name     string
		user     string
		entityID string
		required []string
		want     bool
	}{
		{"direct grant", "alice", "crossref", []string{"read", "harvest"}, true},
		{"wildcard covers other entities", "alice", "openalex", []string{"read"}, true},
		{"wildcard lacks harvest", "alice", "openalex", []string{"harvest"}, false},
		{"missing permission", "bob", "crossref", []string{"harvest"}, false},
		{"unknown user", "carol", "crossref", []string{"read"}, false},
		{"empty requirement passes", "carol", "crossref", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.Check(tt.user, "provider", tt.entityID, tt.required)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrantsCheckEntityKindMismatch(t *testing.T) {
	checker := loadGrants(t)
	assert.False(t, checker.Check("alice", "service_request", "crossref", []string{"read"}))
}

func TestLoadEmptyPathAllowsAll(t *testing.T) {
	checker, err := Load("")
	require.NoError(t, err)
	assert.True(t, checker.Check("anyone", "provider", "x", []string{"admin"}))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("{not: [valid"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}
