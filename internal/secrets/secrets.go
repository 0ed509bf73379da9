// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider credentials from a directory of plain-text files.
// Each file is one credential: the filename is "<provider>-<property>" and the file
// contents (trimmed) are the value. Credentials never live in YAML provider
// definitions; they are merged into provider properties at startup.
//
// Example key files: crossref-client_secret, openalex-access_token, core-api_key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply merges loaded credentials into provider properties. A credential named
// "<provider>-<property>" sets that property on the matching provider,
// overriding any placeholder a definition file carries. Credentials with no
// matching provider are ignored.
func Apply(secrets map[string]string, providers []*types.Provider) {
	for _, p := range providers {
		prefix := p.Name + "-"
		for name, value := range secrets {
			property, ok := strings.CutPrefix(name, prefix)
			if !ok {
				continue
			}
			if p.Properties == nil {
				p.Properties = make(map[string]string)
			}
			p.Properties[property] = value
		}
	}
}
