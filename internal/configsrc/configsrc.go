// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package configsrc loads provider and service-request definitions from a
// directory of YAML files and resolves child service-request inheritance.
// One file defines one provider. The loaded registry is the config source
// the rest of the engine reads; it is never mutated after loading.
package configsrc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

// Registry holds all loaded providers, inheritance already applied.
type Registry struct {
	providers []*types.Provider
}

var validate = validator.New()

// LoadDir reads every .yaml/.yml file in dir as one provider definition.
// Definitions are validated, given ids when missing, and each child
// service request has inheritance resolved before the registry is
// returned.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading provider directory %s: %w", dir, err)
	}

	reg := &Registry{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading provider definition %s: %w", entry.Name(), err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("provider definition %s: %w", entry.Name(), err)
		}
		if reg.Provider(p.Name) != nil {
			return nil, fmt.Errorf("provider definition %s: duplicate provider %q", entry.Name(), p.Name)
		}
		reg.providers = append(reg.providers, p)
	}

	return reg, nil
}

// Parse decodes one provider definition, validates it, assigns missing
// ids, and resolves service-request inheritance.
func Parse(data []byte) (*types.Provider, error) {
	var p types.Provider
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing provider definition: %w", err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("validating provider definition: %w", err)
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for i := range p.ServiceRequests {
		if p.ServiceRequests[i].ID == "" {
			p.ServiceRequests[i].ID = uuid.NewString()
		}
	}

	if err := resolveInheritance(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Providers returns all loaded providers.
func (r *Registry) Providers() []*types.Provider {
	return r.providers
}

// Provider returns the provider with the given name or id, or nil.
func (r *Registry) Provider(key string) *types.Provider {
	for _, p := range r.providers {
		if p.Name == key || p.ID == key {
			return p
		}
	}
	return nil
}

// ServiceRequest locates a service request by id or by
// "provider/request" name across all providers.
func (r *Registry) ServiceRequest(key string) (*types.Provider, *types.ServiceRequest) {
	if pname, srname, ok := strings.Cut(key, "/"); ok {
		if p := r.Provider(pname); p != nil {
			if sr := p.ServiceRequestByName(srname); sr != nil {
				return p, sr
			}
		}
		return nil, nil
	}
	for _, p := range r.providers {
		for i := range p.ServiceRequests {
			if p.ServiceRequests[i].ID == key {
				return p, &p.ServiceRequests[i]
			}
		}
	}
	return nil, nil
}

// resolveInheritance fills each child service request's unoverridden
// aspects from the nearest ancestor that defines them. An aspect whose
// override flag is set stays as the child declares it, even when empty.
func resolveInheritance(p *types.Provider) error {
	for i := range p.ServiceRequests {
		sr := &p.ServiceRequests[i]
		if sr.Parent == "" {
			continue
		}

		seen := map[string]bool{sr.Name: true}
		for parent := sr.Parent; parent != ""; {
			if seen[parent] {
				return fmt.Errorf("service request %q: inheritance cycle through %q", sr.Name, parent)
			}
			seen[parent] = true

			anc := p.ServiceRequestByName(parent)
			if anc == nil {
				return fmt.Errorf("service request %q: unknown parent %q", sr.Name, parent)
			}
			inheritAspects(sr, anc)
			parent = anc.Parent
		}
	}
	return nil
}

// inheritAspects copies still-missing aspects from one ancestor into the
// child. Called from nearest ancestor outward, so the nearest ancestor
// that defines an aspect wins.
func inheritAspects(sr, anc *types.ServiceRequest) {
	if !sr.Overrides.ResponseKeys && len(sr.ResponseKeys) == 0 && len(anc.ResponseKeys) > 0 {
		sr.ResponseKeys = append([]types.SrResponseKey(nil), anc.ResponseKeys...)
	}
	if !sr.Overrides.Configs && len(sr.Configs) == 0 && len(anc.Configs) > 0 {
		sr.Configs = append([]types.SrConfig(nil), anc.Configs...)
	}
	if !sr.Overrides.Parameters {
		if len(sr.QueryParameters) == 0 && len(anc.QueryParameters) > 0 {
			sr.QueryParameters = append([]types.RequestParameter(nil), anc.QueryParameters...)
		}
		for name, value := range anc.Properties {
			if _, ok := sr.Properties[name]; !ok {
				if sr.Properties == nil {
					sr.Properties = make(map[string]string)
				}
				sr.Properties[name] = value
			}
		}
	}
	if sr.ListKey == "" {
		sr.ListKey = anc.ListKey
	}
	if sr.ListItemRepeaterKey == "" {
		sr.ListItemRepeaterKey = anc.ListItemRepeaterKey
	}
	if sr.PaginationType == "" {
		sr.PaginationType = anc.PaginationType
	}
}
