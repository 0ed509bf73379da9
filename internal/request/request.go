// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package request assembles outbound provider requests from ordered,
// templated parameter lists.
// Implements: prd003-requests (R2).
package request

import (
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/harvest-engine/internal/template"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

// Built is the assembled request input: a concatenated body string and a
// query-parameter map.
type Built struct {
	Body  string
	Query map[string]string
}

// Build resolves each parameter template in configuration order and
// produces the request body and query map. Same-named parameters fold
// into one comma-separated query value; parameters that resolve empty
// are skipped entirely and never clear an existing entry.
func Build(params []types.RequestParameter, eng *template.Engine, ctx *template.Context) Built {
	out := Built{Query: make(map[string]string, len(params))}

	var body []string
	for _, p := range params {
		value := strings.TrimSpace(eng.Resolve(p.Value, ctx))
		if value == "" {
			continue
		}

		body = append(body, value)

		if existing, ok := out.Query[p.Name]; ok && existing != "" {
			out.Query[p.Name] = existing + "," + value
			continue
		}
		out.Query[p.Name] = value
	}

	out.Body = strings.Join(body, " ")
	return out
}

// Encode renders the query map as a URL query string with keys in sorted
// order, so built URLs are deterministic across runs.
func (b Built) Encode() string {
	keys := make([]string, 0, len(b.Query))
	for k := range b.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(b.Query[k]))
	}
	return sb.String()
}

// Headers resolves a header config slot: each line of the slot's array
// or text form is "Name: value-template", with the value run through the
// template engine. Malformed lines are skipped.
func Headers(cfg *types.SrConfig, eng *template.Engine, ctx *template.Context) map[string]string {
	headers := make(map[string]string)
	if cfg == nil {
		return headers
	}

	lines := cfg.ArrayVal
	if len(lines) == 0 {
		lines = strings.Split(cfg.Resolved(), "\n")
	}
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		resolved := strings.TrimSpace(eng.Resolve(strings.TrimSpace(value), ctx))
		if name == "" || resolved == "" {
			continue
		}
		headers[name] = resolved
	}
	return headers
}
