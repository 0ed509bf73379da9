// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package template resolves [PLACEHOLDER] tokens in user-authored request
// templates (URLs, headers, bodies, query fields) against a layered value
// source: reserved system values, query-time values, provider-level
// properties, and service-request-level properties.
// Implements: prd003-requests (R1).
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

// tokenPattern matches one bracket-delimited placeholder, non-greedy so
// adjacent tokens in the same template resolve independently.
var tokenPattern = regexp.MustCompile(`\[([^\[\]]+?)\]`)

// Well-known placeholder tokens.
const (
	TokenQuery     = "QUERY"
	TokenTimestamp = "TIMESTAMP"
)

// Keymap binds placeholder tokens to their backing value names. It is
// built once at startup and passed into New; the engine itself keeps no
// ambient static state.
type Keymap struct {
	// Reserved maps a token to the reserved response-key name looked up
	// in the query-time value bag (page size, offset, totals). A missing
	// bag entry resolves to empty rather than an error.
	Reserved map[string]string

	// Properties maps a token to the provider/SR property name that
	// backs it (OAuth credentials, grant/scope field names). A missing
	// property is a configuration error.
	Properties map[string]string
}

// DefaultKeymap returns the standard token bindings.
func DefaultKeymap() Keymap {
	return Keymap{
		Reserved: map[string]string{
			"PAGE_SIZE":   "page_size",
			"PAGE_NUMBER": "page_number",
			"PER_PAGE":    "per_page",
			"OFFSET":      "offset",
			"TOTAL_ITEMS": "total_items",
			"TOTAL_PAGES": "total_pages",
			"LIMIT":       "limit",
		},
		Properties: map[string]string{
			"API_BASE_URL":           "api_base_url",
			"CLIENT_ID":              "client_id",
			"CLIENT_SECRET":          "client_secret",
			"ACCESS_TOKEN":           "access_token",
			"SECRET_KEY":             "secret_key",
			"USER_ID":                "user_id",
			"GRANT_TYPE_FIELD_NAME":  "grant_type_field_name",
			"GRANT_TYPE_FIELD_VALUE": "grant_type_field_value",
			"SCOPE_FIELD_NAME":       "scope_field_name",
			"SCOPE_FIELD_VALUE":      "scope_field_value",
		},
	}
}

// Context is the per-request value source for token resolution. Resolve
// never mutates it, so one context can serve every template of a request.
type Context struct {
	Provider *types.Provider
	SR       *types.ServiceRequest

	// Query is the literal current search query string ([QUERY]).
	Query string

	// Values is the query-time value bag: pagination state, caller
	// overrides, and generic passthrough values.
	Values map[string]any

	// Now supplies the [TIMESTAMP] clock; nil means time.Now.
	Now func() time.Time
}

// property resolves a property name SR-scope first, then provider-scope.
func (c *Context) property(name string) (string, bool) {
	if c.SR != nil {
		if v := c.SR.Property(name); v != "" {
			return v, true
		}
	}
	if c.Provider != nil {
		if v := c.Provider.Property(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// Engine substitutes placeholder tokens. Unresolvable required tokens are
// accumulated on the embedded error list instead of surviving as literal
// bracket text, so one pass reports every broken template of a request.
type Engine struct {
	keymap Keymap
	types.ErrorList
}

// New returns an Engine using the given token bindings.
func New(keymap Keymap) *Engine {
	return &Engine{keymap: keymap}
}

// Resolve substitutes every [TOKEN] in template. Resolution order per
// token: reserved system value, property-backed value, the literal search
// query, the timestamp, then generic passthrough from the value bag.
// Purely numeric results are normalized to their integer form. Resolving
// an already-resolved string is a no-op.
func (e *Engine) Resolve(template string, ctx *Context) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		token := match[1 : len(match)-1]
		return e.resolveToken(token, ctx)
	})
}

// ResolveKnown substitutes only tokens the keymap (or the built-in
// QUERY/TIMESTAMP pair) knows about and leaves everything else in place,
// recording nothing. Used on extracted response values, where stray
// bracket text is data rather than a broken template.
func (e *Engine) ResolveKnown(template string, ctx *Context) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		token := match[1 : len(match)-1]
		if _, ok := e.keymap.Reserved[token]; ok {
			return e.resolveToken(token, ctx)
		}
		if _, ok := e.keymap.Properties[token]; ok {
			if propName := e.keymap.Properties[token]; propName != "" {
				if v, ok := ctx.property(propName); ok {
					return coerce(v)
				}
			}
			return match
		}
		if token == TokenQuery || token == TokenTimestamp {
			return e.resolveToken(token, ctx)
		}
		return match
	})
}

func (e *Engine) resolveToken(token string, ctx *Context) string {
	if bagKey, ok := e.keymap.Reserved[token]; ok {
		if v, ok := lookupBag(ctx.Values, bagKey); ok {
			return coerce(v)
		}
		// Reserved pagination values are optional: absent means the
		// provider template simply gets an empty slot.
		return ""
	}

	if propName, ok := e.keymap.Properties[token]; ok {
		if v, ok := ctx.property(propName); ok {
			return coerce(v)
		}
		e.AddError("template token [%s]: property %q not configured", token, propName)
		return ""
	}

	switch token {
	case TokenQuery:
		return ctx.Query
	case TokenTimestamp:
		now := time.Now
		if ctx.Now != nil {
			now = ctx.Now
		}
		return strconv.FormatInt(now().Unix(), 10)
	}

	// Generic passthrough: the token name looked up directly in the bag.
	if v, ok := lookupBag(ctx.Values, token); ok {
		return coerce(v)
	}

	e.AddError("template token [%s]: no value available", token)
	return ""
}

func lookupBag(values map[string]any, key string) (any, bool) {
	if values == nil {
		return nil, false
	}
	v, ok := values[key]
	return v, ok
}

// coerce renders a bag value as a string, normalizing purely numeric
// strings to their integer form ("007" becomes "7").
func coerce(v any) string {
	switch t := v.(type) {
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return strconv.Itoa(n)
		}
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// JSON numbers decode as float64; keep integral values integral.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
