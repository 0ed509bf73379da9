// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package response walks raw provider response trees (JSON- or
// XML-decoded) and projects them onto normalized documents using
// user-authored response-key mappings.
// Implements: prd002-mapping (R1-R4).
package response

import (
	"sort"
	"strings"
)

// Reserved list-key values. "root_items" treats the whole response body
// as a single implicit item; "root_array" treats the top-level array as
// the item list.
const (
	ListKeyRootItems = "root_items"
	ListKeyRootArray = "root_array"
)

// XML attribute-node shape. The XML decoder wraps any element carrying
// attributes into a map with these keys so attribute lookups and
// text-value lookups stay addressable with ordinary paths.
const (
	XMLValueTypeKey  = "xml_value_type"
	XMLAttributeType = "attribute"
	XMLAttributesKey = "attributes"
	XMLValuesKey     = "values"
)

// NotFound is the soft-fail sentinel returned by path traversal. Callers
// distinguish it from a legitimate empty result by type-checking; misses
// never raise.
const NotFound = ""

// IsNotFound reports whether v is the traversal miss sentinel.
func IsNotFound(v any) bool {
	s, ok := v.(string)
	return ok && s == NotFound
}

// SplitPath turns a dotted path string into its key sequence. Empty
// segments produced by stray dots are dropped.
func SplitPath(path string) []string {
	parts := strings.Split(path, ".")
	keys := parts[:0]
	for _, p := range parts {
		if p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// IsBracketPath reports whether s is a bracket-wrapped path ("[a.b]"),
// which marks a list-key value as a nested path rather than a literal
// reserved token.
func IsBracketPath(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

// TrimBrackets strips one layer of wrapping brackets.
func TrimBrackets(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
}

// GetByPath walks tree one key at a time and returns the addressed
// value, or NotFound when the current node is not a map or the key is
// absent. XML attribute nodes resolve the key against their attributes
// first, then descend into their values.
func GetByPath(tree any, path []string) any {
	if len(path) == 0 {
		return tree
	}

	node, ok := tree.(map[string]any)
	if !ok {
		return NotFound
	}

	if isAttributeNode(node) {
		if attrs, ok := node[XMLAttributesKey].(map[string]any); ok {
			if v, ok := attrs[path[0]]; ok {
				return GetByPath(v, path[1:])
			}
		}
		return GetByPath(node[XMLValuesKey], path)
	}

	v, ok := node[path[0]]
	if !ok {
		return NotFound
	}
	return GetByPath(v, path[1:])
}

// GetByPathString is GetByPath over a dotted path string.
func GetByPathString(tree any, path string) any {
	return GetByPath(tree, SplitPath(path))
}

// isAttributeNode reports whether node is the XML attribute shape.
func isAttributeNode(node map[string]any) bool {
	t, ok := node[XMLValueTypeKey].(string)
	return ok && t == XMLAttributeType
}

// nodeValue unwraps an XML attribute node to its inner values; any other
// node passes through unchanged.
func nodeValue(node any) any {
	if m, ok := node.(map[string]any); ok && isAttributeNode(m) {
		return m[XMLValuesKey]
	}
	return node
}

// ExtractItems locates the item list in tree per listKey. A repeaterKey
// names the XML element repeating once per item inside the container;
// JSON sources pass "".
//
// Reserved keys aside, the list key is resolved as a path (brackets
// stripped when present) and the addressed node is defensively filtered:
// a map container keeps only its array- and object-valued entries, so
// scalar junk siblings never become items.
func ExtractItems(tree any, listKey, repeaterKey string) []any {
	switch listKey {
	case ListKeyRootItems:
		return []any{tree}
	case ListKeyRootArray:
		if items, ok := tree.([]any); ok {
			return items
		}
		return nil
	}

	path := listKey
	if IsBracketPath(path) {
		path = TrimBrackets(path)
	}
	node := nodeValue(GetByPathString(tree, path))
	if IsNotFound(node) {
		return nil
	}

	if repeaterKey != "" {
		if m, ok := node.(map[string]any); ok {
			node = nodeValue(m[repeaterKey])
		}
		// A single repeated element decodes as one map, not a list.
		if m, ok := node.(map[string]any); ok {
			return []any{m}
		}
	}

	switch n := node.(type) {
	case []any:
		return n
	case map[string]any:
		return arrayEntries(n)
	}
	return nil
}

// arrayEntries returns the container's array- and object-valued entries
// in key order, flattening array values into individual items.
func arrayEntries(container map[string]any) []any {
	keys := make([]string, 0, len(container))
	for k := range container {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var items []any
	for _, k := range keys {
		switch v := container[k].(type) {
		case []any:
			items = append(items, v...)
		case map[string]any:
			items = append(items, v)
		}
	}
	return items
}
