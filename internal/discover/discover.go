// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover bootstraps response-key mappings for a service
// request from one live sample response. It infers the item container
// for JSON sources and binds flattened leaf paths to existing or new
// response-key definitions.
// Implements: prd002-mapping (R5, populate).
package discover

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/harvest-engine/internal/response"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

// Binding records one discovered field: the response-key name it bound
// to and the source path. Created marks keys that did not exist before.
type Binding struct {
	Name    string
	Path    string
	Created bool
}

// Populator runs discovery against a destination service request.
// Problems (invalid samples, conversion failures) accumulate on the
// embedded error list so a run can bind what it can and report the rest.
type Populator struct {
	// Overwrite lets discovery replace an existing key's non-empty
	// value. Cleared (the default) makes re-population non-destructive.
	Overwrite bool

	types.ErrorList
}

// New returns a Populator. Pass overwrite=true only when the caller
// explicitly asked to re-map existing keys.
func New(overwrite bool) *Populator {
	return &Populator{Overwrite: overwrite}
}

// PopulateJSON discovers field bindings from a raw JSON sample and
// applies them to sr: the item container becomes sr.ListKey and each
// leaf path binds to a response key. gjson drives the walk because it
// iterates keys in document order, which the tie-break rule needs.
func (p *Populator) PopulateJSON(sr *types.ServiceRequest, sample []byte) ([]Binding, error) {
	if !gjson.ValidBytes(sample) {
		return nil, fmt.Errorf("populate %s: sample is not valid JSON", sr.Name)
	}
	body := gjson.ParseBytes(sample)

	listKey := FindItemContainer(body)
	if sr.ListKey == "" || p.Overwrite {
		sr.ListKey = listKey
	}

	item := itemNode(body, listKey, sr.Type)
	if !item.Exists() {
		return nil, fmt.Errorf("populate %s: no item node under list key %q", sr.Name, listKey)
	}

	var leaves []Binding
	flattenJSON(item, "", &leaves)
	return p.bind(sr, leaves), nil
}

// PopulateXML discovers field bindings from a raw XML sample. XML
// repeating-element names are not reliably inferable from one sample, so
// the service request must already carry list_key and
// list_item_repeater_key; their absence is a configuration error.
func (p *Populator) PopulateXML(sr *types.ServiceRequest, sample []byte) ([]Binding, error) {
	if sr.ListKey == "" || sr.ListItemRepeaterKey == "" {
		return nil, fmt.Errorf(
			"populate %s: XML discovery requires list_key and list_item_repeater_key", sr.Name)
	}

	tree, err := response.DecodeXML(strings.NewReader(string(sample)))
	if err != nil {
		return nil, fmt.Errorf("populate %s: %w", sr.Name, err)
	}

	items := response.ExtractItems(tree, sr.ListKey, sr.ListItemRepeaterKey)
	if len(items) == 0 {
		return nil, fmt.Errorf("populate %s: no items under list key %q", sr.Name, sr.ListKey)
	}

	node := any(items[0])
	if sr.Type == types.SrTypeSingle || sr.Type == types.SrTypeDetail {
		node = tree
	}

	var leaves []Binding
	flattenTree(node, "", &leaves)
	return p.bind(sr, leaves), nil
}

// itemNode selects the node whose fields get mapped: the first element
// of the container for list requests, the extracted node itself for
// single/detail.
func itemNode(body gjson.Result, listKey string, srType types.SrType) gjson.Result {
	var container gjson.Result
	switch listKey {
	case response.ListKeyRootItems, response.ListKeyRootArray:
		container = body
	default:
		container = body.Get(listKey)
	}

	if srType == types.SrTypeSingle || srType == types.SrTypeDetail {
		return container
	}
	if container.IsArray() {
		arr := container.Array()
		if len(arr) == 0 {
			return gjson.Result{}
		}
		return arr[0]
	}
	return container
}

// FindItemContainer scores every container key in body and returns the
// most probable item-list location: a dotted path, or one of the
// reserved root keys when the response itself is the container.
func FindItemContainer(body gjson.Result) string {
	if body.IsArray() {
		return response.ListKeyRootArray
	}

	best := ""
	bestScore := 0
	scoreContainers(body, "", func(path string, score int) {
		// Strictly-greater keeps the first (document-order) candidate
		// on ties.
		if score > bestScore {
			best, bestScore = path, score
		}
	})
	if best == "" {
		return response.ListKeyRootItems
	}
	return best
}

// scoreContainers walks body depth-first in document order, reporting a
// containment score for every key holding an array of objects. The score
// counts recurring child keys: a key whose elements keep repeating the
// same field names looks like a list of homogeneous records.
func scoreContainers(node gjson.Result, prefix string, report func(path string, score int)) {
	node.ForEach(func(key, value gjson.Result) bool {
		path := key.String()
		if prefix != "" {
			path = prefix + "." + path
		}

		if value.IsArray() {
			if score := homogeneity(value); score > 0 {
				report(path, score)
			}
			return true
		}
		if value.IsObject() {
			scoreContainers(value, path, report)
		}
		return true
	})
}

// homogeneity counts repeated field names across the object elements of
// list. Non-object elements contribute nothing.
func homogeneity(list gjson.Result) int {
	counts := make(map[string]int)
	list.ForEach(func(_, element gjson.Result) bool {
		if element.IsObject() {
			element.ForEach(func(key, _ gjson.Result) bool {
				counts[key.String()]++
				return true
			})
		}
		return true
	})

	score := 0
	for _, c := range counts {
		if c > 1 {
			score += c - 1
		} else {
			// A single object element still scores: one-element lists
			// of records are common in sample responses.
			score++
		}
	}
	return score
}

// flattenJSON collects scalar and array leaves of node as dotted paths,
// in document order.
func flattenJSON(node gjson.Result, prefix string, out *[]Binding) {
	node.ForEach(func(key, value gjson.Result) bool {
		path := key.String()
		if prefix != "" {
			path = prefix + "." + path
		}
		if value.IsObject() {
			flattenJSON(value, path, out)
			return true
		}
		*out = append(*out, Binding{Name: lastSegment(path), Path: path})
		return true
	})
}

// flattenTree is flattenJSON over an already-decoded tree (XML sources).
// Map iteration order is not defined, so keys are sorted for stable output.
func flattenTree(node any, prefix string, out *[]Binding) {
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	if t, ok := m[response.XMLValueTypeKey].(string); ok && t == response.XMLAttributeType {
		if attrs, ok := m[response.XMLAttributesKey].(map[string]any); ok {
			flattenTree(attrs, prefix, out)
		}
		switch values := m[response.XMLValuesKey].(type) {
		case map[string]any:
			flattenTree(values, prefix, out)
		default:
			if prefix != "" {
				*out = append(*out, Binding{Name: lastSegment(prefix), Path: prefix})
			}
		}
		return
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]any:
			flattenTree(v, path, out)
		case []any:
			*out = append(*out, Binding{Name: lastSegment(path), Path: path})
		default:
			*out = append(*out, Binding{Name: lastSegment(path), Path: path})
		}
	}
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

// bind matches each discovered leaf against the existing response keys
// and creates definitions for the rest. Matching priority per leaf name:
// exact, snake_case, camelCase, then kebab-case; the first hit wins. An
// existing key's non-empty value is left untouched unless Overwrite is
// set, so repeated discovery never destroys hand-tuned mappings.
func (p *Populator) bind(sr *types.ServiceRequest, leaves []Binding) []Binding {
	bindings := make([]Binding, 0, len(leaves))

	for _, leaf := range leaves {
		existing := matchKey(sr, leaf.Name)
		if existing != nil {
			if existing.Value == "" || p.Overwrite {
				existing.Value = leaf.Path
			}
			bindings = append(bindings, Binding{Name: existing.Name, Path: existing.Value})
			continue
		}

		name := SnakeCase(leaf.Name)
		if name == "" {
			p.AddError("populate %s: leaf %q converts to an empty key name", sr.Name, leaf.Path)
			continue
		}
		sr.ResponseKeys = append(sr.ResponseKeys, types.SrResponseKey{
			Name:           name,
			Value:          leaf.Path,
			ShowInResponse: true,
			ListItem:       sr.Type != types.SrTypeSingle && sr.Type != types.SrTypeDetail,
			ReturnDataType: types.ReturnText,
		})
		bindings = append(bindings, Binding{Name: name, Path: leaf.Path, Created: true})
	}

	return bindings
}

// matchKey finds the existing response key a discovered name binds to.
func matchKey(sr *types.ServiceRequest, name string) *types.SrResponseKey {
	for _, candidate := range []string{name, SnakeCase(name), CamelCase(name), KebabCase(name)} {
		if k := sr.ResponseKeyByName(candidate); k != nil {
			return k
		}
	}
	return nil
}
