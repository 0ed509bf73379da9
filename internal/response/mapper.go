// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package response

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/harvest-engine/internal/template"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

// Mapper projects raw response nodes onto normalized documents using
// response-key definitions. Configuration problems (bad return types,
// missing nested-request descriptors, unparseable dates) accumulate on
// the embedded error list so one pass reports every broken mapping; the
// affected field keeps its raw value and the batch continues.
type Mapper struct {
	provider *types.Provider
	eng      *template.Engine
	ctx      *template.Context
	types.ErrorList
}

// NewMapper returns a Mapper for one provider's responses. The engine
// and context perform reserved-placeholder replacement inside extracted
// values ([API_BASE_URL] and friends).
func NewMapper(provider *types.Provider, eng *template.Engine, ctx *template.Context) *Mapper {
	return &Mapper{provider: provider, eng: eng, ctx: ctx}
}

// MapItems maps the per-item response keys (list_item set) across every
// element of items. Each resulting document additionally carries the
// provider name.
func (m *Mapper) MapItems(items []any, keys []types.SrResponseKey) []types.Document {
	docs := make([]types.Document, 0, len(items))
	for _, item := range items {
		doc := m.mapKeys(item, keys, true)
		doc[types.FieldProvider] = m.provider.Name
		docs = append(docs, doc)
	}
	return docs
}

// MapListLevel maps the list-level response keys (list_item cleared)
// once against the whole parent structure.
func (m *Mapper) MapListLevel(tree any, keys []types.SrResponseKey) types.Document {
	return m.mapKeys(tree, keys, false)
}

func (m *Mapper) mapKeys(node any, keys []types.SrResponseKey, perItem bool) types.Document {
	doc := make(types.Document)
	for i := range keys {
		key := &keys[i]
		if !key.ShowInResponse || key.ListItem != perItem {
			continue
		}
		doc[key.Name] = m.extract(node, key)
	}
	return doc
}

// extract resolves one response key against node and applies its
// return-type transform, decoration, and nested-request wrapping.
func (m *Mapper) extract(node any, key *types.SrResponseKey) any {
	var source any
	if key.CustomValue != "" {
		source = m.eng.Resolve(key.CustomValue, m.ctx)
	} else {
		source = GetByPath(node, SplitPath(key.Value))
	}

	var value any
	switch key.ReturnDataType {
	case types.ReturnArray:
		value = m.extractArray(source, key.ArrayKeys)
	case types.ReturnObject:
		value = m.extractObject(source, key.ArrayKeys)
	case types.ReturnText, "":
		value = m.extractText(source, key)
	default:
		m.AddError("response key %q: unknown return data type %q", key.Name, key.ReturnDataType)
		value = source
	}

	if key.IsServiceRequest {
		value = m.wrapNested(value, key)
	}
	return value
}

// extractText reduces source to a scalar. An iterable-of-objects source
// with configured array keys yields the first element whose first match
// expression resolves; everything else passes through as the scalar.
func (m *Mapper) extractText(source any, key *types.SrResponseKey) any {
	if list, ok := source.([]any); ok && len(key.ArrayKeys) > 0 {
		expr := key.ArrayKeys[0].Value
		for _, element := range list {
			if v := resolveMatch(element, expr); !IsNotFound(v) {
				return m.finishText(v, key)
			}
		}
		return NotFound
	}
	return m.finishText(nodeValue(source), key)
}

// finishText applies date normalization, prepend/append decoration, and
// reserved-placeholder replacement to a scalar value.
func (m *Mapper) finishText(value any, key *types.SrResponseKey) any {
	s, isString := value.(string)
	if !isString {
		if !key.PrependExtraData && !key.AppendExtraData && !key.IsDate {
			return value
		}
		s = fmt.Sprint(value)
	}

	if key.IsDate {
		s = m.normalizeDate(key, s)
	}
	if key.PrependExtraData && key.PrependExtraDataValue != "" {
		s = key.PrependExtraDataValue + s
	}
	if key.AppendExtraData && key.AppendExtraDataValue != "" {
		s = s + key.AppendExtraDataValue
	}
	return m.eng.ResolveKnown(s, m.ctx)
}

// extractArray builds one sub-object per source element, keyed by the
// configured array-key names. With no array keys the raw source array
// passes through unchanged.
func (m *Mapper) extractArray(source any, arrayKeys []types.ArrayKey) any {
	list, ok := source.([]any)
	if !ok {
		if IsNotFound(source) {
			return NotFound
		}
		// A single object where a list was expected maps as one element.
		list = []any{source}
	}
	if len(arrayKeys) == 0 {
		return list
	}

	out := make([]any, 0, len(list))
	for _, element := range list {
		sub := make(map[string]any, len(arrayKeys))
		for _, ak := range arrayKeys {
			if v := resolveMatch(element, ak.Value); !IsNotFound(v) {
				sub[ak.Name] = v
			}
		}
		if len(sub) > 0 {
			out = append(out, sub)
		}
	}
	return out
}

// extractObject is extractArray flattened into a single object; when
// several elements resolve the same key name the last one wins.
func (m *Mapper) extractObject(source any, arrayKeys []types.ArrayKey) any {
	list, ok := source.([]any)
	if !ok {
		if IsNotFound(source) {
			return NotFound
		}
		list = []any{source}
	}

	out := make(map[string]any, len(arrayKeys))
	for _, element := range list {
		for _, ak := range arrayKeys {
			if v := resolveMatch(element, ak.Value); !IsNotFound(v) {
				out[ak.Name] = v
			}
		}
	}
	return out
}

// resolveMatch evaluates one array-key match expression against an
// element. Three forms are supported: a plain key lookup, a dotted path,
// and a "path.to.key=VALUE" equality filter that yields the element's
// value only when the addressed terminal equals VALUE (used to pick
// attribute-tagged XML nodes out of heterogeneous lists).
func resolveMatch(element any, expr string) any {
	if path, want, ok := strings.Cut(expr, "="); ok {
		got := GetByPath(element, SplitPath(path))
		if IsNotFound(got) {
			return NotFound
		}
		if fmt.Sprint(got) == want {
			return nodeValue(element)
		}
		return NotFound
	}
	return nodeValue(GetByPath(element, SplitPath(expr)))
}

// wrapNested describes the sub-request that fully resolves a
// service-request-backed field. Triggering it is the harvester's job;
// the mapper only records the linkage.
func (m *Mapper) wrapNested(value any, key *types.SrResponseKey) any {
	if key.Nested == nil {
		m.AddError("response key %q: is_service_request set but no nested request configured", key.Name)
		return value
	}
	return map[string]any{
		"data": value,
		"request_item": map[string]any{
			"request_name":       key.Nested.RequestName,
			"request_operation":  key.Nested.RequestOperation,
			"request_parameters": key.Nested.RequestParams,
		},
	}
}

// dateLayouts are tried in order when a response key has no explicit
// date format.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
}

// normalizeDate parses s per the key's date format and renders RFC 3339.
// A failed parse retries once with "/" separators normalized to "-";
// if that also fails the problem is recorded and the raw string kept, so
// one bad date never aborts a batch.
func (m *Mapper) normalizeDate(key *types.SrResponseKey, s string) string {
	layouts := dateLayouts
	if key.DateFormat != "" {
		layouts = []string{key.DateFormat}
	}

	for _, candidate := range []string{s, strings.ReplaceAll(s, "/", "-")} {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t.Format(time.RFC3339)
			}
		}
	}

	m.AddError("response key %q: cannot parse date %q", key.Name, s)
	return s
}
