// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Reserved document field names. Every harvested document carries all
// three in addition to its mapped response-key fields.
const (
	FieldProvider       = "provider"
	FieldServiceRequest = "serviceRequest"
	FieldItemID         = "item_id"
)

// Document is one denormalized harvested record. There is no fixed
// schema beyond the reserved fields above.
type Document map[string]any

// ItemID returns the document's stable external item identifier, or "".
func (d Document) ItemID() string {
	if v, ok := d[FieldItemID].(string); ok {
		return v
	}
	return ""
}

// Provider returns the owning provider name, or "".
func (d Document) Provider() string {
	if v, ok := d[FieldProvider].(string); ok {
		return v
	}
	return ""
}

// Pin names one document forced into a result page. InsertIndex is the
// global (cross-page) target position; only custom pins use it.
type Pin struct {
	DocumentID  string `json:"document_id" yaml:"document_id"`
	InsertIndex int    `json:"insert_index,omitempty" yaml:"insert_index,omitempty"`
}

// PositionConfig is a query-time instruction set forcing documents into
// result positions independent of ranking. It is never persisted.
type PositionConfig struct {
	Start  []Pin `json:"start,omitempty" yaml:"start,omitempty"`
	End    []Pin `json:"end,omitempty" yaml:"end,omitempty"`
	Custom []Pin `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// IsZero reports whether no pins are configured.
func (p PositionConfig) IsZero() bool {
	return len(p.Start) == 0 && len(p.End) == 0 && len(p.Custom) == 0
}

// PinnedIDs returns every pinned document id in declaration order:
// start, then end, then custom.
func (p PositionConfig) PinnedIDs() []string {
	ids := make([]string, 0, len(p.Start)+len(p.End)+len(p.Custom))
	for _, pin := range p.Start {
		ids = append(ids, pin.DocumentID)
	}
	for _, pin := range p.End {
		ids = append(ids, pin.DocumentID)
	}
	for _, pin := range p.Custom {
		ids = append(ids, pin.DocumentID)
	}
	return ids
}
