// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package response

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DecodeXML parses an arbitrary XML document into the navigable tree
// shape used by GetByPath: elements become map entries keyed by local
// name, repeated siblings collapse into a list, and any element carrying
// attributes is wrapped into the attribute-node shape so both its
// attributes and its values stay addressable.
//
// The returned tree is a single-entry map keyed by the root element
// name, mirroring how a JSON object body decodes.
func DecodeXML(r io.Reader) (map[string]any, error) {
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("parsing XML: no root element")
			}
			return nil, fmt.Errorf("parsing XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		value, err := decodeElement(dec, start)
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}
		return map[string]any{start.Name.Local: value}, nil
	}
}

// decodeElement consumes one element and its subtree.
func decodeElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	children := make(map[string]any)
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			addChild(children, t.Name.Local, child)

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			return wrapElement(start, children, text.String()), nil
		}
	}
}

// addChild inserts child under name, promoting repeated siblings to a list.
func addChild(children map[string]any, name string, child any) {
	existing, ok := children[name]
	if !ok {
		children[name] = child
		return
	}
	if list, ok := existing.([]any); ok {
		children[name] = append(list, child)
		return
	}
	children[name] = []any{existing, child}
}

// wrapElement produces the node value for a finished element: its child
// map when it has children, its trimmed text otherwise, wrapped into the
// attribute-node shape when attributes are present.
func wrapElement(start xml.StartElement, children map[string]any, text string) any {
	var value any
	if len(children) > 0 {
		value = children
	} else {
		value = strings.TrimSpace(text)
	}

	if len(start.Attr) == 0 {
		return value
	}

	attrs := make(map[string]any, len(start.Attr))
	for _, a := range start.Attr {
		attrs[a.Name.Local] = a.Value
	}
	return map[string]any{
		XMLValueTypeKey:  XMLAttributeType,
		XMLAttributesKey: attrs,
		XMLValuesKey:     value,
	}
}
