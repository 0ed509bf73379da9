// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package response

import (
	"strings"
	"testing"
)

const feedXML = `<?xml version="1.0"?>
<catalog count="2">
	<book id="b1" lang="en">
		<title>First Book</title>
		<price>9.99</price>
	</book>
	<book id="b2">
		<title>Second Book</title>
		<price>14.50</price>
	</book>
	<generator>harvest-test</generator>
</catalog>`

func TestDecodeXMLShape(t *testing.T) {
	tree, err := DecodeXML(strings.NewReader(feedXML))
	if err != nil {
		t.Fatalf("DecodeXML: %v", err)
	}

	root, ok := tree["catalog"].(map[string]any)
	if !ok {
		t.Fatalf("root shape: %T", tree["catalog"])
	}
	if !isAttributeNode(root) {
		t.Fatal("attributed root must wrap into the attribute-node shape")
	}

	attrs := root[XMLAttributesKey].(map[string]any)
	if attrs["count"] != "2" {
		t.Errorf("count attribute = %v", attrs["count"])
	}

	values := root[XMLValuesKey].(map[string]any)
	books, ok := values["book"].([]any)
	if !ok || len(books) != 2 {
		t.Fatalf("repeated siblings must collapse into a list, got %T", values["book"])
	}

	first := books[0].(map[string]any)
	if GetByPathString(first, "id") != "b1" {
		t.Errorf("book id attribute = %v", GetByPathString(first, "id"))
	}
	if GetByPathString(first, "title") != "First Book" {
		t.Errorf("book title = %v", GetByPathString(first, "title"))
	}

	if values["generator"] != "harvest-test" {
		t.Errorf("attribute-free leaf = %v", values["generator"])
	}
}

func TestDecodeXMLNavigable(t *testing.T) {
	tree, err := DecodeXML(strings.NewReader(feedXML))
	if err != nil {
		t.Fatalf("DecodeXML: %v", err)
	}

	// The decoded tree must navigate like a JSON body, through the
	// attribute wrapper.
	if got := GetByPathString(tree, "catalog.generator"); got != "harvest-test" {
		t.Errorf("path through attribute node = %v", got)
	}

	items := ExtractItems(tree, "catalog", "book")
	if len(items) != 2 {
		t.Fatalf("repeater extraction: want 2, got %d", len(items))
	}
}

func TestDecodeXMLErrors(t *testing.T) {
	if _, err := DecodeXML(strings.NewReader("")); err == nil {
		t.Error("empty input must fail")
	}
	if _, err := DecodeXML(strings.NewReader("<a><b></a>")); err == nil {
		t.Error("mismatched tags must fail")
	}
}
