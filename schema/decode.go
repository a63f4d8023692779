package schema

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/effectus/extension-sdk/pathutil"
)

// Document kinds
const (
	KindContentType = "content_type"
	KindGlobalField = "global_field"
)

// ContentType is a top-level schema document. Global field definitions
// share the same shape.
type ContentType struct {
	UID    string
	Title  string
	Schema []Node
	Raw    map[string]interface{}
}

// DecodeContentType decodes a content type (or global field) document
func DecodeContentType(raw map[string]interface{}) (*ContentType, error) {
	if raw == nil {
		return nil, fmt.Errorf("content type document is empty")
	}

	ct := &ContentType{Raw: raw}
	ct.UID, _ = raw["uid"].(string)
	ct.Title, _ = raw["title"].(string)

	nodes, err := decodeList(raw["schema"], "schema")
	if err != nil {
		return nil, fmt.Errorf("content type %q: %w", ct.UID, err)
	}
	ct.Schema = nodes
	return ct, nil
}

// Decode decodes a single schema node
func Decode(raw map[string]interface{}) (Node, error) {
	uid, _ := raw["uid"].(string)
	if uid == "" {
		return nil, fmt.Errorf("schema node without uid")
	}
	dataType, _ := raw["data_type"].(string)
	multiple, _ := raw["multiple"].(bool)
	b := base{uid: uid, dataType: dataType, raw: raw}

	switch dataType {
	case TypeGroup:
		children, err := decodeList(raw["schema"], uid)
		if err != nil {
			return nil, err
		}
		return &Group{base: b, Multiple: multiple, Schema: children}, nil

	case TypeGlobalField:
		children, err := decodeList(raw["schema"], uid)
		if err != nil {
			return nil, err
		}
		ref, _ := raw["reference_to"].(string)
		return &GlobalField{base: b, Multiple: multiple, ReferenceTo: ref, Schema: children}, nil

	case TypeBlocks:
		items, ok := asList(raw["blocks"])
		if !ok {
			return nil, fmt.Errorf("%s: blocks must be a list", uid)
		}
		container := &Blocks{base: b}
		seen := make(map[string]bool, len(items))
		for i, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s: block %d is not an object", uid, i)
			}
			block, err := decodeBlock(m)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", uid, err)
			}
			if seen[block.uid] {
				return nil, fmt.Errorf("%s: duplicate block uid %q", uid, block.uid)
			}
			seen[block.uid] = true
			container.Blocks = append(container.Blocks, block)
		}
		return container, nil

	default:
		return &Field{base: b, Multiple: multiple}, nil
	}
}

func decodeBlock(raw map[string]interface{}) (*BlockType, error) {
	uid, _ := raw["uid"].(string)
	if uid == "" {
		return nil, fmt.Errorf("block without uid")
	}
	children, err := decodeList(raw["schema"], uid)
	if err != nil {
		return nil, err
	}
	block := &BlockType{
		base:   base{uid: uid, dataType: TypeBlock, raw: raw},
		Schema: children,
	}
	block.Title, _ = raw["title"].(string)
	block.ReferenceTo, _ = raw["reference_to"].(string)
	return block, nil
}

// decodeList decodes an ordered child schema. A missing schema is empty.
func decodeList(value interface{}, owner string) ([]Node, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := asList(value)
	if !ok {
		return nil, fmt.Errorf("%s: schema must be a list", owner)
	}

	nodes := make([]Node, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: schema item %d is not an object", owner, i)
		}
		n, err := Decode(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", owner, err)
		}
		if seen[n.UID()] {
			return nil, fmt.Errorf("%s: duplicate uid %q", owner, n.UID())
		}
		seen[n.UID()] = true
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func asList(value interface{}) ([]interface{}, bool) {
	if value == nil {
		return nil, true
	}
	items, ok := value.([]interface{})
	return items, ok
}

// ParseDocument parses a JSON or YAML schema document. The document may be
// bare or wrapped in a {"content_type": ...} or {"global_field": ...}
// envelope; the envelope decides the returned kind, content_type otherwise.
// format is "json", "yaml" or "" to sniff.
func ParseDocument(data []byte, format string) (*ContentType, string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" || format == "auto" {
		format = sniffFormat(data)
	}

	var (
		raw  interface{}
		kind = KindContentType
		err  error
	)

	switch format {
	case "json":
		if !gjson.ValidBytes(data) {
			return nil, "", fmt.Errorf("invalid JSON schema document")
		}
		doc := gjson.ParseBytes(data)
		if inner := doc.Get(KindGlobalField); inner.IsObject() {
			kind = KindGlobalField
			doc = inner
		} else if inner := doc.Get(KindContentType); inner.IsObject() {
			doc = inner
		}
		raw = pathutil.FromResult(doc)

	case "yaml", "yml":
		if err = yaml.Unmarshal(data, &raw); err != nil {
			return nil, "", fmt.Errorf("parsing YAML schema document: %w", err)
		}
		if raw, err = pathutil.Normalize(raw); err != nil {
			return nil, "", fmt.Errorf("parsing YAML schema document: %w", err)
		}
		if m, ok := raw.(map[string]interface{}); ok {
			if inner, ok := m[KindGlobalField].(map[string]interface{}); ok {
				kind = KindGlobalField
				raw = inner
			} else if inner, ok := m[KindContentType].(map[string]interface{}); ok {
				raw = inner
			}
		}

	default:
		return nil, "", fmt.Errorf("unsupported schema format %q", format)
	}

	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, "", fmt.Errorf("schema document must be an object, got %T", raw)
	}
	ct, err := DecodeContentType(m)
	if err != nil {
		return nil, "", err
	}
	return ct, kind, nil
}

func sniffFormat(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "json"
	}
	return "yaml"
}
