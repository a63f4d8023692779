package entry

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/effectus/extension-sdk/pathutil"
	"github.com/effectus/extension-sdk/schema"
)

// InitData is what the host hands over when an entry surface starts
type InitData struct {
	// ContentType is the persisted schema
	ContentType *schema.ContentType

	// Entry is the persisted data; empty before the first save
	Entry map[string]interface{}

	// Changed holds in-progress edits, nil when there are none
	Changed *Changes

	Locale string
}

// Changes are unsaved edits. ContentType is nil unless the schema itself changed.
type Changes struct {
	ContentType *schema.ContentType
	Entry       map[string]interface{}
}

// ParseInit decodes the host payload
// {content_type, entry, changedData: {content_type?, entry}, locale?}.
// The locale defaults to entry.locale.
func ParseInit(raw []byte) (*InitData, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid init payload")
	}
	doc := gjson.ParseBytes(raw)

	ct, err := decodeContentType(doc.Get("content_type"))
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, fmt.Errorf("init payload has no content_type")
	}

	init := &InitData{ContentType: ct}
	if init.Entry, err = decodeObject(doc.Get("entry"), "entry"); err != nil {
		return nil, err
	}

	if changed := doc.Get("changedData"); changed.Exists() && changed.Type != gjson.Null {
		init.Changed = &Changes{}
		if init.Changed.ContentType, err = decodeContentType(changed.Get("content_type")); err != nil {
			return nil, fmt.Errorf("changedData: %w", err)
		}
		if init.Changed.Entry, err = decodeObject(changed.Get("entry"), "changedData.entry"); err != nil {
			return nil, err
		}
	}

	init.Locale = doc.Get("locale").String()
	if init.Locale == "" {
		init.Locale = doc.Get("entry.locale").String()
	}
	return init, nil
}

func decodeContentType(result gjson.Result) (*schema.ContentType, error) {
	if !result.Exists() || result.Type == gjson.Null {
		return nil, nil
	}
	m, ok := pathutil.FromResult(result).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("content_type must be an object")
	}
	return schema.DecodeContentType(m)
}

func decodeObject(result gjson.Result, name string) (map[string]interface{}, error) {
	if !result.Exists() || result.Type == gjson.Null {
		return nil, nil
	}
	m, ok := pathutil.FromResult(result).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an object", name)
	}
	return m, nil
}
