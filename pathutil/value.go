package pathutil

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"
)

// Kind classifies a data value without reference to any schema
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindOf reports how value is shaped
func KindOf(value interface{}) Kind {
	switch value.(type) {
	case nil:
		return KindNull
	case map[string]interface{}:
		return KindMapping
	case []interface{}:
		return KindSequence
	case string, bool, float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		return KindScalar
	}

	val := reflect.ValueOf(value)
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return KindNull
		}
		val = val.Elem()
	}
	switch val.Kind() {
	case reflect.Map:
		if val.IsNil() {
			return KindNull
		}
		return KindMapping
	case reflect.Struct:
		return KindMapping
	case reflect.Slice:
		if val.IsNil() {
			return KindNull
		}
		return KindSequence
	case reflect.Array:
		return KindSequence
	default:
		return KindScalar
	}
}

// IsEmptyDocument reports whether value carries no data at all: nil or an
// empty mapping.
func IsEmptyDocument(value interface{}) bool {
	switch KindOf(value) {
	case KindNull:
		return true
	case KindMapping:
		if m, ok := value.(map[string]interface{}); ok {
			return len(m) == 0
		}
		val := reflect.Indirect(reflect.ValueOf(value))
		if val.Kind() == reflect.Map {
			return val.Len() == 0
		}
		return false
	default:
		return false
	}
}

// FromJSON decodes raw JSON into plain data values
func FromJSON(raw []byte) (interface{}, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	return FromResult(gjson.ParseBytes(raw)), nil
}

// FromResult converts a gjson result into plain data values
func FromResult(result gjson.Result) interface{} {
	switch result.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return result.Float()
	case gjson.String:
		return result.String()
	case gjson.JSON:
		if result.IsArray() {
			arr := result.Array()
			items := make([]interface{}, len(arr))
			for i, v := range arr {
				items[i] = FromResult(v)
			}
			return items
		}
		m := result.Map()
		object := make(map[string]interface{}, len(m))
		for k, v := range m {
			object[k] = FromResult(v)
		}
		return object
	default:
		return nil
	}
}

// Normalize converts Go values (structs, typed maps and slices, pointers)
// into plain data values keyed by their json names.
func Normalize(data interface{}) (interface{}, error) {
	if data == nil {
		return nil, nil
	}

	val := reflect.ValueOf(data)
	typ := val.Type()

	if typ.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, nil
		}
		return Normalize(val.Elem().Interface())
	}

	switch typ.Kind() {
	case reflect.Struct:
		if typ.PkgPath() == "time" && typ.Name() == "Time" {
			return data, nil
		}

		result := make(map[string]interface{})
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			if field.PkgPath != "" {
				continue
			}
			fieldName, skip := jsonFieldName(field)
			if skip {
				continue
			}
			processed, err := Normalize(val.Field(i).Interface())
			if err != nil {
				return nil, err
			}
			result[fieldName] = processed
		}
		return result, nil

	case reflect.Slice, reflect.Array:
		if typ.Kind() == reflect.Slice && val.IsNil() {
			return nil, nil
		}
		result := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			processed, err := Normalize(val.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			result[i] = processed
		}
		return result, nil

	case reflect.Map:
		if val.IsNil() {
			return nil, nil
		}
		if typ.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", typ.Key())
		}
		result := make(map[string]interface{}, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			processed, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			result[iter.Key().String()] = processed
		}
		return result, nil

	default:
		return data, nil
	}
}

// NormalizeDocument is Normalize for values that must be mappings
func NormalizeDocument(data interface{}) (map[string]interface{}, error) {
	converted, err := Normalize(data)
	if err != nil {
		return nil, err
	}
	if converted == nil {
		return map[string]interface{}{}, nil
	}
	result, ok := converted.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", converted)
	}
	return result, nil
}
