package pathutil

import (
	"reflect"
	"strconv"
	"strings"
)

// GetOwn returns the member of container stored under key.
// Only members the container itself holds are considered: map keys,
// sequence elements and fields declared directly on a struct. Fields
// promoted from embedded structs are inherited and never returned.
// A nil container yields (nil, false). GetOwn never panics.
func GetOwn(container interface{}, key interface{}) (interface{}, bool) {
	if container == nil {
		return nil, false
	}

	switch c := container.(type) {
	case map[string]interface{}:
		name, ok := key.(string)
		if !ok || c == nil {
			return nil, false
		}
		value, ok := c[name]
		return value, ok
	case []interface{}:
		index, ok := toIndex(key)
		if !ok || index >= len(c) {
			return nil, false
		}
		return c[index], true
	}

	return getOwnReflect(reflect.ValueOf(container), key)
}

func getOwnReflect(val reflect.Value, key interface{}) (interface{}, bool) {
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil, false
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Map:
		if val.IsNil() || val.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		name, ok := key.(string)
		if !ok {
			return nil, false
		}
		item := val.MapIndex(reflect.ValueOf(name).Convert(val.Type().Key()))
		if !item.IsValid() {
			return nil, false
		}
		return item.Interface(), true

	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && val.IsNil() {
			return nil, false
		}
		index, ok := toIndex(key)
		if !ok || index >= val.Len() {
			return nil, false
		}
		return val.Index(index).Interface(), true

	case reflect.Struct:
		name, ok := key.(string)
		if !ok {
			return nil, false
		}
		typ := val.Type()
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			// Embedded structs act as prototypes; unexported fields are private.
			if field.Anonymous || field.PkgPath != "" {
				continue
			}
			fieldName, skip := jsonFieldName(field)
			if skip {
				continue
			}
			if fieldName == name {
				return val.Field(i).Interface(), true
			}
		}
		return nil, false

	default:
		return nil, false
	}
}

const maxInt = int(^uint(0) >> 1)

// toIndex accepts integer keys and decimal strings for sequence access.
// Keys that do not fit a non-negative int are never indexes.
func toIndex(key interface{}) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, k >= 0
	case int64:
		return fitIndex(k >= 0 && uint64(k) <= uint64(maxInt), uint64(k))
	case int32:
		return int(k), k >= 0
	case uint:
		return fitIndex(uint64(k) <= uint64(maxInt), uint64(k))
	case uint32:
		return fitIndex(uint64(k) <= uint64(maxInt), uint64(k))
	case uint64:
		return fitIndex(k <= uint64(maxInt), k)
	case string:
		if !isDigits(k) {
			return 0, false
		}
		index, err := strconv.Atoi(k)
		if err != nil {
			return 0, false
		}
		return index, true
	default:
		return 0, false
	}
}

func fitIndex(fits bool, k uint64) (int, bool) {
	if !fits {
		return 0, false
	}
	return int(k), true
}

func jsonFieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return "", true
	}
	if name == "" {
		return field.Name, false
	}
	return name, false
}
