package schema

import (
	"strings"
	"time"

	"github.com/autom8ter/docmap/storage"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Kind is the declared type of a field. The set is closed: every kind knows how to demongoize a
// raw stored value into its application-level representation.
type Kind string

const (
	String    Kind = "string"
	Integer   Kind = "integer"
	Float     Kind = "float"
	Boolean   Kind = "boolean"
	Time      Kind = "time"
	ObjectID  Kind = "object_id"
	Array     Kind = "array"
	Hash      Kind = "hash"
	Localized Kind = "localized"
	Unknown   Kind = "unknown"
)

var kinds = []Kind{String, Integer, Float, Boolean, Time, ObjectID, Array, Hash, Localized, Unknown}

// Valid returns true if the kind is one of the known kinds
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind parses a kind name, accepting common aliases. Unrecognized names map to Unknown.
func ParseKind(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "symbol", "text":
		return String
	case "integer", "int", "int64":
		return Integer
	case "float", "double", "decimal", "number":
		return Float
	case "boolean", "bool":
		return Boolean
	case "time", "datetime", "date", "timestamp":
		return Time
	case "object_id", "objectid", "bson::objectid":
		return ObjectID
	case "array", "list":
		return Array
	case "hash", "object", "map":
		return Hash
	case "localized":
		return Localized
	default:
		return Unknown
	}
}

// demongoize converts a raw value according to the kind. elem is the element kind of arrays and
// the value kind of localized fields.
func (k Kind) demongoize(raw any, elem Kind, locale Locale) any {
	if raw == nil {
		return nil
	}
	switch k {
	case String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return Demongoize(raw)
		}
		return s
	case Integer:
		i, err := cast.ToInt64E(raw)
		if err != nil {
			return nil
		}
		return i
	case Float:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil
		}
		return f
	case Boolean:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return nil
		}
		return b
	case Time:
		if t, ok := storage.ToTime(raw); ok {
			return t.UTC()
		}
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return nil
		}
		return t.UTC()
	case ObjectID:
		if s, ok := raw.(string); ok {
			if id, err := bson.ObjectIDFromHex(s); err == nil {
				return id
			}
		}
		return Demongoize(raw)
	case Array:
		values, ok := storage.AsArray(raw)
		if !ok {
			return Demongoize(raw)
		}
		out := make([]any, 0, len(values))
		for _, v := range values {
			if elem == "" || elem == Unknown {
				out = append(out, Demongoize(v))
			} else {
				out = append(out, elem.demongoize(v, "", locale))
			}
		}
		return out
	case Hash:
		return Demongoize(raw)
	case Localized:
		value := raw
		if translations, ok := storage.AsDocument(raw); ok {
			value = locale.Lookup(translations)
		}
		if elem == "" || elem == Unknown || elem == Localized {
			return Demongoize(value)
		}
		return elem.demongoize(value, "", locale)
	default:
		return Demongoize(raw)
	}
}

// Demongoize converts a raw value without a declared field, keyed off its dynamic type: BSON
// datetimes become time.Time, embedded documents bson.M and arrays []any.
func Demongoize(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC()
	case bson.DateTime, bson.Timestamp:
		t, _ := storage.ToTime(v)
		return t
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case bson.M, map[string]any, bson.D:
		doc, _ := storage.AsDocument(v)
		out := make(bson.M, len(doc))
		for key, value := range doc {
			out[key] = Demongoize(value)
		}
		return out
	case []any, bson.A:
		values, _ := storage.AsArray(v)
		out := make([]any, len(values))
		for i, value := range values {
			out[i] = Demongoize(value)
		}
		return out
	default:
		return v
	}
}
