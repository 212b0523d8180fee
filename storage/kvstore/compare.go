package kvstore

import (
	"bytes"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/autom8ter/docmap/storage"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// type brackets, in BSON comparison order
const (
	bracketNull = iota
	bracketNumber
	bracketString
	bracketDocument
	bracketArray
	bracketObjectID
	bracketBool
	bracketTime
	bracketOther
)

func bracket(v any) int {
	switch v.(type) {
	case nil:
		return bracketNull
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return bracketNumber
	case string:
		return bracketString
	case bson.M, map[string]any, bson.D:
		return bracketDocument
	case []any, bson.A:
		return bracketArray
	case bson.ObjectID:
		return bracketObjectID
	case bool:
		return bracketBool
	case time.Time, bson.DateTime, bson.Timestamp:
		return bracketTime
	default:
		return bracketOther
	}
}

// compareValues orders two values the way BSON sorts them: first by type bracket, then by value
func compareValues(a, b any) int {
	ba, bb := bracket(a), bracket(b)
	if ba != bb {
		return compareInts(int64(ba), int64(bb))
	}
	switch ba {
	case bracketNull:
		return 0
	case bracketNumber:
		return compareFloats(cast.ToFloat64(a), cast.ToFloat64(b))
	case bracketString:
		return strings.Compare(a.(string), b.(string))
	case bracketObjectID:
		ida, idb := a.(bson.ObjectID), b.(bson.ObjectID)
		return bytes.Compare(ida[:], idb[:])
	case bracketBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case bracketTime:
		ta, _ := storage.ToTime(a)
		tb, _ := storage.ToTime(b)
		return ta.Compare(tb)
	case bracketArray:
		aa, _ := storage.AsArray(a)
		ab, _ := storage.AsArray(b)
		for i := 0; i < len(aa) && i < len(ab); i++ {
			if c := compareValues(aa[i], ab[i]); c != 0 {
				return c
			}
		}
		return compareInts(int64(len(aa)), int64(len(ab)))
	case bracketDocument:
		da, _ := storage.AsDocument(a)
		db, _ := storage.AsDocument(b)
		ka, kb := sortedKeys(da), sortedKeys(db)
		for i := 0; i < len(ka) && i < len(kb); i++ {
			if c := strings.Compare(ka[i], kb[i]); c != 0 {
				return c
			}
			if c := compareValues(da[ka[i]], db[kb[i]]); c != 0 {
				return c
			}
		}
		return compareInts(int64(len(ka)), int64(len(kb)))
	default:
		if reflect.DeepEqual(a, b) {
			return 0
		}
		return strings.Compare(cast.ToString(a), cast.ToString(b))
	}
}

// equalValues reports whether two values are equal, treating all numeric types alike
func equalValues(a, b any) bool {
	if bracket(a) != bracket(b) {
		return false
	}
	return compareValues(a, b) == 0
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sortedKeys(doc bson.M) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toList converts any slice value into []any
func toList(value any) ([]any, bool) {
	if values, ok := storage.AsArray(value); ok {
		return values, true
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = storage.Normalize(rv.Index(i).Interface())
	}
	return out, true
}
