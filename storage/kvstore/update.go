package kvstore

import (
	"reflect"
	"strings"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/storage"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// isOperatorUpdate reports whether the update is made of update operators rather than a
// replacement document
func isOperatorUpdate(update bson.M) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// applyUpdate returns a copy of the document with the update applied and whether it changed
func applyUpdate(doc bson.M, update bson.M, inserting bool) (bson.M, bool, error) {
	out := deepCopy(doc)
	if !isOperatorUpdate(update) {
		replacement := storage.NormalizeDocument(update)
		if id, ok := doc["_id"]; ok {
			replacement["_id"] = id
		}
		return replacement, !reflect.DeepEqual(doc, replacement), nil
	}
	for op, arg := range update {
		fields, ok := storage.AsDocument(storage.Normalize(arg))
		if !ok {
			return nil, false, errors.New(errors.Validation, "%s requires a document", op)
		}
		for path, value := range fields {
			if path == "_id" && op != "$setOnInsert" {
				if current, ok := doc["_id"]; ok && !equalValues(current, value) {
					return nil, false, errors.New(errors.Validation, "the _id field cannot be modified")
				}
			}
			segments := strings.Split(path, ".")
			switch op {
			case "$set":
				setPath(out, segments, value)
			case "$setOnInsert":
				if inserting {
					setPath(out, segments, value)
				}
			case "$unset":
				unsetPath(out, segments)
			case "$inc":
				current, _ := getPath(out, segments)
				sum, err := increment(current, value)
				if err != nil {
					return nil, false, errors.Wrap(err, 0, "$inc %s", path)
				}
				setPath(out, segments, sum)
			case "$push":
				current, exists := getPath(out, segments)
				var arr []any
				if exists && current != nil {
					existing, ok := storage.AsArray(current)
					if !ok {
						return nil, false, errors.New(errors.Validation, "$push %s: field is not an array", path)
					}
					arr = append(arr, existing...)
				}
				if modifiers, ok := storage.AsDocument(value); ok {
					if each, ok := modifiers["$each"]; ok {
						values, _ := toList(each)
						arr = append(arr, values...)
						setPath(out, segments, arr)
						continue
					}
				}
				setPath(out, segments, append(arr, value))
			default:
				return nil, false, errors.New(errors.Validation, "unsupported update operator: %s", op)
			}
		}
	}
	return out, !reflect.DeepEqual(doc, out), nil
}

func increment(current, delta any) (any, error) {
	if current == nil {
		current = int64(0)
	}
	if bracket(current) != bracketNumber || bracket(delta) != bracketNumber {
		return nil, errors.New(errors.Validation, "cannot increment a non-numeric value")
	}
	if isInteger(current) && isInteger(delta) {
		return cast.ToInt64(current) + cast.ToInt64(delta), nil
	}
	return cast.ToFloat64(current) + cast.ToFloat64(delta), nil
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func getPath(doc bson.M, segments []string) (any, bool) {
	return storage.Lookup(doc, strings.Join(segments, "."))
}

func setPath(doc bson.M, segments []string, value any) {
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(bson.M)
		if !ok {
			next = bson.M{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = storage.Normalize(value)
}

func unsetPath(doc bson.M, segments []string) {
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(bson.M)
		if !ok {
			return
		}
		current = next
	}
	delete(current, segments[len(segments)-1])
}

// upsertDocument seeds a new document from the equality conditions of a filter
func upsertDocument(filter bson.M) bson.M {
	doc := bson.M{}
	for key, cond := range filter {
		if strings.HasPrefix(key, "$") {
			continue
		}
		if ops, ok := operatorDocument(cond); ok {
			if eq, ok := ops["$eq"]; ok {
				setPath(doc, strings.Split(key, "."), eq)
			}
			continue
		}
		setPath(doc, strings.Split(key, "."), cond)
	}
	return doc
}

func deepCopy(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	return storage.Normalize(doc).(bson.M)
}
