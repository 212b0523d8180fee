package kvstore

import (
	"strconv"
	"strings"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/storage"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// match reports whether the document satisfies the filter
func match(doc bson.M, filter bson.M) (bool, error) {
	for key, cond := range filter {
		ok, err := matchKey(doc, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchKey(doc bson.M, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, ok := toList(cond)
		if !ok {
			return false, errors.New(errors.Validation, "%s requires an array of filters", key)
		}
		for _, clause := range clauses {
			sub, ok := storage.AsDocument(storage.Normalize(clause))
			if !ok {
				return false, errors.New(errors.Validation, "%s requires an array of filters", key)
			}
			matched, err := match(doc, sub)
			if err != nil {
				return false, err
			}
			switch {
			case key == "$and" && !matched:
				return false, nil
			case key == "$or" && matched:
				return true, nil
			case key == "$nor" && matched:
				return false, nil
			}
		}
		return key != "$or", nil
	}
	if strings.HasPrefix(key, "$") {
		return false, errors.New(errors.Validation, "unsupported top level operator: %s", key)
	}
	values, found := lookupAll(doc, strings.Split(key, "."))
	operators, isOperators := operatorDocument(cond)
	if !isOperators {
		return matchEquals(values, found, cond), nil
	}
	for op, arg := range operators {
		ok, err := matchOperator(values, found, op, arg)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// operatorDocument returns the condition as an operator document if all of its keys are operators
func operatorDocument(cond any) (bson.M, bool) {
	doc, ok := storage.AsDocument(cond)
	if !ok || len(doc) == 0 {
		return nil, false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return doc, true
}

func matchOperator(values []any, found bool, op string, arg any) (bool, error) {
	switch op {
	case "$eq":
		return matchEquals(values, found, arg), nil
	case "$ne":
		return !matchEquals(values, found, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range expand(values) {
			if bracket(v) != bracket(arg) || v == nil {
				continue
			}
			c := compareValues(v, arg)
			if (op == "$gt" && c > 0) || (op == "$gte" && c >= 0) || (op == "$lt" && c < 0) || (op == "$lte" && c <= 0) {
				return true, nil
			}
		}
		return false, nil
	case "$in", "$nin":
		list, ok := toList(arg)
		if !ok {
			return false, errors.New(errors.Validation, "%s requires an array", op)
		}
		in := false
		for _, candidate := range list {
			if matchEquals(values, found, candidate) {
				in = true
				break
			}
		}
		return in == (op == "$in"), nil
	case "$exists":
		return found == cast.ToBool(arg), nil
	case "$not":
		sub, ok := operatorDocument(arg)
		if !ok {
			return false, errors.New(errors.Validation, "$not requires an operator document")
		}
		for subOp, subArg := range sub {
			matched, err := matchOperator(values, found, subOp, subArg)
			if err != nil {
				return false, err
			}
			if !matched {
				return true, nil
			}
		}
		return false, nil
	case "$size":
		size := cast.ToInt(arg)
		for _, v := range values {
			if arr, ok := storage.AsArray(v); ok && len(arr) == size {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, errors.New(errors.Validation, "unsupported operator: %s", op)
	}
}

// matchEquals applies equality semantics: a value matches if it equals the condition or if it is
// an array containing the condition. A nil condition matches missing fields.
func matchEquals(values []any, found bool, cond any) bool {
	cond = storage.Normalize(cond)
	if cond == nil && !found {
		return true
	}
	for _, v := range values {
		if equalValues(v, cond) {
			return true
		}
		if arr, ok := storage.AsArray(v); ok {
			for _, elem := range arr {
				if equalValues(elem, cond) {
					return true
				}
			}
		}
	}
	return false
}

// expand returns the values with array values replaced by their elements
func expand(values []any) []any {
	var out []any
	for _, v := range values {
		if arr, ok := storage.AsArray(v); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// lookupAll resolves a dotted path against a value, traversing into the documents of arrays.
// Numeric segments index into arrays.
func lookupAll(value any, segments []string) ([]any, bool) {
	if len(segments) == 0 {
		return []any{value}, true
	}
	segment := segments[0]
	if doc, ok := storage.AsDocument(value); ok {
		next, ok := doc[segment]
		if !ok {
			return nil, false
		}
		return lookupAll(next, segments[1:])
	}
	if arr, ok := storage.AsArray(value); ok {
		if i, err := strconv.Atoi(segment); err == nil {
			if i < 0 || i >= len(arr) {
				return nil, false
			}
			return lookupAll(arr[i], segments[1:])
		}
		var (
			out   []any
			found bool
		)
		for _, elem := range arr {
			if _, isDoc := storage.AsDocument(elem); !isDoc {
				continue
			}
			values, ok := lookupAll(elem, segments)
			if ok {
				found = true
				out = append(out, values...)
			}
		}
		return out, found
	}
	return nil, false
}

// sortValue returns the value a document sorts by for the path
func sortValue(doc bson.M, path string) any {
	values, found := lookupAll(doc, strings.Split(path, "."))
	if !found || len(values) == 0 {
		return nil
	}
	return values[0]
}
