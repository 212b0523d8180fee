package kvstore

import (
	"sort"
	"strings"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/storage"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// runPipeline runs the aggregation stages over the documents
func runPipeline(docs []bson.M, pipeline []bson.M) ([]bson.M, error) {
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, errors.New(errors.Validation, "a pipeline stage must have exactly one key")
		}
		for name, arg := range stage {
			var err error
			docs, err = runStage(docs, name, arg)
			if err != nil {
				return nil, errors.Wrap(err, 0, "stage %s", name)
			}
		}
	}
	return docs, nil
}

func runStage(docs []bson.M, name string, arg any) ([]bson.M, error) {
	switch name {
	case "$match":
		filter, ok := storage.AsDocument(storage.Normalize(arg))
		if !ok {
			return nil, errors.New(errors.Validation, "$match requires a document")
		}
		var out []bson.M
		for _, doc := range docs {
			matched, err := match(doc, filter)
			if err != nil {
				return nil, err
			}
			if matched {
				out = append(out, doc)
			}
		}
		return out, nil
	case "$project":
		spec, ok := storage.AsDocument(arg)
		if !ok {
			return nil, errors.New(errors.Validation, "$project requires a document")
		}
		return projectStage(docs, spec)
	case "$group":
		spec, ok := storage.AsDocument(arg)
		if !ok {
			return nil, errors.New(errors.Validation, "$group requires a document")
		}
		return groupStage(docs, spec)
	case "$sort":
		sortSpec, ok := sortDocument(arg)
		if !ok {
			return nil, errors.New(errors.Validation, "$sort requires a document")
		}
		sortDocs(docs, sortSpec)
		return docs, nil
	case "$limit":
		limit := cast.ToInt(arg)
		if limit >= 0 && limit < len(docs) {
			docs = docs[:limit]
		}
		return docs, nil
	case "$skip":
		skip := cast.ToInt(arg)
		if skip >= len(docs) {
			return nil, nil
		}
		return docs[skip:], nil
	case "$unwind":
		path := strings.TrimPrefix(cast.ToString(arg), "$")
		if spec, ok := storage.AsDocument(arg); ok {
			path = strings.TrimPrefix(cast.ToString(spec["path"]), "$")
		}
		var out []bson.M
		for _, doc := range docs {
			value, _ := storage.Lookup(doc, path)
			arr, ok := storage.AsArray(value)
			if !ok {
				if value != nil {
					out = append(out, doc)
				}
				continue
			}
			for _, elem := range arr {
				unwound := deepCopy(doc)
				setPath(unwound, strings.Split(path, "."), elem)
				out = append(out, unwound)
			}
		}
		return out, nil
	case "$count":
		return []bson.M{{cast.ToString(arg): int64(len(docs))}}, nil
	default:
		return nil, errors.New(errors.Validation, "unsupported stage: %s", name)
	}
}

func projectStage(docs []bson.M, spec bson.M) ([]bson.M, error) {
	computed := bson.M{}
	plain := bson.M{}
	for k, v := range spec {
		if s, ok := v.(string); ok && strings.HasPrefix(s, "$") {
			computed[k] = s
			continue
		}
		plain[k] = v
	}
	p, err := newProjection(plain)
	if err != nil {
		return nil, err
	}
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		projected := doc
		if p != nil {
			projected = p.apply(doc)
		} else if len(computed) > 0 {
			projected = bson.M{"_id": doc["_id"]}
		}
		for k, expr := range computed {
			projected[k] = evalExpr(doc, expr)
		}
		out = append(out, projected)
	}
	return out, nil
}

// evalExpr evaluates a field path ("$a.b"), a document of expressions or a literal against a
// document. Paths through arrays evaluate to arrays.
func evalExpr(doc bson.M, expr any) any {
	switch e := expr.(type) {
	case string:
		if strings.HasPrefix(e, "$") {
			value, _ := resolveExpr(doc, strings.Split(strings.TrimPrefix(e, "$"), "."))
			return value
		}
		return e
	default:
		if sub, ok := storage.AsDocument(expr); ok {
			out := bson.M{}
			for k, v := range sub {
				out[k] = evalExpr(doc, v)
			}
			return out
		}
		return storage.Normalize(expr)
	}
}

func resolveExpr(value any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return value, true
	}
	if doc, ok := storage.AsDocument(value); ok {
		next, ok := doc[segments[0]]
		if !ok {
			return nil, false
		}
		return resolveExpr(next, segments[1:])
	}
	if arr, ok := storage.AsArray(value); ok {
		out := []any{}
		for _, elem := range arr {
			if v, ok := resolveExpr(elem, segments); ok {
				out = append(out, v)
			}
		}
		return out, true
	}
	return nil, false
}

type group struct {
	key    any
	values map[string][]any
}

func groupStage(docs []bson.M, spec bson.M) ([]bson.M, error) {
	idExpr, ok := spec["_id"]
	if !ok {
		return nil, errors.New(errors.Validation, "$group requires an _id")
	}
	type accumulator struct {
		op   string
		expr any
	}
	accumulators := map[string]accumulator{}
	for field, v := range spec {
		if field == "_id" {
			continue
		}
		acc, ok := storage.AsDocument(v)
		if !ok || len(acc) != 1 {
			return nil, errors.New(errors.Validation, "$group field %s requires a single accumulator", field)
		}
		for op, expr := range acc {
			accumulators[field] = accumulator{op: op, expr: expr}
		}
	}
	var groups []*group
	for _, doc := range docs {
		key := evalExpr(doc, idExpr)
		var g *group
		for _, existing := range groups {
			if equalValues(existing.key, key) {
				g = existing
				break
			}
		}
		if g == nil {
			g = &group{key: key, values: map[string][]any{}}
			groups = append(groups, g)
		}
		for field, acc := range accumulators {
			g.values[field] = append(g.values[field], evalExpr(doc, acc.expr))
		}
	}
	out := make([]bson.M, 0, len(groups))
	for _, g := range groups {
		result := bson.M{"_id": g.key}
		for field, acc := range accumulators {
			value, err := accumulate(acc.op, g.values[field])
			if err != nil {
				return nil, err
			}
			result[field] = value
		}
		out = append(out, result)
	}
	return out, nil
}

func accumulate(op string, values []any) (any, error) {
	switch op {
	case "$sum", "$avg":
		var (
			isInt = true
			i     int64
			f     float64
			n     int
		)
		for _, v := range values {
			if bracket(v) != bracketNumber {
				continue
			}
			n++
			if !isInteger(v) {
				isInt = false
			}
			i += cast.ToInt64(v)
			f += cast.ToFloat64(v)
		}
		if op == "$avg" {
			if n == 0 {
				return nil, nil
			}
			return f / float64(n), nil
		}
		if isInt {
			return i, nil
		}
		return f, nil
	case "$min", "$max":
		var best any
		for _, v := range values {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := compareValues(v, best)
			if (op == "$min" && c < 0) || (op == "$max" && c > 0) {
				best = v
			}
		}
		return best, nil
	case "$first":
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case "$last":
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	case "$push":
		return append([]any{}, values...), nil
	case "$addToSet":
		out := []any{}
		for _, v := range values {
			if !containsValue(out, v) {
				out = append(out, v)
			}
		}
		return out, nil
	default:
		return nil, errors.New(errors.Validation, "unsupported accumulator: %s", op)
	}
}

func containsValue(values []any, v any) bool {
	for _, existing := range values {
		if equalValues(existing, v) {
			return true
		}
	}
	return false
}

// sortDocument reads a sort specification. bson.M specifications are ordered by key.
func sortDocument(arg any) (bson.D, bool) {
	switch s := arg.(type) {
	case bson.D:
		return s, true
	default:
		doc, ok := storage.AsDocument(arg)
		if !ok {
			return nil, false
		}
		out := bson.D{}
		for _, k := range sortedKeys(doc) {
			out = append(out, bson.E{Key: k, Value: doc[k]})
		}
		return out, true
	}
}

// sortDocs sorts the documents in place, keeping the relative order of equal documents
func sortDocs(docs []bson.M, spec bson.D) {
	if len(spec) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, e := range spec {
			c := compareValues(sortValue(docs[i], e.Key), sortValue(docs[j], e.Key))
			if c == 0 {
				continue
			}
			if storage.SortDirection(e.Value) < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
