package kvstore

import (
	"strings"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/storage"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type projection struct {
	include   bool
	paths     []string
	includeID bool
}

func newProjection(spec bson.M) (*projection, error) {
	if len(spec) == 0 {
		return nil, nil
	}
	p := &projection{includeID: true}
	mode := 0
	for path, v := range spec {
		on := truthy(v)
		if path == "_id" {
			p.includeID = on
			continue
		}
		want := -1
		if on {
			want = 1
		}
		if mode != 0 && mode != want {
			return nil, errors.New(errors.Validation, "projection cannot mix inclusion and exclusion")
		}
		mode = want
		p.paths = append(p.paths, path)
	}
	p.include = mode >= 0
	return p, nil
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return cast.ToFloat64(v) != 0
}

// apply returns the projected copy of the document
func (p *projection) apply(doc bson.M) bson.M {
	if p == nil {
		return doc
	}
	if !p.include {
		out := deepCopy(doc)
		for _, path := range p.paths {
			unsetPath(out, strings.Split(path, "."))
		}
		if !p.includeID {
			delete(out, "_id")
		}
		return out
	}
	out := bson.M{}
	if id, ok := doc["_id"]; ok && p.includeID {
		out["_id"] = id
	}
	for _, path := range p.paths {
		includePath(out, doc, strings.Split(path, "."))
	}
	return out
}

// includePath copies the value at the path from src into dst, projecting through arrays of
// embedded documents
func includePath(dst bson.M, src bson.M, segments []string) {
	value, ok := src[segments[0]]
	if !ok {
		return
	}
	if len(segments) == 1 {
		dst[segments[0]] = storage.Normalize(value)
		return
	}
	switch {
	case isDocument(value):
		sub, _ := storage.AsDocument(value)
		next, ok := dst[segments[0]].(bson.M)
		if !ok {
			next = bson.M{}
		}
		includePath(next, sub, segments[1:])
		dst[segments[0]] = next
	case isArray(value):
		arr, _ := storage.AsArray(value)
		existing, _ := dst[segments[0]].([]any)
		out := make([]any, 0, len(arr))
		for i, elem := range arr {
			sub, ok := storage.AsDocument(elem)
			if !ok {
				continue
			}
			var next bson.M
			if i < len(existing) {
				next, _ = existing[i].(bson.M)
			}
			if next == nil {
				next = bson.M{}
			}
			includePath(next, sub, segments[1:])
			out = append(out, next)
		}
		dst[segments[0]] = out
	}
}

func isDocument(v any) bool {
	_, ok := storage.AsDocument(v)
	return ok
}

func isArray(v any) bool {
	_, ok := storage.AsArray(v)
	return ok
}
