package docmap

import (
	"strings"

	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// resolver extracts demongoized values out of raw documents by walking a storage path through
// the class graph one segment at a time
type resolver struct {
	class  *schema.Class
	locale schema.Locale
	legacy bool
}

func newResolver(class *schema.Class, locale schema.Locale, legacy bool) *resolver {
	return &resolver{class: class, locale: locale, legacy: legacy}
}

// Resolve returns the value at the storage path. Paths crossing arrays return a flat []any of
// the values found in the elements.
func (r *resolver) Resolve(doc bson.M, path string) any {
	if r.legacy {
		key, _, _ := strings.Cut(path, ".")
		return doc[key]
	}
	var (
		current  any = doc
		segments     = strings.Count(path, ".") + 1
		i            = 0
	)
	r.class.TraverseAssociationTree(path, func(segment string, field *schema.Field, association *schema.Association) {
		i++
		key := segment
		translation := false
		if field == nil && association == nil {
			if base, ok := schema.TranslationsBase(segment); ok {
				key = base
				translation = true
			}
		}
		step := segmentStep{
			key:         key,
			field:       field,
			translation: translation,
			terminal:    i == segments,
		}
		current = r.extract(current, step)
	})
	return current
}

type segmentStep struct {
	key         string
	field       *schema.Field
	translation bool
	terminal    bool
}

func (r *resolver) extract(value any, step segmentStep) any {
	if value == nil {
		return nil
	}
	if values, ok := storage.AsArray(value); ok {
		out := []any{}
		for _, element := range values {
			v := r.extract(element, step)
			if v == nil {
				continue
			}
			if nested, ok := v.([]any); ok && !step.terminal {
				out = append(out, nested...)
				continue
			}
			out = append(out, v)
		}
		return out
	}
	doc, ok := storage.AsDocument(value)
	if !ok {
		return nil
	}
	return r.demongoize(doc[step.key], step)
}

func (r *resolver) demongoize(raw any, step segmentStep) any {
	switch {
	case step.translation:
		return raw
	case step.field.Localized() && !step.terminal:
		return raw
	case step.field != nil:
		return step.field.Demongoize(raw, r.locale)
	default:
		return schema.Demongoize(raw)
	}
}

// demongoizeWithField converts a value returned by a storage distinct
func (r *resolver) demongoizeWithField(field *schema.Field, value any, translation bool) any {
	_, isMap := storage.AsDocument(value)
	switch {
	case field.Localized() && (!isMap || translation):
		return schema.Demongoize(value)
	case field != nil:
		return field.Demongoize(value, r.locale)
	default:
		return schema.Demongoize(value)
	}
}
