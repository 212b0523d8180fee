package docmap

import (
	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/schema"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// DocumentFactory builds *Document models
type DocumentFactory struct {
	// Registry resolves the class named by the type field of a document (optional)
	Registry *schema.Registry
	// Locale is the locale documents read localized fields in
	Locale schema.Locale
}

// FromDB builds a document. When the raw document names its class in the type field and a
// registry is set, the named class is used.
func (f DocumentFactory) FromDB(class *schema.Class, raw bson.M, criteria Criteria) (Model, error) {
	if raw == nil {
		return nil, nil
	}
	if f.Registry != nil {
		if typ, ok := raw[schema.TypeField]; ok {
			name := cast.ToString(typ)
			named, ok := f.Registry.Class(name)
			if !ok {
				return nil, errors.New(errors.Validation, "unknown document type: %s", name)
			}
			class = named
		}
	}
	locale := f.Locale
	if locale.Current == "" {
		locale = schema.NewLocale("")
	}
	return NewDocument(class, raw, criteria.Collection, locale), nil
}
