package docmap

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage"
	"github.com/autom8ter/docmap/util"
	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Document is the default Model: a raw document bound to its class and collection
type Document struct {
	class      *schema.Class
	attributes bson.M
	collection storage.Collection
	locale     schema.Locale
	mu         sync.RWMutex
	relations  map[string][]Model
}

// NewDocument creates a document
func NewDocument(class *schema.Class, attributes bson.M, collection storage.Collection, locale schema.Locale) *Document {
	if attributes == nil {
		attributes = bson.M{}
	}
	return &Document{
		class:      class,
		attributes: attributes,
		collection: collection,
		locale:     locale,
		relations:  map[string][]Model{},
	}
}

// ID returns the _id of the document
func (d *Document) ID() any {
	return d.attributes[schema.IDField]
}

// Class returns the class of the document
func (d *Document) Class() *schema.Class {
	return d.class
}

// Attributes returns the raw attributes of the document
func (d *Document) Attributes() bson.M {
	return d.attributes
}

// Get resolves a dotted field path against the document and returns the demongoized value
func (d *Document) Get(path string) any {
	r := newResolver(d.class, d.locale, false)
	return r.Resolve(d.attributes, d.class.DatabaseFieldName(path))
}

// Query runs a GJSON path against the JSON form of the document
func (d *Document) Query(path string) gjson.Result {
	return gjson.Get(util.JSONString(d), path)
}

// Scan decodes the attributes into the value pointed to by out
func (d *Document) Scan(out any) error {
	return util.Decode(d.attributes, out)
}

// MarshalJSON encodes the attributes together with the loaded relations
func (d *Document) MarshalJSON() ([]byte, error) {
	out := storage.CloneM(d.attributes)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for name, models := range d.relations {
		association, ok := d.class.Association(name)
		switch {
		case ok && association.Many():
			out[name] = models
		case len(models) > 0:
			out[name] = models[0]
		default:
			out[name] = nil
		}
	}
	return json.Marshal(out)
}

// Destroy deletes the document by _id and reports whether the write was acknowledged
func (d *Document) Destroy(ctx context.Context) (bool, error) {
	result, err := d.collection.Find(bson.M{schema.IDField: d.ID()}).DeleteOne(ctx)
	if err != nil {
		return false, err
	}
	return result.Acknowledged, nil
}

// Related returns the eager loaded relation with the name
func (d *Document) Related(name string) ([]Model, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	models, ok := d.relations[name]
	return models, ok
}

// SetRelated attaches an eager loaded relation
func (d *Document) SetRelated(name string, models []Model) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.relations[name] = models
}
