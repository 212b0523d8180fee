package docmap

import (
	"context"

	"github.com/autom8ter/docmap/schema"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Model is a domain object built from a raw document
type Model interface {
	// ID returns the identity of the object
	ID() any
	// Class returns the class of the object
	Class() *schema.Class
	// Attributes returns the raw attributes of the object
	Attributes() bson.M
}

// Destroyer is a model that can delete itself
type Destroyer interface {
	// Destroy deletes the object and reports whether the write was acknowledged
	Destroy(ctx context.Context) (bool, error)
}

// Relatable is a model that can hold eager loaded relations
type Relatable interface {
	// Related returns the loaded relation with the name
	Related(name string) ([]Model, bool)
	// SetRelated attaches a loaded relation
	SetRelated(name string, models []Model)
}

// ForEachFunc is called once per model during iteration. Returning false stops the iteration.
type ForEachFunc func(m Model) (bool, error)

// Factory builds models out of raw documents
type Factory interface {
	// FromDB builds a model of the class (or one of its subclasses) out of a raw document
	FromDB(class *schema.Class, raw bson.M, criteria Criteria) (Model, error)
}

// EagerLoader loads the associations a criteria includes into a batch of models
type EagerLoader interface {
	EagerLoad(ctx context.Context, criteria Criteria, models []Model) ([]Model, error)
}

// NopEagerLoader returns the models untouched
type NopEagerLoader struct{}

func (NopEagerLoader) EagerLoad(ctx context.Context, criteria Criteria, models []Model) ([]Model, error) {
	return models, nil
}
