// Package eager loads the associations of a batch of models with one query per association,
// batching foreign keys through a dataloader.
package eager

import (
	"context"
	"time"

	"github.com/autom8ter/docmap"
	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage"
	"github.com/autom8ter/docmap/util"
	"github.com/graph-gophers/dataloader"
	"github.com/huandu/xstrings"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CollectionFunc returns the collection with the name
type CollectionFunc func(name string) storage.Collection

// Loader eager loads belongs_to, has_one and has_many associations. Embedded associations are
// already part of their owner and are skipped.
type Loader struct {
	collections CollectionFunc
	registry    *schema.Registry
	locale      schema.Locale
	wait        time.Duration
	capacity    int
}

// Opt configures a Loader
type Opt func(l *Loader)

// WithRegistry sets the registry used to resolve polymorphic associations and document types
func WithRegistry(registry *schema.Registry) Opt {
	return func(l *Loader) {
		l.registry = registry
	}
}

// WithLocale sets the locale of the loaded documents
func WithLocale(locale schema.Locale) Opt {
	return func(l *Loader) {
		l.locale = locale
	}
}

// WithWait sets how long a batch waits for more keys before it is dispatched
func WithWait(wait time.Duration) Opt {
	return func(l *Loader) {
		l.wait = wait
	}
}

// WithBatchCapacity bounds the number of keys per batch
func WithBatchCapacity(capacity int) Opt {
	return func(l *Loader) {
		l.capacity = capacity
	}
}

// New returns a loader reading associated documents from the collections
func New(collections CollectionFunc, opts ...Opt) *Loader {
	l := &Loader{
		collections: collections,
		locale:      schema.NewLocale(""),
		wait:        time.Millisecond,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

var _ docmap.EagerLoader = (*Loader)(nil)

// EagerLoad loads every association the criteria includes and attaches the results to the
// models that can hold relations
func (l *Loader) EagerLoad(ctx context.Context, criteria docmap.Criteria, models []docmap.Model) ([]docmap.Model, error) {
	if len(criteria.Includes) == 0 || len(models) == 0 {
		return models, nil
	}
	for _, name := range lo.Uniq(criteria.Includes) {
		association, ok := criteria.Class.Association(name)
		if !ok {
			return nil, errors.New(errors.Validation, "class %s has no association %s", criteria.Class.Name(), name)
		}
		if association.Embedded() {
			continue
		}
		if err := l.load(ctx, criteria.Class, association, models); err != nil {
			return nil, errors.Wrap(err, 0, "failed to eager load %s", name)
		}
	}
	return models, nil
}

// target is the class an association loads for a model and the key identifying the documents
type target struct {
	class *schema.Class
	key   any
}

func (l *Loader) load(ctx context.Context, owner *schema.Class, association *schema.Association, models []docmap.Model) error {
	targets := make([]*target, len(models))
	for i, m := range models {
		t, err := l.target(association, m)
		if err != nil {
			return err
		}
		targets[i] = t
	}
	loaders := map[*schema.Class]*dataloader.Loader{}
	keys := map[*schema.Class]dataloader.Keys{}
	for _, t := range targets {
		if t == nil {
			continue
		}
		if _, ok := loaders[t.class]; !ok {
			loaders[t.class] = l.newLoader(l.batch(owner, association, t.class))
		}
		keys[t.class] = append(keys[t.class], valueKey{value: t.key})
	}
	loaded := map[*schema.Class]map[string][]docmap.Model{}
	for class, loader := range loaders {
		classKeys := uniqueKeys(keys[class])
		results, errs := loader.LoadMany(ctx, classKeys)()
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		byKey := map[string][]docmap.Model{}
		for i, result := range results {
			related, _ := result.([]docmap.Model)
			byKey[classKeys[i].String()] = related
		}
		loaded[class] = byKey
	}
	for i, m := range models {
		r, ok := m.(docmap.Relatable)
		if !ok {
			continue
		}
		related := []docmap.Model{}
		if t := targets[i]; t != nil {
			related = append(related, loaded[t.class][valueKey{value: t.key}.String()]...)
		}
		if association.Kind == schema.HasOne && len(related) > 1 {
			related = related[:1]
		}
		r.SetRelated(association.Name, related)
	}
	return nil
}

// target returns what the association loads for the model, or nil if it loads nothing
func (l *Loader) target(association *schema.Association, m docmap.Model) (*target, error) {
	class := association.Class()
	switch association.Kind {
	case schema.BelongsTo:
		key, ok := m.Attributes()[association.Key()]
		if !ok || key == nil {
			return nil, nil
		}
		if association.Polymorphic {
			typeName := cast.ToString(m.Attributes()[association.Name+"_type"])
			if typeName == "" {
				return nil, nil
			}
			if l.registry == nil {
				return nil, errors.New(errors.Validation, "polymorphic association %s requires a registry", association.Name)
			}
			c, ok := l.registry.Class(typeName)
			if !ok {
				return nil, errors.New(errors.Validation, "unknown class %s", typeName)
			}
			class = c
		}
		if class == nil {
			return nil, errors.New(errors.Validation, "association %s has no class", association.Name)
		}
		return &target{class: class, key: key}, nil
	default:
		if class == nil {
			return nil, errors.New(errors.Validation, "association %s has no class", association.Name)
		}
		if m.ID() == nil {
			return nil, nil
		}
		return &target{class: class, key: m.ID()}, nil
	}
}

// foreignKey returns the field of the target documents the batch keys are matched against
func foreignKey(owner *schema.Class, association *schema.Association) string {
	if association.Kind == schema.BelongsTo {
		return schema.IDField
	}
	if association.ForeignKey != "" {
		return association.ForeignKey
	}
	root := owner
	for root.Parent() != nil {
		root = root.Parent()
	}
	return xstrings.ToSnakeCase(root.Name()) + "_id"
}

func (l *Loader) newLoader(batch dataloader.BatchFunc) *dataloader.Loader {
	opts := []dataloader.Option{
		dataloader.WithWait(l.wait),
	}
	if l.capacity > 0 {
		opts = append(opts, dataloader.WithBatchCapacity(l.capacity))
	}
	return dataloader.NewBatchedLoader(batch, opts...)
}

// batch returns a batch function loading the documents of the class matching a set of keys
func (l *Loader) batch(owner *schema.Class, association *schema.Association, class *schema.Class) dataloader.BatchFunc {
	field := foreignKey(owner, association)
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))
		fail := func(err error) []*dataloader.Result {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}
		values := make([]any, 0, len(keys))
		for _, k := range keys {
			values = append(values, k.Raw())
		}
		collection := l.collections(class.Collection())
		if collection == nil {
			return fail(errors.New(errors.NotFound, "unknown collection %s", class.Collection()))
		}
		cursor, err := collection.Find(bson.M{field: bson.M{"$in": values}}).Cursor(ctx)
		if err != nil {
			return fail(err)
		}
		docs, err := storage.All(ctx, cursor)
		if err != nil {
			return fail(err)
		}
		factory := docmap.DocumentFactory{Registry: l.registry, Locale: l.locale}
		criteria := docmap.NewCriteria(class, collection)
		byKey := map[string][]docmap.Model{}
		for _, doc := range docs {
			m, err := factory.FromDB(class, doc, criteria)
			if err != nil {
				return fail(err)
			}
			k := valueKey{value: doc[field]}.String()
			byKey[k] = append(byKey[k], m)
		}
		for i, k := range keys {
			results[i] = &dataloader.Result{Data: byKey[k.String()]}
		}
		return results
	}
}

// valueKey is a dataloader key wrapping a document value
type valueKey struct {
	value any
}

func (k valueKey) String() string {
	return string(util.EncodeValue(k.value))
}

func (k valueKey) Raw() interface{} {
	return k.value
}

func uniqueKeys(keys dataloader.Keys) dataloader.Keys {
	return lo.UniqBy(keys, func(k dataloader.Key) string {
		return k.String()
	})
}
