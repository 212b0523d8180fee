package docmap

import (
	"context"
	"sort"
	"strings"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// QueryContext executes a criteria against its collection. It owns a view built from the
// criteria and, when the criteria enables caching, the models and scalars its operations
// produce. A QueryContext is not safe for concurrent use.
type QueryContext struct {
	id             string
	criteria       Criteria
	class          *schema.Class
	selector       bson.M
	view           storage.View
	cache          bool
	docs           []Model
	loaded         bool
	memo           *memo
	limitZero      bool
	config         Config
	localeOverride string
	locale         schema.Locale
	logger         Logger
	factory        Factory
	eager          EagerLoader
}

// NewQueryContext binds a view to the criteria and applies the criteria options to it
func NewQueryContext(criteria Criteria, opts ...Option) (*QueryContext, error) {
	if criteria.Class == nil {
		return nil, errors.New(errors.Validation, "criteria requires a class")
	}
	if criteria.Collection == nil {
		return nil, errors.New(errors.Validation, "criteria requires a collection")
	}
	q := &QueryContext{
		id:       newContextID(),
		criteria: criteria.clone(),
		class:    criteria.Class,
		memo:     newMemo(),
		config:   DefaultConfig(),
		logger:   NopLogger(),
		eager:    NopEagerLoader{},
	}
	for _, o := range opts {
		o(q)
	}
	if err := q.config.Validate(); err != nil {
		return nil, err
	}
	q.locale = q.config.LocaleChain()
	if q.localeOverride != "" {
		q.locale.Current = q.localeOverride
	}
	if q.factory == nil {
		q.factory = DocumentFactory{Locale: q.locale}
	}
	q.cache = q.criteria.Cached()
	q.selector = mergeTypeSelection(q.class, q.criteria.Selector)
	if limit, ok := q.criteria.Options[OptLimit]; ok {
		q.limitZero = cast.ToInt64(limit) == 0
	}
	view, err := applyOptions(q.criteria.Collection.Find(q.selector), q.criteria.Options)
	if err != nil {
		return nil, err
	}
	q.view = view
	return q, nil
}

// mergeTypeSelection scopes the selector of a subclass to the class and its descendants
func mergeTypeSelection(class *schema.Class, selector bson.M) bson.M {
	selector = storage.CloneM(selector)
	if selector == nil {
		selector = bson.M{}
	}
	if !class.Hereditary() {
		return selector
	}
	if _, ok := selector[schema.TypeField]; ok {
		return selector
	}
	names := lo.Map(class.Descendants(), func(c *schema.Class, _ int) any {
		return c.Name()
	})
	selector[schema.TypeField] = bson.M{"$in": names}
	return selector
}

// Criteria returns the criteria of the context
func (q *QueryContext) Criteria() Criteria {
	return q.criteria
}

// View returns the current view of the context
func (q *QueryContext) View() storage.View {
	return q.view
}

func (q *QueryContext) trace(ctx context.Context, operation string) {
	q.logger.Debug(ctx, "storage round trip", map[string]any{
		"context_id": q.id,
		"collection": q.criteria.Collection.Name(),
		"operation":  operation,
	})
}

func (q *QueryContext) resolver() *resolver {
	return newResolver(q.class, q.locale, q.config.LegacyPluckDistinct)
}

// memoized returns the memoized value of the key when caching is enabled
func (q *QueryContext) memoized(key memoKey) (any, bool) {
	if !q.cache {
		return nil, false
	}
	return q.memo.load(key)
}

func (q *QueryContext) remember(key memoKey, value any) {
	if q.cache {
		q.memo.store(key, value)
	}
}

// Count counts the documents matching the criteria
func (q *QueryContext) Count(ctx context.Context, opts storage.CountOptions) (int64, error) {
	if v, ok := q.memoized(memoCount); ok {
		return v.(int64), nil
	}
	q.trace(ctx, "count_documents")
	count, err := q.view.CountDocuments(ctx, opts)
	if err != nil {
		return 0, err
	}
	q.remember(memoCount, count)
	return count, nil
}

// CountFunc iterates the matching models and counts those the predicate accepts
func (q *QueryContext) CountFunc(ctx context.Context, predicate func(m Model) bool) (int64, error) {
	var count int64
	err := q.Each(ctx, func(m Model) (bool, error) {
		if predicate(m) {
			count++
		}
		return true, nil
	})
	return count, err
}

// EstimatedCount returns the collection-wide document count from collection metadata. It
// fails with ErrInvalidEstimatedCountCriteria when the criteria has a selector.
func (q *QueryContext) EstimatedCount(ctx context.Context, opts storage.CountOptions) (int64, error) {
	if len(q.selector) > 0 {
		return 0, ErrInvalidEstimatedCountCriteria
	}
	if v, ok := q.memoized(memoEstimatedCount); ok {
		return v.(int64), nil
	}
	q.trace(ctx, "estimated_document_count")
	count, err := q.view.EstimatedDocumentCount(ctx, opts)
	if err != nil {
		return 0, err
	}
	q.remember(memoEstimatedCount, count)
	return count, nil
}

// Exists returns true if at least one document matches the criteria
func (q *QueryContext) Exists(ctx context.Context) (bool, error) {
	if q.limitZero {
		return false, nil
	}
	if q.cache && q.loaded {
		return len(q.docs) > 0, nil
	}
	if v, ok := q.memoized(memoCount); ok {
		return v.(int64) > 0, nil
	}
	if v, ok := q.memoized(memoExists); ok {
		return v.(bool), nil
	}
	spec := q.view.Spec().WithProjection(bson.M{schema.IDField: 1}).WithLimit(1)
	q.trace(ctx, "exists")
	cursor, err := q.view.With(spec).Cursor(ctx)
	if err != nil {
		return false, err
	}
	doc, err := storage.First(ctx, cursor)
	if err != nil {
		return false, err
	}
	exists := doc != nil
	q.remember(memoExists, exists)
	return exists, nil
}

// Empty returns true if no document matches the criteria
func (q *QueryContext) Empty(ctx context.Context) (bool, error) {
	exists, err := q.Exists(ctx)
	return !exists, err
}

func (q *QueryContext) findOpts(opts []FindOpt) FindOpts {
	o := FindOpts{IDSort: IDSortAsc}
	if value, ok := q.criteria.Options[OptIDSort]; ok && IDSort(cast.ToString(value)) == IDSortNone {
		o.IDSort = IDSortNone
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// First returns the first matching model, or nil. Without a sort the documents are sorted by
// _id unless WithIDSort(IDSortNone) is given.
func (q *QueryContext) First(ctx context.Context, opts ...FindOpt) (Model, error) {
	models, err := q.FirstN(ctx, 1, opts...)
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return models[0], nil
}

// FirstN returns the first n matching models
func (q *QueryContext) FirstN(ctx context.Context, n int64, opts ...FindOpt) ([]Model, error) {
	if n <= 0 || q.limitZero {
		return []Model{}, nil
	}
	if q.cache && q.loaded {
		return headOf(q.docs, n), nil
	}
	if v, ok := q.memoized(memoFirst); ok {
		if models := v.([]Model); int64(len(models)) >= n {
			return headOf(models, n), nil
		}
	}
	spec := q.view.Spec()
	if len(spec.Sort) == 0 && q.findOpts(opts).IDSort != IDSortNone {
		spec = spec.WithSort(bson.D{{Key: schema.IDField, Value: 1}})
	}
	q.trace(ctx, "first")
	models, err := q.fetch(ctx, q.view.With(spec.WithLimit(n)))
	if err != nil {
		return nil, err
	}
	q.remember(memoFirst, models)
	return headOf(models, n), nil
}

// Last returns the last matching model, or nil. The sort of the criteria (or _id) is inverted
// for the round trip and restored afterwards.
func (q *QueryContext) Last(ctx context.Context, opts ...FindOpt) (Model, error) {
	models, err := q.LastN(ctx, 1, opts...)
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return models[len(models)-1], nil
}

// LastN returns the last n matching models in query order
func (q *QueryContext) LastN(ctx context.Context, n int64, opts ...FindOpt) ([]Model, error) {
	if n <= 0 || q.limitZero {
		return []Model{}, nil
	}
	if q.cache && q.loaded {
		if int64(len(q.docs)) <= n {
			return append([]Model{}, q.docs...), nil
		}
		return append([]Model{}, q.docs[int64(len(q.docs))-n:]...), nil
	}
	if v, ok := q.memoized(memoLast); ok {
		if models := v.([]Model); int64(len(models)) >= n {
			return lo.Reverse(headOf(models, n)), nil
		}
	}
	previous := q.view.Spec().Sort
	defer func() {
		q.view = q.view.With(q.view.Spec().WithSort(previous))
	}()
	order := q.criteria.Sort()
	if len(order) == 0 && q.findOpts(opts).IDSort != IDSortNone {
		order = bson.D{{Key: schema.IDField, Value: 1}}
	}
	q.view = q.view.With(q.view.Spec().WithSort(storage.InvertSort(order)))
	q.trace(ctx, "last")
	models, err := q.fetch(ctx, q.view.With(q.view.Spec().WithLimit(n)))
	if err != nil {
		return nil, err
	}
	q.remember(memoLast, models)
	return lo.Reverse(headOf(models, n)), nil
}

// FirstOrErr returns the first matching model or ErrDocumentNotFound
func (q *QueryContext) FirstOrErr(ctx context.Context, opts ...FindOpt) (Model, error) {
	m, err := q.First(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrDocumentNotFound
	}
	return m, nil
}

// LastOrErr returns the last matching model or ErrDocumentNotFound
func (q *QueryContext) LastOrErr(ctx context.Context, opts ...FindOpt) (Model, error) {
	m, err := q.Last(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrDocumentNotFound
	}
	return m, nil
}

// Take returns up to n matching models in natural order
func (q *QueryContext) Take(ctx context.Context, n int64) ([]Model, error) {
	if n <= 0 || q.limitZero {
		return []Model{}, nil
	}
	if q.cache && q.loaded {
		return headOf(q.docs, n), nil
	}
	q.trace(ctx, "take")
	return q.fetch(ctx, q.view.With(q.view.Spec().WithLimit(n)))
}

// TakeOrErr returns the first model in natural order or ErrDocumentNotFound
func (q *QueryContext) TakeOrErr(ctx context.Context) (Model, error) {
	models, err := q.Take(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, ErrDocumentNotFound
	}
	return models[0], nil
}

// FindFirst returns the first model in natural order without consulting the cache
func (q *QueryContext) FindFirst(ctx context.Context) (Model, error) {
	if q.limitZero {
		return nil, nil
	}
	q.trace(ctx, "find_first")
	models, err := q.fetch(ctx, q.view.With(q.view.Spec().WithLimit(1)))
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return models[0], nil
}

// Each calls fn with every matching model until fn returns false. When caching is enabled
// the models are cached and, once a pass completes, later passes are served from the cache.
func (q *QueryContext) Each(ctx context.Context, fn ForEachFunc) error {
	if q.cache && q.loaded {
		for _, m := range q.docs {
			next, err := fn(m)
			if err != nil || !next {
				return err
			}
		}
		return nil
	}
	if q.cache {
		q.docs = nil
	}
	complete, err := q.iterate(ctx, fn)
	if err != nil {
		return err
	}
	if q.cache && complete {
		q.loaded = true
	}
	return nil
}

// iterate streams the view through fn and reports whether the pass completed
func (q *QueryContext) iterate(ctx context.Context, fn ForEachFunc) (bool, error) {
	visit := func(m Model) (bool, error) {
		if q.cache {
			q.docs = append(q.docs, m)
		}
		return fn(m)
	}
	if len(q.criteria.Includes) > 0 {
		q.trace(ctx, "each")
		models, err := q.fetch(ctx, q.view)
		if err != nil {
			return false, err
		}
		for _, m := range models {
			next, err := visit(m)
			if err != nil || !next {
				return false, err
			}
		}
		return true, nil
	}
	q.trace(ctx, "each")
	cursor, err := q.view.Cursor(ctx)
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		m, err := q.materializeOne(ctx, cursor.Current())
		if err != nil {
			return false, err
		}
		if m == nil {
			continue
		}
		next, err := visit(m)
		if err != nil || !next {
			return false, err
		}
	}
	if err := cursor.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// All returns every matching model
func (q *QueryContext) All(ctx context.Context) ([]Model, error) {
	var models = []Model{}
	err := q.Each(ctx, func(m Model) (bool, error) {
		models = append(models, m)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

// MapFunc returns the result of fn for every matching model
func (q *QueryContext) MapFunc(ctx context.Context, fn func(m Model) (any, error)) ([]any, error) {
	var out = []any{}
	err := q.Each(ctx, func(m Model) (bool, error) {
		value, err := fn(m)
		if err != nil {
			return false, err
		}
		out = append(out, value)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Length returns the number of cached models once the cache is loaded and the document count
// otherwise
func (q *QueryContext) Length(ctx context.Context) (int64, error) {
	if q.cache && q.loaded {
		return int64(len(q.docs)), nil
	}
	return q.Count(ctx, storage.CountOptions{})
}

// Update applies the attributes to the first matching document. It performs nothing and
// returns false when attrs is empty.
func (q *QueryContext) Update(ctx context.Context, attrs bson.M, opts storage.UpdateOptions) (storage.UpdateResult, bool, error) {
	if len(attrs) == 0 {
		return storage.UpdateResult{}, false, nil
	}
	q.trace(ctx, "update_one")
	result, err := q.view.UpdateOne(ctx, q.prepareUpdate(attrs), opts)
	if err != nil {
		return storage.UpdateResult{}, false, err
	}
	return result, true, nil
}

// UpdateAll applies the attributes to every matching document. It performs nothing and
// returns false when attrs is empty.
func (q *QueryContext) UpdateAll(ctx context.Context, attrs bson.M, opts storage.UpdateOptions) (storage.UpdateResult, bool, error) {
	if len(attrs) == 0 {
		return storage.UpdateResult{}, false, nil
	}
	q.trace(ctx, "update_many")
	result, err := q.view.UpdateMany(ctx, q.prepareUpdate(attrs), opts)
	if err != nil {
		return storage.UpdateResult{}, false, err
	}
	return result, true, nil
}

// prepareUpdate converts field names to their storage names and moves plain fields under $set
func (q *QueryContext) prepareUpdate(attrs bson.M) bson.M {
	update := bson.M{}
	set := bson.M{}
	for key, value := range attrs {
		if !strings.HasPrefix(key, "$") {
			set[q.class.DatabaseFieldName(key)] = value
			continue
		}
		fields, ok := storage.AsDocument(value)
		if !ok {
			update[key] = value
			continue
		}
		normalized := bson.M{}
		for field, v := range fields {
			normalized[q.class.DatabaseFieldName(field)] = v
		}
		if key == "$set" {
			for k, v := range normalized {
				set[k] = v
			}
			continue
		}
		update[key] = normalized
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	return update
}

// Delete deletes every matching document and returns the number deleted
func (q *QueryContext) Delete(ctx context.Context) (int64, error) {
	q.trace(ctx, "delete_many")
	result, err := q.view.DeleteMany(ctx)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// Destroy loads every matching model and destroys it, returning the number of acknowledged
// deletes
func (q *QueryContext) Destroy(ctx context.Context) (int64, error) {
	models, err := q.All(ctx)
	if err != nil {
		return 0, err
	}
	var destroyed int64
	for _, m := range models {
		d, ok := m.(Destroyer)
		if !ok {
			return destroyed, errors.New(errors.Validation, "model %v cannot be destroyed", m.ID())
		}
		acknowledged, err := d.Destroy(ctx)
		if err != nil {
			return destroyed, err
		}
		if acknowledged {
			destroyed++
		}
	}
	return destroyed, nil
}

// FindOneAndUpdate updates the first matching document and returns it, or nil
func (q *QueryContext) FindOneAndUpdate(ctx context.Context, update bson.M, opts storage.FindAndModifyOptions) (Model, error) {
	q.trace(ctx, "find_one_and_update")
	raw, err := q.view.FindOneAndUpdate(ctx, update, opts)
	if err != nil {
		return nil, err
	}
	return q.materializeOne(ctx, raw)
}

// FindOneAndReplace replaces the first matching document and returns it, or nil
func (q *QueryContext) FindOneAndReplace(ctx context.Context, replacement bson.M, opts storage.FindAndModifyOptions) (Model, error) {
	q.trace(ctx, "find_one_and_replace")
	raw, err := q.view.FindOneAndReplace(ctx, replacement, opts)
	if err != nil {
		return nil, err
	}
	return q.materializeOne(ctx, raw)
}

// FindOneAndDelete deletes the first matching document and returns it, or nil
func (q *QueryContext) FindOneAndDelete(ctx context.Context) (Model, error) {
	q.trace(ctx, "find_one_and_delete")
	raw, err := q.view.FindOneAndDelete(ctx)
	if err != nil {
		return nil, err
	}
	return q.materializeOne(ctx, raw)
}

// Limit bounds the number of documents the context returns. A limit of 0 is passed to the
// store, which treats it as no limit, so Count, Each, All and Pluck still see every match.
// Exists, First, FirstN, FindFirst, Last, LastN and Take treat an explicit 0 as "nothing to return" and
// answer without a round trip.
func (q *QueryContext) Limit(n int64) *QueryContext {
	q.limitZero = n == 0
	q.view = q.view.With(q.view.Spec().WithLimit(n))
	return q
}

// Skip skips the first n documents
func (q *QueryContext) Skip(n int64) *QueryContext {
	q.view = q.view.With(q.view.Spec().WithSkip(n))
	return q
}

// Sort merges the sort into the criteria order and applies it to the view
func (q *QueryContext) Sort(order bson.D) *QueryContext {
	q.criteria = q.criteria.OrderBy(order)
	q.view = q.view.With(q.view.Spec().WithSort(q.criteria.Sort()))
	return q
}

// SortFunc loads every matching model and sorts them in memory
func (q *QueryContext) SortFunc(ctx context.Context, less func(a, b Model) bool) ([]Model, error) {
	models, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(models, func(i, j int) bool {
		return less(models[i], models[j])
	})
	return models, nil
}

// Explain describes how the store executes the query
func (q *QueryContext) Explain(ctx context.Context) (bson.M, error) {
	q.trace(ctx, "explain")
	return q.view.Explain(ctx)
}

// fetch materializes every document of the view and eager loads the result
func (q *QueryContext) fetch(ctx context.Context, view storage.View) ([]Model, error) {
	cursor, err := view.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	raws, err := storage.All(ctx, cursor)
	if err != nil {
		return nil, err
	}
	models := make([]Model, 0, len(raws))
	for _, raw := range raws {
		m, err := q.factory.FromDB(q.class, raw, q.criteria)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return q.eagerLoad(ctx, models)
}

func (q *QueryContext) materializeOne(ctx context.Context, raw bson.M) (Model, error) {
	if raw == nil {
		return nil, nil
	}
	m, err := q.factory.FromDB(q.class, raw, q.criteria)
	if err != nil {
		return nil, err
	}
	models, err := q.eagerLoad(ctx, []Model{m})
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return models[0], nil
}

func (q *QueryContext) eagerLoad(ctx context.Context, models []Model) ([]Model, error) {
	if len(models) == 0 {
		return models, nil
	}
	return q.eager.EagerLoad(ctx, q.criteria, models)
}

func headOf(models []Model, n int64) []Model {
	if int64(len(models)) > n {
		models = models[:n]
	}
	return append([]Model{}, models...)
}
